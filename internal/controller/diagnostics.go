package controller

import (
	"net/http"

	"auction-bidding-api/internal/service"

	"github.com/labstack/echo"
)

type diagnosticRoutesHandler struct {
	diagnosticService service.Diagnostics
}

func newDiagnosticRoutesHandler(outer *echo.Group, services *service.Services) *diagnosticRoutesHandler {
	h := &diagnosticRoutesHandler{services.Diagnostics}
	outer.GET("/ping", h.Ping)

	return h
}

// /ping
func (h *diagnosticRoutesHandler) Ping(c echo.Context) error {
	if err := h.diagnosticService.Ping(); err != nil {
		if e := c.JSON(http.StatusServiceUnavailable, errorResponse{Reason: "Storage is unavailable"}); e != nil {
			return e
		}

		return err
	}

	return c.JSON(http.StatusOK, "ok")
}
