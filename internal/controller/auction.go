package controller

import (
	"net/http"

	"auction-bidding-api/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo"
)

type auctionRoutesHandler struct {
	auctionService service.Auction
}

func newAuctionRoutesHandler(outer *echo.Group, services *service.Services) *auctionRoutesHandler {
	h := &auctionRoutesHandler{auctionService: services.Auction}
	outer.GET("/auctions/:auctionId", h.GetAuction)
	outer.POST("/auctions/:auctionId/finalize", h.FinalizeAuction)

	return h
}

// /auctions/:auctionId
func (h *auctionRoutesHandler) GetAuction(c echo.Context) error {
	auctionId, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		return writeBadRequest(c, "Auction id is not a valid uuid", err)
	}

	auction, err := h.auctionService.GetAuction(c.Request().Context(), auctionId)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, auction)
}

// /auctions/:auctionId/finalize
func (h *auctionRoutesHandler) FinalizeAuction(c echo.Context) error {
	auctionId, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		return writeBadRequest(c, "Auction id is not a valid uuid", err)
	}

	result, err := h.auctionService.FinalizeAuction(c.Request().Context(), auctionId)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
