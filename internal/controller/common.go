package controller

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo"
)

const (
	defaultLimit  = 20
	defaultOffset = 0
)

type errorResponse struct {
	Reason     string `json:"reason"`
	Retryable  bool   `json:"retryable,omitempty"`
	MinimumBid int64  `json:"minimumBid,omitempty"`
}

var errMissingIdentity = errors.New("missing or malformed bidder identity")

// bidderId reads the identity the auth gateway put on the request.
func bidderId(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Request().Header.Get(common.UserIdHeader))
	if err != nil {
		return uuid.Nil, errMissingIdentity
	}

	return id, nil
}

func writeUnauthorized(c echo.Context) error {
	if e := c.JSON(http.StatusUnauthorized, errorResponse{Reason: "Please provide your user id"}); e != nil {
		return e
	}

	return errMissingIdentity
}

func writeBadRequest(c echo.Context, reason string, err error) error {
	if e := c.JSON(http.StatusBadRequest, errorResponse{Reason: reason}); e != nil {
		return e
	}

	return err
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrAuctionNotFound),
		errors.Is(err, service.ErrBidNotFound),
		errors.Is(err, service.ErrNoBids):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrContention):
		return http.StatusConflict
	case errors.Is(err, service.ErrAuctionNotActive),
		errors.Is(err, service.ErrDepositRequired),
		errors.Is(err, service.ErrBidTooLow),
		errors.Is(err, service.ErrCancelNotAllowed),
		errors.Is(err, service.ErrAuctionNotEnded),
		errors.Is(err, service.ErrAuctionAlreadyFinalized):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// writeServiceError answers with the status matching err and returns err so
// echo logs it.
func writeServiceError(c echo.Context, err error) error {
	status := statusOf(err)
	resp := errorResponse{Reason: err.Error()}

	switch {
	case status == http.StatusInternalServerError:
		resp.Reason = "Internal server error"
	case errors.Is(err, service.ErrContention):
		resp.Reason = service.ErrContention.Error()
		resp.Retryable = true
	}

	var tooLow *service.BidTooLowError
	if errors.As(err, &tooLow) {
		resp.MinimumBid = tooLow.Minimum
	}

	if e := c.JSON(status, resp); e != nil {
		return e
	}

	return err
}

func getAllErrorMessages(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	var builder strings.Builder
	for _, fe := range validationErrors {
		message := fmt.Sprintf("'%s': %s\n", fe.Field(), getMessage(fe))
		builder.WriteString(message)
	}

	return builder.String()
}

func getMessage(fe validator.FieldError) string {
	switch fe.Type() {
	case reflect.TypeOf(""):
		return getMessageForString(fe)
	case reflect.TypeOf(0), reflect.TypeOf(int32(0)), reflect.TypeOf(int64(0)):
		return getMessageForInt(fe)
	}

	return "incorrect value passed"
}

func getMessageForInt(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		return "should be less or equal than " + fe.Param()
	case "gte", "min":
		return "should be greater or equal than " + fe.Param()
	case "gt":
		return "should be greater than " + fe.Param()
	}

	return "incorrect value passed"
}

func getMessageForString(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid", "uuid4":
		return "should be a valid uuid"
	case "lte", "max":
		return "length should be less or equal than " + fe.Param()
	case "gte", "min":
		return "length should be greater or equal than " + fe.Param()
	}

	return "incorrect value passed"
}
