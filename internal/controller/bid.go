package controller

import (
	"net/http"

	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo"
)

type bidRoutesHandler struct {
	bidService service.Bid
	validate   *validator.Validate
}

func newBidRoutesHandler(outer *echo.Group, services *service.Services, v *validator.Validate) *bidRoutesHandler {
	h := &bidRoutesHandler{bidService: services.Bid, validate: v}
	outer.POST("/bids/place", h.PlaceBid)
	outer.POST("/bids/:bidId/cancel", h.CancelBid)
	outer.GET("/bids/my-bids", h.GetMyBids)

	outer.GET("/bids/auction/:auctionId", h.GetAuctionBids)
	outer.GET("/bids/auction/:auctionId/highest", h.GetHighestBid)
	outer.GET("/bids/auction/:auctionId/my-status", h.GetMyBidStatus)

	return h
}

type placeBidInput struct {
	AuctionId string `json:"auctionId" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

// /bids/place
func (h *bidRoutesHandler) PlaceBid(c echo.Context) error {
	bidder, err := bidderId(c)
	if err != nil {
		return writeUnauthorized(c)
	}

	var input placeBidInput
	if err := c.Bind(&input); err != nil {
		return writeBadRequest(c, "Input data is not formed correctly", err)
	}
	if err := h.validate.Struct(input); err != nil {
		return writeBadRequest(c, getAllErrorMessages(err), err)
	}

	model := &entity.PlaceBidInput{
		AuctionId: uuid.MustParse(input.AuctionId),
		BidderId:  bidder,
		Amount:    input.Amount,
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), model)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, bid)
}

// /bids/:bidId/cancel
func (h *bidRoutesHandler) CancelBid(c echo.Context) error {
	bidder, err := bidderId(c)
	if err != nil {
		return writeUnauthorized(c)
	}

	bidId, err := uuid.Parse(c.Param("bidId"))
	if err != nil {
		return writeBadRequest(c, "Bid id is not a valid uuid", err)
	}

	bid, err := h.bidService.CancelBid(c.Request().Context(), bidId, bidder)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, bid)
}

type getAuctionBidsInput struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

func newGetAuctionBidsInput() getAuctionBidsInput {
	return getAuctionBidsInput{Limit: defaultLimit, Offset: defaultOffset}
}

// /bids/auction/:auctionId
func (h *bidRoutesHandler) GetAuctionBids(c echo.Context) error {
	auctionId, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		return writeBadRequest(c, "Auction id is not a valid uuid", err)
	}

	var input = newGetAuctionBidsInput()
	if err := c.Bind(&input); err != nil {
		return writeBadRequest(c, "Input data is not formed correctly", err)
	}
	if err := h.validate.Struct(input); err != nil {
		return writeBadRequest(c, getAllErrorMessages(err), err)
	}

	bids, err := h.bidService.GetAuctionBids(c.Request().Context(), auctionId, entity.NewPaginationInput(input.Limit, input.Offset))
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, bids)
}

// /bids/my-bids
func (h *bidRoutesHandler) GetMyBids(c echo.Context) error {
	bidder, err := bidderId(c)
	if err != nil {
		return writeUnauthorized(c)
	}

	var input = newGetAuctionBidsInput()
	if err := c.Bind(&input); err != nil {
		return writeBadRequest(c, "Input data is not formed correctly", err)
	}
	if err := h.validate.Struct(input); err != nil {
		return writeBadRequest(c, getAllErrorMessages(err), err)
	}

	bids, err := h.bidService.GetUserBids(c.Request().Context(), bidder, entity.NewPaginationInput(input.Limit, input.Offset))
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, bids)
}

// /bids/auction/:auctionId/highest
func (h *bidRoutesHandler) GetHighestBid(c echo.Context) error {
	auctionId, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		return writeBadRequest(c, "Auction id is not a valid uuid", err)
	}

	bid, err := h.bidService.GetHighestBid(c.Request().Context(), auctionId)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, bid)
}

// /bids/auction/:auctionId/my-status
func (h *bidRoutesHandler) GetMyBidStatus(c echo.Context) error {
	bidder, err := bidderId(c)
	if err != nil {
		return writeUnauthorized(c)
	}

	auctionId, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		return writeBadRequest(c, "Auction id is not a valid uuid", err)
	}

	status, err := h.bidService.GetMyBidStatus(c.Request().Context(), auctionId, bidder)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, status)
}
