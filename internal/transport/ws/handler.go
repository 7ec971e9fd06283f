package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/fanout"
	"auction-bidding-api/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Reason string `json:"reason"`
}

// AuctionSnapshots provides the initial state of an auction for clients that
// follow it.
type AuctionSnapshots interface {
	GetAuctionSnapshot(ctx context.Context, auctionId uuid.UUID) (*entity.AuctionSnapshotOutputModel, error)
}

// Handler upgrades notification connections and keeps them registered with
// the fanout for as long as they stay open.
type Handler struct {
	fanout    *fanout.Fanout
	snapshots AuctionSnapshots
	upgrader  websocket.Upgrader
}

func NewHandler(f *fanout.Fanout, snapshots AuctionSnapshots, allowedOrigin string) *Handler {
	return &Handler{
		fanout:    f,
		snapshots: snapshots,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Handler) SetupRoutes(handler *echo.Echo) {
	handler.GET("/ws/notifications", h.Notifications)
	handler.GET("/ws/auction/:auctionId", h.AuctionUpdates)
}

// Browsers can't set headers on a websocket handshake, so the gateway may
// pass the bidder id as a query parameter instead.
func bidderIdFromRequest(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(common.UserIdHeader)
	if raw == "" {
		raw = c.QueryParam("user_id")
	}

	return uuid.Parse(raw)
}

// /ws/notifications
func (h *Handler) Notifications(c echo.Context) error {
	bidderId, err := bidderIdFromRequest(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{"Please provide your user id"})
	}

	client, err := h.connect(c, bidderId)
	if err != nil {
		return nil
	}
	client.Send(controlEvent("connection_established", map[string]string{
		"userId":  bidderId.String(),
		"message": "Connected to notification service",
	}))

	h.serve(client)

	return nil
}

// /ws/auction/:auctionId
//
// Same stream as /ws/notifications, opened with a snapshot of one auction.
func (h *Handler) AuctionUpdates(c echo.Context) error {
	bidderId, err := bidderIdFromRequest(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{"Please provide your user id"})
	}

	auctionId, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"Auction id is not a valid uuid"})
	}
	if _, err := h.snapshots.GetAuctionSnapshot(c.Request().Context(), auctionId); err != nil {
		return snapshotError(c, err)
	}

	client, err := h.connect(c, bidderId)
	if err != nil {
		return nil
	}

	// read after registering, so no update committed in between is missed
	snapshot, err := h.snapshots.GetAuctionSnapshot(c.Request().Context(), auctionId)
	if err != nil {
		logrus.WithField("auction_id", auctionId).WithError(err).Warn("failed to load auction snapshot")
		client.close()
	} else {
		client.Send(entity.Event{
			Type:      common.EventAuctionInitialData,
			AuctionId: auctionId,
			Data:      snapshot,
			Timestamp: time.Now().UTC(),
		})
	}

	h.serve(client)

	return nil
}

func snapshotError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrAuctionNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{service.ErrAuctionNotFound.Error()})
	}
	logrus.WithError(err).Error("failed to load auction snapshot")

	return c.JSON(http.StatusInternalServerError, errorResponse{"Internal server error"})
}

// connect upgrades the request and registers the client with the fanout.
func (h *Handler) connect(c echo.Context, bidderId uuid.UUID) (*Client, error) {
	conn, err := h.upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return nil, err
	}

	client := newClient(conn, bidderId)
	h.fanout.RegisterListener(bidderId, client)
	logrus.WithFields(logrus.Fields{"bidder_id": bidderId, "client_id": client.id}).Info("notification listener connected")

	go client.writePump()

	return client, nil
}

// serve blocks until the peer goes away, then unregisters the client.
func (h *Handler) serve(client *Client) {
	client.readPump()

	h.fanout.UnregisterListener(client.bidderId, client)
	logrus.WithFields(logrus.Fields{"bidder_id": client.bidderId, "client_id": client.id}).Info("notification listener disconnected")
}
