package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/fanout"
	"auction-bidding-api/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestClient_SlowConsumerIsClosed(t *testing.T) {
	c := newClient(nil, uuid.New())
	event := entity.Event{Type: "bid_update", Timestamp: time.Now()}

	for i := 0; i < sendBufferSize; i++ {
		assert.NoError(t, c.Send(event))
	}

	check.True(t, errors.Is(c.Send(event), ErrSlowConsumer))
	check.True(t, errors.Is(c.Send(event), ErrClosed))
}

type snapshotStub struct {
	auctions map[uuid.UUID]*entity.AuctionSnapshotOutputModel
}

func (s snapshotStub) GetAuctionSnapshot(ctx context.Context, auctionId uuid.UUID) (*entity.AuctionSnapshotOutputModel, error) {
	snapshot, ok := s.auctions[auctionId]
	if !ok {
		return nil, service.ErrAuctionNotFound
	}

	return snapshot, nil
}

func startServerWith(t *testing.T, snapshots AuctionSnapshots) (*fanout.Fanout, string) {
	t.Helper()

	f := fanout.New()
	e := echo.New()
	NewHandler(f, snapshots, "*").SetupRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return f, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startServer(t *testing.T) (*fanout.Fanout, string) {
	t.Helper()

	f, base := startServerWith(t, snapshotStub{})

	return f, base + "/ws/notifications"
}

func readEvent(t *testing.T, conn *websocket.Conn) entity.Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	assert.NoError(t, err)

	var event entity.Event
	assert.NoError(t, json.Unmarshal(raw, &event))

	return event
}

func waitForListeners(t *testing.T, f *fanout.Fanout, id uuid.UUID, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.ListenerCount(id) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d listeners, have %d", want, f.ListenerCount(id))
}

func TestNotifications_DeliversPublishedEvents(t *testing.T) {
	f, url := startServer(t)
	bidder := uuid.New()

	conn, _, err := websocket.DefaultDialer.Dial(url+"?user_id="+bidder.String(), nil)
	assert.NoError(t, err)

	check.Equal(t, "connection_established", readEvent(t, conn).Type)
	waitForListeners(t, f, bidder, 1)

	auctionId := uuid.New()
	f.Publish(bidder, entity.Event{Type: "bid_outbid", AuctionId: auctionId, Timestamp: time.Now()})
	got := readEvent(t, conn)
	check.Equal(t, "bid_outbid", got.Type)
	check.Equal(t, auctionId, got.AuctionId)

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	check.Equal(t, "pong", readEvent(t, conn).Type)

	conn.Close()
	waitForListeners(t, f, bidder, 0)
}

func TestNotifications_RequiresIdentity(t *testing.T) {
	_, url := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	check.NotNil(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotifications_HeaderIdentity(t *testing.T) {
	f, url := startServer(t)
	bidder := uuid.New()

	header := http.Header{}
	header.Set("X-User-Id", bidder.String())
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	assert.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn)
	waitForListeners(t, f, bidder, 1)
}

func TestAuctionUpdates_SendsSnapshotThenEvents(t *testing.T) {
	auctionId := uuid.New()
	highest := int64(1500)
	f, base := startServerWith(t, snapshotStub{auctions: map[uuid.UUID]*entity.AuctionSnapshotOutputModel{
		auctionId: {
			AuctionId:         auctionId.String(),
			AuctionName:       "vintage camera",
			CurrentHighestBid: &highest,
			BidCount:          3,
			AuctionStatus:     "active",
			EndTime:           "2026-03-01T13:00:00Z",
		},
	}})
	bidder := uuid.New()

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/auction/"+auctionId.String()+"?user_id="+bidder.String(), nil)
	assert.NoError(t, err)
	defer conn.Close()

	initial := readEvent(t, conn)
	check.Equal(t, "auction_initial_data", initial.Type)
	check.Equal(t, auctionId, initial.AuctionId)
	data, ok := initial.Data.(map[string]any)
	assert.True(t, ok)
	check.Equal[any](t, float64(1500), data["currentHighestBid"])
	check.Equal[any](t, float64(3), data["bidCount"])
	check.Equal[any](t, "active", data["auctionStatus"])

	waitForListeners(t, f, bidder, 1)
	f.Publish(bidder, entity.Event{Type: "bid_update", AuctionId: auctionId, Timestamp: time.Now()})
	check.Equal(t, "bid_update", readEvent(t, conn).Type)
}

func TestAuctionUpdates_UnknownAuction(t *testing.T) {
	_, base := startServerWith(t, snapshotStub{})
	bidder := uuid.New()

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/auction/"+uuid.NewString()+"?user_id="+bidder.String(), nil)
	check.NotNil(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws/auction/not-a-uuid?user_id="+bidder.String(), nil)
	check.NotNil(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
