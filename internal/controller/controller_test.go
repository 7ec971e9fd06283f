package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo"
	"auction-bidding-api/internal/repo/memdb"
	"auction-bidding-api/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler *echo.Echo
	store   *memdb.Store
	auction entity.Auction
	bidder  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memdb.NewStore(time.Second)
	auction := entity.Auction{
		Id:        uuid.New(),
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		PriceStep: 1000,
		Status:    common.AuctionActive,
	}
	store.PutAuction(auction)
	bidder := uuid.New()
	store.PutDeposit(auction.Id, bidder)

	services := service.NewServices(repo.NewMemoryRepositories(store), service.Options{
		Now: func() time.Time { return now },
	})
	handler := echo.New()
	SetupRoutesHandlers(handler, services)

	return &testServer{handler: handler, store: store, auction: auction, bidder: bidder}
}

func (s *testServer) do(method, target, body string, user uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != uuid.Nil {
		req.Header.Set(common.UserIdHeader, user.String())
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	return rec
}

func (s *testServer) placeBody(amount int) string {
	return `{"auctionId":"` + s.auction.Id.String() + `","amount":` + strconv.Itoa(amount) + `}`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}

	return v
}

func TestPlaceBid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/bids/place", s.placeBody(1000), s.bidder)
	assert.Equal(t, http.StatusCreated, rec.Code)
	bid := decode[entity.PlaceBidOutputModel](t, rec)
	check.Equal(t, int64(1000), bid.Amount)
	check.Equal(t, s.auction.Id.String(), bid.AuctionId)
	check.False(t, bid.Extended)

	rec = s.do(http.MethodPost, "/api/bids/place", s.placeBody(1500), s.bidder)
	check.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	check.Equal(t, int64(2000), resp.MinimumBid)
	check.True(t, strings.Contains(resp.Reason, "2000"))
}

func TestPlaceBid_RequestErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		user uuid.UUID
		want int
	}{
		{name: "no identity", body: s.placeBody(1000), user: uuid.Nil, want: http.StatusUnauthorized},
		{name: "malformed json", body: `{"auctionId":`, user: s.bidder, want: http.StatusBadRequest},
		{name: "missing amount", body: `{"auctionId":"` + s.auction.Id.String() + `"}`, user: s.bidder, want: http.StatusBadRequest},
		{name: "bad auction id", body: `{"auctionId":"nope","amount":1000}`, user: s.bidder, want: http.StatusBadRequest},
		{name: "unknown auction", body: `{"auctionId":"` + uuid.NewString() + `","amount":1000}`, user: s.bidder, want: http.StatusNotFound},
		{name: "no deposit", body: s.placeBody(1000), user: uuid.New(), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/bids/place", tt.body, tt.user)
			check.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCancelBid(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/bids/place", s.placeBody(1000), s.bidder)
	assert.Equal(t, http.StatusCreated, rec.Code)
	bid := decode[entity.PlaceBidOutputModel](t, rec)

	rec = s.do(http.MethodPost, "/api/bids/"+bid.Id+"/cancel", "", uuid.New())
	check.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/bids/"+bid.Id+"/cancel", "", s.bidder)
	assert.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[entity.CancelBidOutputModel](t, rec)
	check.Equal(t, common.BidCancelled, cancelled.Status)
	check.True(t, cancelled.Extended)

	rec = s.do(http.MethodPost, "/api/bids/"+uuid.NewString()+"/cancel", "", s.bidder)
	check.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadRoutes(t *testing.T) {
	s := newTestServer(t)
	auctionPath := "/api/bids/auction/" + s.auction.Id.String()

	rec := s.do(http.MethodGet, auctionPath+"/highest", "", uuid.Nil)
	check.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/bids/place", s.placeBody(3000), s.bidder)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, auctionPath+"/highest", "", uuid.Nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, int64(3000), decode[entity.BidOutputModel](t, rec).Amount)

	rec = s.do(http.MethodGet, auctionPath+"?limit=10&offset=0", "", uuid.Nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, 1, len(decode[[]entity.BidOutputModel](t, rec)))

	rec = s.do(http.MethodGet, auctionPath+"?limit=1000", "", uuid.Nil)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, auctionPath+"/my-status", "", s.bidder)
	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode[entity.MyBidStatusOutputModel](t, rec)
	check.True(t, status.IsLeading)
	check.Equal(t, 1, status.TotalBids)

	rec = s.do(http.MethodGet, auctionPath+"/my-status", "", uuid.Nil)
	check.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/auctions/"+s.auction.Id.String(), "", uuid.Nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, int64(10000), decode[entity.AuctionOutputModel](t, rec).DepositAmount)
}

func TestFinalizeBeforeEnd(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auctions/"+s.auction.Id.String()+"/finalize", "", uuid.Nil)
	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/ping", "", uuid.Nil)
	check.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusOfContention(t *testing.T) {
	check.Equal(t, http.StatusConflict, statusOf(service.ErrContention))
	check.Equal(t, http.StatusInternalServerError, statusOf(service.ErrPersistenceFailure))
}

func TestGetMyBids(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/bids/my-bids", "", uuid.Nil)
	check.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/bids/my-bids", "", s.bidder)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, 0, len(decode[[]entity.BidOutputModel](t, rec)))

	for _, amount := range []int{1000, 2000} {
		rec = s.do(http.MethodPost, "/api/bids/place", s.placeBody(amount), s.bidder)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/bids/my-bids?limit=1", "", s.bidder)
	assert.Equal(t, http.StatusOK, rec.Code)
	bids := decode[[]entity.BidOutputModel](t, rec)
	assert.Equal(t, 1, len(bids))
	check.Equal(t, s.bidder.String(), bids[0].BidderId)

	rec = s.do(http.MethodGet, "/api/bids/my-bids?limit=-1", "", s.bidder)
	check.Equal(t, http.StatusBadRequest, rec.Code)
}
