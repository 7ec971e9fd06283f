// Package natsbus archives committed auction outcomes on a JetStream stream.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const (
	StreamName     = "BID_EVENTS"
	subjectPattern = "bid.events.*"
)

// Record is the archived form of one outcome.
type Record struct {
	EventId   string         `json:"eventId"`
	AuctionId uuid.UUID      `json:"auctionId"`
	Placed    *entity.Bid    `json:"placed,omitempty"`
	Highest   *entity.Bid    `json:"highest,omitempty"`
	TotalBids int            `json:"totalBids"`
	EndDate   time.Time      `json:"endDate"`
	Events    []entity.Event `json:"events"`
	Timestamp time.Time      `json:"timestamp"`
}

type Archive struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

func NewArchive(ctx context.Context, url string) (*Archive, error) {
	conn, err := nats.Connect(url, nats.Name("auction-bidding-api"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Committed bid and auction events",
		Subjects:    []string{subjectPattern},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	logrus.WithField("stream", StreamName).Info("jetstream stream ready")

	return &Archive{conn: conn, js: js}, nil
}

func Subject(auctionId uuid.UUID) string {
	return fmt.Sprintf("bid.events.%s", auctionId)
}

func NewRecord(outcome *entity.Outcome, now time.Time) Record {
	events := make([]entity.Event, 0, len(outcome.Deliveries))
	for _, delivery := range outcome.Deliveries {
		events = append(events, delivery.Event)
	}

	eventId := outcome.Id
	if eventId == uuid.Nil {
		eventId = uuid.New()
	}

	return Record{
		EventId:   eventId.String(),
		AuctionId: outcome.AuctionId,
		Placed:    outcome.Placed,
		Highest:   outcome.Highest,
		TotalBids: outcome.TotalBids,
		EndDate:   outcome.EndDate,
		Events:    events,
		Timestamp: now,
	}
}

func (a *Archive) Name() string {
	return "nats"
}

func (a *Archive) Handle(ctx context.Context, outcome *entity.Outcome) error {
	record := NewRecord(outcome, time.Now().UTC())
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// a retried publish carries the same event id, so JetStream stores it once
	if _, err := a.js.Publish(ctx, Subject(outcome.AuctionId), data, jetstream.WithMsgID(record.EventId)); err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	return nil
}

func (a *Archive) Close() {
	a.conn.Drain()
}
