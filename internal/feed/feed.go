// Package feed is the change-feed transport for the orders table: every
// write publishes an insert/update/delete event, and dashboards subscribe
// to the branches they own.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/mq"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Publisher emits change-feed events onto the orders exchange.
type Publisher struct {
	client *mq.Client
}

func NewPublisher(client *mq.Client) *Publisher {
	return &Publisher{client: client}
}

func routingKey(branchID string) string { return "order." + branchID }

func (p *Publisher) PublishEvent(ctx context.Context, ev domain.FeedEvent) error {
	row := ev.Row()
	if row == nil {
		return fmt.Errorf("feed event without a record")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	return p.client.PublishPersistent(ctx, mq.OrdersExchange, routingKey(row.BranchID), body)
}
