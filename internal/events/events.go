package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/masapos/api/internal/enum"
	"github.com/masapos/api/internal/ws"
	"github.com/nats-io/nats.go"
)

// NATS subjects.
const (
	SubjectTableStatus   = "tables.status"
	SubjectOrderPayments = "orders.payments"
)

// Event is a state change pushed to floor terminals and subscribers.
type Event struct {
	Type    string     `json:"type"`
	TableID uuid.UUID  `json:"table_id"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
	Data    any        `json:"data,omitempty"`
	At      time.Time  `json:"at"`
}

// Publisher delivers events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTable(tableID uuid.UUID, event ws.Event)
}

// HubPublisher pushes events to websocket clients watching the table or the floor.
type HubPublisher struct {
	hub Broadcaster
}

// NewHubPublisher creates a new HubPublisher.
func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.hub.BroadcastToTable(e.TableID, ws.Event{Type: e.Type, Payload: payload})
	return nil
}

// NATSPublisher forwards table status and payment events to NATS.
// Other event types are not published.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("masapos-api"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	subject := SubjectFor(e.Type)
	if subject == "" {
		return nil
	}
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// SubjectFor maps an event type to its NATS subject, or "" when it is not published.
func SubjectFor(eventType string) string {
	switch eventType {
	case enum.EventTableStatusChanged:
		return SubjectTableStatus
	case enum.EventPaymentRecorded:
		return SubjectOrderPayments
	}
	return ""
}
