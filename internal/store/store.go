package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jakeliukayak/queue/internal/models"
)

type CreateTicketInput struct {
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

type CallNextInput struct {
	CalledAt time.Time
}

// CallNextResult carries the called ticket together with the first two
// still-waiting tickets, read in the same transaction so the engine sees
// one consistent snapshot of the queue.
type CallNextResult struct {
	Called models.Ticket
	UpNext []models.Ticket
}

// ChangeCursor marks the last change event a consumer has processed.
type ChangeCursor struct {
	LastEventTime time.Time
	LastEventID   string
}

type ChangeEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, bool, error)
	ListWaiting(ctx context.Context) ([]models.Ticket, error)
	CallNext(ctx context.Context, input CallNextInput) (CallNextResult, error)
	GetCalledTicket(ctx context.Context) (models.Ticket, bool, error)
	SearchByPhone(ctx context.Context, phone string) ([]models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	CompleteDue(ctx context.Context, delay time.Duration, batchSize int) (int, error)
	ListChangeEvents(ctx context.Context, cursor ChangeCursor, limit int) ([]ChangeEvent, error)
}
