package queue

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/store"
)

type EventType string

const (
	EventCustomerCalled          EventType = "customer.called"
	EventCustomerNowNext         EventType = "customer.now_next"
	EventCustomerAtPositionThree EventType = "customer.third_in_line"
)

// Event describes a queue transition that may trigger notifications.
type Event struct {
	Type   EventType
	Ticket models.Ticket
}

// Notifier receives queue events. Implementations must not block the queue:
// delivery failures are theirs to log and swallow.
type Notifier interface {
	Dispatch(ctx context.Context, event Event)
}

// CallNextResult is the outcome of one call-next operation. Called is the
// ticket now being served; Next is the new head of the waiting queue, nil
// when nobody is left.
type CallNextResult struct {
	Called models.Ticket  `json:"called_ticket"`
	Next   *models.Ticket `json:"next_ticket,omitempty"`
}

type Engine struct {
	store    store.TicketStore
	notifier Notifier
}

func NewEngine(st store.TicketStore, notifier Notifier) *Engine {
	return &Engine{store: st, notifier: notifier}
}

// Register issues the next ticket number and inserts a waiting ticket. The
// store serializes number assignment; a lost race surfaces as
// store.ErrTicketNumberConflict and the caller retries.
func (e *Engine) Register(ctx context.Context, name, phone, email string) (models.Ticket, error) {
	return e.store.CreateTicket(ctx, store.CreateTicketInput{
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now().UTC(),
	})
}

// ListWaiting returns the waiting queue ordered by arrival. This ordering is
// the single source of truth for positions and for call-next selection.
func (e *Engine) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	return e.store.ListWaiting(ctx)
}

// PositionOf returns the 1-based rank of ticket within waiting. The second
// return is false for tickets that are not waiting, and for tickets absent
// from the snapshot: a rank against a list the ticket is not in would be
// fabricated. waiting must be a consistent snapshot: positions computed from
// stale lists drift together, so refresh before computing several at once.
func PositionOf(ticket models.Ticket, waiting []models.Ticket) (int, bool) {
	if ticket.Status != models.StatusWaiting {
		return 0, false
	}
	found := false
	position := 1
	for _, other := range waiting {
		if other.TicketID == ticket.TicketID {
			found = true
			continue
		}
		if other.Status != models.StatusWaiting {
			continue
		}
		if other.TicketNumber < ticket.TicketNumber {
			position++
		}
	}
	if !found {
		return 0, false
	}
	return position, true
}

// CallNext advances the head of the waiting queue to called and fires the
// position-based notifications. Returns nil when the queue is empty.
//
// The status transition commits before any notification is attempted;
// delivery failures never roll the queue back.
func (e *Engine) CallNext(ctx context.Context) (*CallNextResult, error) {
	res, err := e.store.CallNext(ctx, store.CallNextInput{CalledAt: time.Now().UTC()})
	if err != nil {
		if errors.Is(err, store.ErrNoTicket) {
			return nil, nil
		}
		return nil, err
	}

	e.dispatch(ctx, Event{Type: EventCustomerCalled, Ticket: res.Called})
	if len(res.UpNext) > 0 {
		e.dispatch(ctx, Event{Type: EventCustomerNowNext, Ticket: res.UpNext[0]})
	}
	if len(res.UpNext) > 1 {
		e.dispatch(ctx, Event{Type: EventCustomerAtPositionThree, Ticket: res.UpNext[1]})
	}

	out := &CallNextResult{Called: res.Called}
	if len(res.UpNext) > 0 {
		next := res.UpNext[0]
		out.Next = &next
	}
	return out, nil
}

// CalledTicket returns the ticket currently being called, if any.
func (e *Engine) CalledTicket(ctx context.Context) (models.Ticket, bool, error) {
	return e.store.GetCalledTicket(ctx)
}

// SearchByPhone returns all tickets with an exactly matching phone field,
// newest first. The stored value is matched verbatim; formatting consistency
// is the registration form's concern.
func (e *Engine) SearchByPhone(ctx context.Context, phone string) ([]models.Ticket, error) {
	return e.store.SearchByPhone(ctx, strings.TrimSpace(phone))
}

// RemoveTicket deletes a ticket outright. Administrative use only; the
// normal lifecycle never deletes.
func (e *Engine) RemoveTicket(ctx context.Context, ticketID string) error {
	return e.store.DeleteTicket(ctx, ticketID)
}

func (e *Engine) ChangeEvents(ctx context.Context, cursor store.ChangeCursor, limit int) ([]store.ChangeEvent, error) {
	return e.store.ListChangeEvents(ctx, cursor, limit)
}

func (e *Engine) dispatch(ctx context.Context, event Event) {
	if e.notifier == nil {
		log.Printf("no notifier configured, dropping %s for ticket %d", event.Type, event.Ticket.TicketNumber)
		return
	}
	e.notifier.Dispatch(ctx, event)
}
