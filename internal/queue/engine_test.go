package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Dispatch(ctx context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) recorded() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

// memStore is an in-memory TicketStore with the same ordering and
// transition semantics as the Postgres implementation.
type memStore struct {
	mu      sync.Mutex
	tickets []models.Ticket
	events  []store.ChangeEvent
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, t := range m.tickets {
		if t.TicketNumber > max {
			max = t.TicketNumber
		}
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	ticket := models.Ticket{
		TicketID:     fmt.Sprintf("ticket-%d", max+1),
		TicketNumber: max + 1,
		Name:         input.Name,
		Phone:        input.Phone,
		Email:        input.Email,
		Status:       models.StatusWaiting,
		CreatedAt:    createdAt,
	}
	m.tickets = append(m.tickets, ticket)
	return ticket, nil
}

func (m *memStore) GetTicket(ctx context.Context, ticketID string) (models.Ticket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.TicketID == ticketID {
			return t, true, nil
		}
	}
	return models.Ticket{}, false, nil
}

func (m *memStore) waitingLocked() []models.Ticket {
	var waiting []models.Ticket
	for _, t := range m.tickets {
		if t.Status == models.StatusWaiting {
			waiting = append(waiting, t)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if !waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
		}
		return waiting[i].TicketNumber < waiting[j].TicketNumber
	})
	return waiting
}

func (m *memStore) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitingLocked(), nil
}

func (m *memStore) CallNext(ctx context.Context, input store.CallNextInput) (store.CallNextResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waiting := m.waitingLocked()
	if len(waiting) == 0 {
		return store.CallNextResult{}, store.ErrNoTicket
	}
	head := waiting[0]
	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}
	for i := range m.tickets {
		if m.tickets[i].TicketID == head.TicketID {
			m.tickets[i].Status = models.StatusCalled
			m.tickets[i].CalledAt = &calledAt
			head = m.tickets[i]
		}
	}
	upNext := m.waitingLocked()
	if len(upNext) > 2 {
		upNext = upNext[:2]
	}
	return store.CallNextResult{Called: head, UpNext: upNext}, nil
}

func (m *memStore) GetCalledTicket(ctx context.Context) (models.Ticket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest models.Ticket
	found := false
	for _, t := range m.tickets {
		if t.Status != models.StatusCalled {
			continue
		}
		if !found || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
			found = true
		}
	}
	return latest, found, nil
}

func (m *memStore) SearchByPhone(ctx context.Context, phone string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Ticket
	for _, t := range m.tickets {
		if t.Phone == phone {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func (m *memStore) DeleteTicket(ctx context.Context, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tickets {
		if t.TicketID == ticketID {
			m.tickets = append(m.tickets[:i], m.tickets[i+1:]...)
			return nil
		}
	}
	return store.ErrTicketNotFound
}

func (m *memStore) CompleteDue(ctx context.Context, delay time.Duration, batchSize int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-delay)
	count := 0
	for i := range m.tickets {
		if m.tickets[i].Status != models.StatusCalled || m.tickets[i].CalledAt == nil {
			continue
		}
		if m.tickets[i].CalledAt.After(cutoff) {
			continue
		}
		completedAt := time.Now().UTC()
		m.tickets[i].Status = models.StatusCompleted
		m.tickets[i].CompletedAt = &completedAt
		count++
	}
	return count, nil
}

func (m *memStore) ListChangeEvents(ctx context.Context, cursor store.ChangeCursor, limit int) ([]store.ChangeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.ChangeEvent(nil), m.events...), nil
}

func register(t *testing.T, e *Engine, name string) models.Ticket {
	t.Helper()
	ticket, err := e.Register(context.Background(), name, "555-000-"+name, name+"@example.com")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return ticket
}

func TestRegisterAssignsIncreasingNumbers(t *testing.T) {
	e := NewEngine(newMemStore(), &recordingNotifier{})

	var last int64
	for i := 0; i < 5; i++ {
		ticket := register(t, e, fmt.Sprintf("customer-%d", i))
		if ticket.TicketNumber <= last {
			t.Fatalf("ticket number %d not greater than %d", ticket.TicketNumber, last)
		}
		if ticket.Status != models.StatusWaiting {
			t.Fatalf("expected waiting status, got %s", ticket.Status)
		}
		last = ticket.TicketNumber
	}
}

func TestPositionOf(t *testing.T) {
	waiting := []models.Ticket{
		{TicketID: "t-1", TicketNumber: 1, Status: models.StatusWaiting},
		{TicketID: "t-2", TicketNumber: 2, Status: models.StatusWaiting},
		{TicketID: "t-3", TicketNumber: 3, Status: models.StatusWaiting},
	}

	if pos, ok := PositionOf(waiting[0], waiting); !ok || pos != 1 {
		t.Fatalf("expected position 1, got %d ok=%v", pos, ok)
	}
	if pos, ok := PositionOf(waiting[2], waiting); !ok || pos != 3 {
		t.Fatalf("expected position 3, got %d ok=%v", pos, ok)
	}

	called := models.Ticket{TicketID: "t-4", TicketNumber: 4, Status: models.StatusCalled}
	if _, ok := PositionOf(called, waiting); ok {
		t.Fatal("expected no position for a called ticket")
	}
	completed := models.Ticket{TicketID: "t-5", TicketNumber: 5, Status: models.StatusCompleted}
	if _, ok := PositionOf(completed, waiting); ok {
		t.Fatal("expected no position for a completed ticket")
	}
}

func TestPositionOfRequiresSnapshotMembership(t *testing.T) {
	waiting := []models.Ticket{
		{TicketID: "t-1", TicketNumber: 1, Status: models.StatusWaiting},
		{TicketID: "t-2", TicketNumber: 2, Status: models.StatusWaiting},
	}

	absent := models.Ticket{TicketID: "t-7", TicketNumber: 7, Status: models.StatusWaiting}
	if pos, ok := PositionOf(absent, waiting); ok {
		t.Fatalf("expected no position for a ticket missing from the snapshot, got %d", pos)
	}
	if _, ok := PositionOf(absent, nil); ok {
		t.Fatal("expected no position against an empty snapshot")
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	notifier := &recordingNotifier{}
	e := NewEngine(newMemStore(), notifier)

	result, err := e.CallNext(context.Background())
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result on empty queue, got %+v", result)
	}
	if len(notifier.recorded()) != 0 {
		t.Fatalf("expected no events, got %d", len(notifier.recorded()))
	}
}

func TestCallNextSingleTicket(t *testing.T) {
	notifier := &recordingNotifier{}
	st := newMemStore()
	e := NewEngine(st, notifier)

	only := register(t, e, "alice")

	result, err := e.CallNext(context.Background())
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.Called.TicketID != only.TicketID || result.Called.Status != models.StatusCalled {
		t.Fatalf("unexpected called ticket: %+v", result.Called)
	}
	if result.Next != nil {
		t.Fatalf("expected nil next, got %+v", result.Next)
	}

	events := notifier.recorded()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].Type != EventCustomerCalled || events[0].Ticket.TicketID != only.TicketID {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestCallNextNotifiesUpcoming(t *testing.T) {
	notifier := &recordingNotifier{}
	st := newMemStore()
	e := NewEngine(st, notifier)

	a := register(t, e, "alice")
	b := register(t, e, "bob")
	c := register(t, e, "carol")
	register(t, e, "dave")

	result, err := e.CallNext(context.Background())
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if result.Called.TicketID != a.TicketID {
		t.Fatalf("expected %s called, got %s", a.TicketID, result.Called.TicketID)
	}
	if result.Next == nil || result.Next.TicketID != b.TicketID {
		t.Fatalf("expected next %s, got %+v", b.TicketID, result.Next)
	}

	events := notifier.recorded()
	if len(events) != 3 {
		t.Fatalf("expected three events, got %d", len(events))
	}
	if events[0].Type != EventCustomerCalled || events[0].Ticket.TicketID != a.TicketID {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != EventCustomerNowNext || events[1].Ticket.TicketID != b.TicketID {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[2].Type != EventCustomerAtPositionThree || events[2].Ticket.TicketID != c.TicketID {
		t.Fatalf("unexpected third event: %+v", events[2])
	}
}

func TestRegisterCallNextScenario(t *testing.T) {
	notifier := &recordingNotifier{}
	e := NewEngine(newMemStore(), notifier)

	a := register(t, e, "alice")
	b := register(t, e, "bob")
	c := register(t, e, "carol")

	waiting, err := e.ListWaiting(context.Background())
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	wantOrder := []string{a.TicketID, b.TicketID, c.TicketID}
	for i, ticket := range waiting {
		if ticket.TicketID != wantOrder[i] {
			t.Fatalf("position %d: want %s, got %s", i+1, wantOrder[i], ticket.TicketID)
		}
		pos, ok := PositionOf(ticket, waiting)
		if !ok || pos != i+1 {
			t.Fatalf("expected position %d, got %d ok=%v", i+1, pos, ok)
		}
	}

	result, err := e.CallNext(context.Background())
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if result.Called.TicketID != a.TicketID {
		t.Fatalf("expected %s called, got %s", a.TicketID, result.Called.TicketID)
	}
	if result.Next == nil || result.Next.TicketID != b.TicketID {
		t.Fatalf("expected %s next, got %+v", b.TicketID, result.Next)
	}

	waiting, err = e.ListWaiting(context.Background())
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 2 || waiting[0].TicketID != b.TicketID || waiting[1].TicketID != c.TicketID {
		t.Fatalf("unexpected waiting list after call next: %+v", waiting)
	}

	called, found, err := e.CalledTicket(context.Background())
	if err != nil || !found {
		t.Fatalf("expected a called ticket, found=%v err=%v", found, err)
	}
	if called.TicketID != a.TicketID {
		t.Fatalf("expected called ticket %s, got %s", a.TicketID, called.TicketID)
	}
}

func TestSearchByPhoneNewestFirst(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, &recordingNotifier{})

	first, err := e.Register(context.Background(), "alice", "5551234567", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := e.Register(context.Background(), "alice", "5551234567", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Register(context.Background(), "bob", "5559876543", "bob@example.com"); err != nil {
		t.Fatalf("register: %v", err)
	}

	results, err := e.SearchByPhone(context.Background(), " 5551234567 ")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two matches, got %d", len(results))
	}
	if results[0].TicketID != second.TicketID || results[1].TicketID != first.TicketID {
		t.Fatalf("expected newest first: %+v", results)
	}
}
