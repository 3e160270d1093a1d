package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var nextNumber int64
	row := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(ticket_number), 0) + 1
		FROM tickets
	`)
	if err = row.Scan(&nextNumber); err != nil {
		return models.Ticket{}, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	ticket := models.Ticket{
		TicketID:     uuid.NewString(),
		TicketNumber: nextNumber,
		Name:         input.Name,
		Phone:        input.Phone,
		Email:        input.Email,
		Status:       models.StatusWaiting,
		CreatedAt:    createdAt,
	}

	// The unique constraint on ticket_number is the backstop for two
	// registrations racing on the same MAX+1 read.
	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (ticket_id, ticket_number, name, phone_number, email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticket.TicketID, ticket.TicketNumber, ticket.Name, ticket.Phone, ticket.Email, ticket.Status, ticket.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			err = store.ErrTicketNumberConflict
		}
		return models.Ticket{}, err
	}

	if err = insertChangeEvent(ctx, tx, "ticket.created", ticket); err != nil {
		return models.Ticket{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}

	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ticket_id, ticket_number, name, phone_number, email, status, created_at, called_at, completed_at
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, ticket_number, name, phone_number, email, status, created_at, called_at, completed_at
		FROM tickets
		WHERE status = 'waiting'
		ORDER BY created_at ASC, ticket_number ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (store.CallNextResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.CallNextResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	// Status transition and head selection in one statement: a concurrent
	// call-next cannot transition the same ticket twice.
	row := tx.QueryRow(ctx, `
		WITH next_ticket AS (
			SELECT ticket_id
			FROM tickets
			WHERE status = 'waiting'
			ORDER BY created_at ASC, ticket_number ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE tickets
		SET status = 'called',
			called_at = $1
		FROM next_ticket
		WHERE tickets.ticket_id = next_ticket.ticket_id
		RETURNING tickets.ticket_id, tickets.ticket_number, tickets.name, tickets.phone_number, tickets.email,
			tickets.status, tickets.created_at, tickets.called_at, tickets.completed_at
	`, calledAt)
	called, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrNoTicket
		}
		return store.CallNextResult{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT ticket_id, ticket_number, name, phone_number, email, status, created_at, called_at, completed_at
		FROM tickets
		WHERE status = 'waiting'
		ORDER BY created_at ASC, ticket_number ASC
		LIMIT 2
	`)
	if err != nil {
		return store.CallNextResult{}, err
	}
	upNext, err := collectTickets(rows)
	if err != nil {
		return store.CallNextResult{}, err
	}

	if err = insertChangeEvent(ctx, tx, "ticket.called", called); err != nil {
		return store.CallNextResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.CallNextResult{}, err
	}

	return store.CallNextResult{Called: called, UpNext: upNext}, nil
}

func (s *Store) GetCalledTicket(ctx context.Context) (models.Ticket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ticket_id, ticket_number, name, phone_number, email, status, created_at, called_at, completed_at
		FROM tickets
		WHERE status = 'called'
		ORDER BY created_at DESC
		LIMIT 1
	`)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) SearchByPhone(ctx context.Context, phone string) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, ticket_number, name, phone_number, email, status, created_at, called_at, completed_at
		FROM tickets
		WHERE phone_number = $1
		ORDER BY created_at DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *Store) DeleteTicket(ctx context.Context, ticketID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		DELETE FROM tickets
		WHERE ticket_id = $1
		RETURNING ticket_id, ticket_number, name, phone_number, email, status, created_at, called_at, completed_at
	`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTicketNotFound
		}
		return err
	}

	if err = insertChangeEvent(ctx, tx, "ticket.deleted", ticket); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CompleteDue transitions every called ticket whose called_at is at least
// delay old to completed. Due-ness derives from the persisted called_at, so
// a restart between call-next and the sweep loses nothing.
func (s *Store) CompleteDue(ctx context.Context, delay time.Duration, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cutoff := time.Now().UTC().Add(-delay)
	rows, err := tx.Query(ctx, `
		WITH due AS (
			SELECT ticket_id
			FROM tickets
			WHERE status = 'called' AND called_at <= $1
			ORDER BY called_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		UPDATE tickets
		SET status = 'completed',
			completed_at = $3
		FROM due
		WHERE tickets.ticket_id = due.ticket_id
		RETURNING tickets.ticket_id, tickets.ticket_number, tickets.name, tickets.phone_number, tickets.email,
			tickets.status, tickets.created_at, tickets.called_at, tickets.completed_at
	`, cutoff, batchSize, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	completed, err := collectTickets(rows)
	if err != nil {
		return 0, err
	}

	for _, ticket := range completed {
		if err = insertChangeEvent(ctx, tx, "ticket.completed", ticket); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	return len(completed), nil
}

func (s *Store) ListChangeEvents(ctx context.Context, cursor store.ChangeCursor, limit int) ([]store.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE created_at > $1 OR (created_at = $1 AND event_id > $2)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, cursor.LastEventTime, cursor.LastEventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.ChangeEvent
	for rows.Next() {
		var event store.ChangeEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
