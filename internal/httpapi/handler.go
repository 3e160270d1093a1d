package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/queue"
	"github.com/jakeliukayak/queue/internal/store"

	"github.com/google/uuid"
)

// maxEventsLimit bounds the page size a client can request from /api/events.
const maxEventsLimit = 500

type QueueEngine interface {
	Register(ctx context.Context, name, phone, email string) (models.Ticket, error)
	ListWaiting(ctx context.Context) ([]models.Ticket, error)
	CallNext(ctx context.Context) (*queue.CallNextResult, error)
	CalledTicket(ctx context.Context) (models.Ticket, bool, error)
	SearchByPhone(ctx context.Context, phone string) ([]models.Ticket, error)
	RemoveTicket(ctx context.Context, ticketID string) error
	ChangeEvents(ctx context.Context, cursor store.ChangeCursor, limit int) ([]store.ChangeEvent, error)
}

type Handler struct {
	engine QueueEngine
}

func NewHandler(engine QueueEngine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleRegister)
	mux.HandleFunc("/api/tickets/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/tickets/called", h.handleCalledTicket)
	mux.HandleFunc("/api/tickets/search", h.handleSearch)
	mux.HandleFunc("/api/tickets/", h.handleDeleteTicket)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

type registerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone_number"`
	Email string `json:"email"`
}

type queueEntry struct {
	models.Ticket
	Position    int `json:"position"`
	PeopleAhead int `json:"people_ahead"`
}

type searchResult struct {
	models.Ticket
	Position *int `json:"position,omitempty"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" || req.Phone == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name, phone_number, and email are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_request", "email must be a valid address")
		return
	}

	ticket, err := h.engine.Register(r.Context(), req.Name, req.Phone, req.Email)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// handleQueue serves the waiting list with positions. Read failures degrade
// to an empty queue so the display never breaks on a transient error.
func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	waiting, err := h.engine.ListWaiting(r.Context())
	if err != nil {
		log.Printf("list waiting error: %v", err)
		waiting = nil
	}

	entries := make([]queueEntry, 0, len(waiting))
	for _, ticket := range waiting {
		position, ok := queue.PositionOf(ticket, waiting)
		if !ok {
			continue
		}
		entries = append(entries, queueEntry{
			Ticket:      ticket,
			Position:    position,
			PeopleAhead: position - 1,
		})
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result, err := h.engine.CallNext(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCalledTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticket, found, err := h.engine.CalledTicket(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// handleSearch looks up tickets by exact phone match, newest first, with the
// position attached to any still-waiting ones. Fails soft to an empty list.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "phone is required")
		return
	}

	tickets, err := h.engine.SearchByPhone(r.Context(), phone)
	if err != nil {
		log.Printf("search by phone error: %v", err)
		tickets = nil
	}

	var waiting []models.Ticket
	if len(tickets) > 0 {
		waiting, err = h.engine.ListWaiting(r.Context())
		if err != nil {
			log.Printf("list waiting error: %v", err)
			waiting = nil
		}
	}

	results := make([]searchResult, 0, len(tickets))
	for _, ticket := range tickets {
		result := searchResult{Ticket: ticket}
		if position, ok := queue.PositionOf(ticket, waiting); ok {
			result.Position = &position
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticketID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tickets/"), "/")
	if !isValidUUID(ticketID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	if err := h.engine.RemoveTicket(r.Context(), ticketID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var cursor store.ChangeCursor
	if afterRaw := strings.TrimSpace(r.URL.Query().Get("after")); afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be an RFC3339 timestamp")
			return
		}
		cursor.LastEventTime = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	events, err := h.engine.ChangeEvents(r.Context(), cursor, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrTicketNumberConflict):
		return http.StatusConflict, "ticket_number_conflict", "could not assign a ticket number, please try again"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
