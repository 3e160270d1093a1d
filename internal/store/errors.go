package store

import "errors"

var (
	ErrNoTicket             = errors.New("no ticket available")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrTicketNumberConflict = errors.New("ticket number already taken")
)
