package notify

import (
	"context"
	"log"

	"github.com/jakeliukayak/queue/internal/queue"
)

// SMSSender delivers a text message. Returns false on any failure, including
// missing configuration; details are logged by the implementation.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) bool
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) bool
}

// Dispatcher maps queue events to notification sends. Each channel attempt
// is independent: one failed send never suppresses the others for the same
// event, and nothing here ever propagates back to the queue transition.
type Dispatcher struct {
	sms         SMSSender
	email       EmailSender
	queueName   string
	countryCode string
}

type DispatcherConfig struct {
	QueueName          string
	DefaultCountryCode string
}

func NewDispatcher(sms SMSSender, email EmailSender, cfg DispatcherConfig) *Dispatcher {
	queueName := cfg.QueueName
	if queueName == "" {
		queueName = "Walk-In Queue"
	}
	countryCode := cfg.DefaultCountryCode
	if countryCode == "" {
		countryCode = "+1"
	}
	return &Dispatcher{
		sms:         sms,
		email:       email,
		queueName:   queueName,
		countryCode: countryCode,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event queue.Event) {
	ticket := event.Ticket
	switch event.Type {
	case queue.EventCustomerCalled:
		d.sendSMS(ctx, ticket.Phone, yourTurnSMS(ticket.Name, ticket.TicketNumber, d.queueName))
	case queue.EventCustomerNowNext:
		d.sendSMS(ctx, ticket.Phone, nextInLineSMS(ticket.Name, ticket.TicketNumber, d.queueName))
		subject, html := nextInLineEmail(ticket.Name, ticket.TicketNumber, d.queueName)
		d.sendEmail(ctx, ticket.Email, subject, html)
	case queue.EventCustomerAtPositionThree:
		subject, html := thirdInLineEmail(ticket.Name, ticket.TicketNumber, d.queueName)
		d.sendEmail(ctx, ticket.Email, subject, html)
	default:
		log.Printf("notify: unknown event type %s", event.Type)
	}
}

func (d *Dispatcher) sendSMS(ctx context.Context, phone, message string) {
	if phone == "" {
		return
	}
	formatted := FormatPhoneNumber(phone, d.countryCode)
	if !d.sms.SendSMS(ctx, formatted, message) {
		log.Printf("notify: sms to %s failed", formatted)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, html string) {
	if to == "" {
		return
	}
	if !d.email.SendEmail(ctx, to, subject, html) {
		log.Printf("notify: email to %s failed", to)
	}
}
