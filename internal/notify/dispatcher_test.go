package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/queue"
)

type fakeSMS struct {
	result bool
	calls  []smsCall
}

type smsCall struct {
	to      string
	message string
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, message string) bool {
	f.calls = append(f.calls, smsCall{to: to, message: message})
	return f.result
}

type fakeEmail struct {
	result bool
	calls  []emailCall
}

type emailCall struct {
	to      string
	subject string
	html    string
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, html string) bool {
	f.calls = append(f.calls, emailCall{to: to, subject: subject, html: html})
	return f.result
}

func testTicket() models.Ticket {
	return models.Ticket{
		TicketID:     "t-1",
		TicketNumber: 12,
		Name:         "Alice",
		Phone:        "5551234567",
		Email:        "alice@example.com",
		Status:       models.StatusCalled,
	}
}

func TestDispatchCustomerCalledSendsSMSOnly(t *testing.T) {
	sms := &fakeSMS{result: true}
	email := &fakeEmail{result: true}
	d := NewDispatcher(sms, email, DispatcherConfig{QueueName: "Test Queue"})

	d.Dispatch(context.Background(), queue.Event{Type: queue.EventCustomerCalled, Ticket: testTicket()})

	if len(sms.calls) != 1 {
		t.Fatalf("expected one sms, got %d", len(sms.calls))
	}
	if len(email.calls) != 0 {
		t.Fatalf("expected no email, got %d", len(email.calls))
	}
	if sms.calls[0].to != "+15551234567" {
		t.Fatalf("expected formatted recipient, got %s", sms.calls[0].to)
	}
	if !strings.Contains(sms.calls[0].message, "Alice") || !strings.Contains(sms.calls[0].message, "#12") {
		t.Fatalf("message missing name or ticket number: %s", sms.calls[0].message)
	}
}

func TestDispatchNowNextSendsSMSAndEmail(t *testing.T) {
	sms := &fakeSMS{result: true}
	email := &fakeEmail{result: true}
	d := NewDispatcher(sms, email, DispatcherConfig{})

	d.Dispatch(context.Background(), queue.Event{Type: queue.EventCustomerNowNext, Ticket: testTicket()})

	if len(sms.calls) != 1 {
		t.Fatalf("expected one sms, got %d", len(sms.calls))
	}
	if len(email.calls) != 1 {
		t.Fatalf("expected one email, got %d", len(email.calls))
	}
	if email.calls[0].to != "alice@example.com" {
		t.Fatalf("unexpected email recipient: %s", email.calls[0].to)
	}
	if !strings.Contains(email.calls[0].html, "Alice") {
		t.Fatalf("email body missing name: %s", email.calls[0].html)
	}
}

func TestDispatchNowNextEmailSentEvenWhenSMSFails(t *testing.T) {
	sms := &fakeSMS{result: false}
	email := &fakeEmail{result: true}
	d := NewDispatcher(sms, email, DispatcherConfig{})

	d.Dispatch(context.Background(), queue.Event{Type: queue.EventCustomerNowNext, Ticket: testTicket()})

	if len(sms.calls) != 1 {
		t.Fatalf("expected one sms attempt, got %d", len(sms.calls))
	}
	if len(email.calls) != 1 {
		t.Fatalf("expected email despite sms failure, got %d", len(email.calls))
	}
}

func TestDispatchThirdInLineSendsEmailOnly(t *testing.T) {
	sms := &fakeSMS{result: true}
	email := &fakeEmail{result: true}
	d := NewDispatcher(sms, email, DispatcherConfig{})

	d.Dispatch(context.Background(), queue.Event{Type: queue.EventCustomerAtPositionThree, Ticket: testTicket()})

	if len(sms.calls) != 0 {
		t.Fatalf("expected no sms, got %d", len(sms.calls))
	}
	if len(email.calls) != 1 {
		t.Fatalf("expected one email, got %d", len(email.calls))
	}
}

func TestDispatchSkipsEmptyRecipients(t *testing.T) {
	sms := &fakeSMS{result: true}
	email := &fakeEmail{result: true}
	d := NewDispatcher(sms, email, DispatcherConfig{})

	ticket := testTicket()
	ticket.Phone = ""
	ticket.Email = ""
	d.Dispatch(context.Background(), queue.Event{Type: queue.EventCustomerNowNext, Ticket: ticket})

	if len(sms.calls) != 0 {
		t.Fatalf("expected no sms for empty phone, got %d", len(sms.calls))
	}
	if len(email.calls) != 0 {
		t.Fatalf("expected no email for empty address, got %d", len(email.calls))
	}
}

func TestDispatchUsesConfiguredCountryCode(t *testing.T) {
	sms := &fakeSMS{result: true}
	d := NewDispatcher(sms, &fakeEmail{result: true}, DispatcherConfig{DefaultCountryCode: "+65"})

	d.Dispatch(context.Background(), queue.Event{Type: queue.EventCustomerCalled, Ticket: testTicket()})

	if len(sms.calls) != 1 {
		t.Fatalf("expected one sms, got %d", len(sms.calls))
	}
	if sms.calls[0].to != "+655551234567" {
		t.Fatalf("expected +65 prefix, got %s", sms.calls[0].to)
	}
}
