package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	twilioBaseURL = "https://api.twilio.com"
	resendBaseURL = "https://api.resend.com"
)

type SMSConfig struct {
	Provider   string
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

type EmailConfig struct {
	Provider string
	APIKey   string
	From     string
	BaseURL  string
}

func NewSMSSender(cfg SMSConfig) SMSSender {
	switch cfg.Provider {
	case "twilio":
		return NewTwilioSMS(cfg)
	case "noop":
		return noopSMS{}
	default:
		return logSMS{}
	}
}

func NewEmailSender(cfg EmailConfig) EmailSender {
	switch cfg.Provider {
	case "resend":
		return NewResendEmail(cfg)
	case "noop":
		return noopEmail{}
	default:
		return logEmail{}
	}
}

// TwilioSMS sends messages through the Twilio REST API.
type TwilioSMS struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioSMS(cfg SMSConfig) *TwilioSMS {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioBaseURL
	}
	return &TwilioSMS{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TwilioSMS) SendSMS(ctx context.Context, to, message string) bool {
	if t.accountSID == "" || t.authToken == "" || t.from == "" {
		log.Printf("twilio: missing credentials, sms to %s not sent", to)
		return false
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", message)

	endpoint := t.baseURL + "/2010-04-01/Accounts/" + t.accountSID + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("twilio: build request: %v", err)
		return false
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		log.Printf("twilio: send sms: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("twilio: api error status=%d body=%s", resp.StatusCode, body)
		return false
	}
	return true
}

// ResendEmail sends email through the Resend API.
type ResendEmail struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

func NewResendEmail(cfg EmailConfig) *ResendEmail {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = resendBaseURL
	}
	return &ResendEmail{
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *ResendEmail) SendEmail(ctx context.Context, to, subject, html string) bool {
	if r.apiKey == "" {
		log.Printf("resend: missing api key, email to %s not sent", to)
		return false
	}

	payload := map[string]interface{}{
		"from":    r.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("resend: marshal payload: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		log.Printf("resend: build request: %v", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("resend: send email: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("resend: api error status=%d body=%s", resp.StatusCode, respBody)
		return false
	}
	return true
}

type logSMS struct{}

func (logSMS) SendSMS(ctx context.Context, to, message string) bool {
	log.Printf("send sms to %s: %s", to, message)
	return true
}

type logEmail struct{}

func (logEmail) SendEmail(ctx context.Context, to, subject, html string) bool {
	log.Printf("send email to %s: %s", to, subject)
	return true
}

type noopSMS struct{}

func (noopSMS) SendSMS(ctx context.Context, to, message string) bool { return true }

type noopEmail struct{}

func (noopEmail) SendEmail(ctx context.Context, to, subject, html string) bool { return true }
