// Package mailer delivers messages through the Mailjet Send API v3.1.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkflow/shared/reminders"
)

// DefaultEndpoint is the Mailjet v3.1 send URL.
const DefaultEndpoint = "https://api.mailjet.com/v3.1/send"

// maxErrorBody caps how much of a failed response is kept as the error text.
const maxErrorBody = 4096

// APIError is a non-2xx answer from Mailjet. Its text is the response body,
// or the status text when the body is empty.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.StatusCode)
}

// MailjetClient implements reminders.MailSender.
type MailjetClient struct {
	endpoint   string
	apiKey     string
	secretKey  string
	httpClient *http.Client
}

// NewMailjetClient constructs a client. An empty endpoint uses
// DefaultEndpoint; a non-positive timeout uses 10 seconds.
func NewMailjetClient(endpoint, apiKey, secretKey string, timeout time.Duration) *MailjetClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MailjetClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type contact struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type attachment struct {
	ContentType   string `json:"ContentType"`
	Filename      string `json:"Filename"`
	Base64Content string `json:"Base64Content"`
}

type message struct {
	From        contact      `json:"From"`
	To          []contact    `json:"To"`
	Subject     string       `json:"Subject"`
	TextPart    string       `json:"TextPart"`
	Attachments []attachment `json:"Attachments,omitempty"`
}

type sendRequest struct {
	Messages []message `json:"Messages"`
}

func payload(msg reminders.Message) sendRequest {
	m := message{
		From:     contact{Email: msg.From.Email, Name: msg.From.Name},
		To:       []contact{{Email: msg.To.Email, Name: msg.To.Name}},
		Subject:  msg.Subject,
		TextPart: msg.TextBody,
	}
	for _, a := range msg.Attachments {
		m.Attachments = append(m.Attachments, attachment{
			ContentType:   a.ContentType,
			Filename:      a.Filename,
			Base64Content: base64.StdEncoding.EncodeToString(a.Content),
		})
	}
	return sendRequest{Messages: []message{m}}
}

// Send makes one delivery attempt. Retries belong to the caller.
func (c *MailjetClient) Send(ctx context.Context, msg reminders.Message) error {
	data, err := json.Marshal(payload(msg))
	if err != nil {
		return fmt.Errorf("encode mailjet payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
