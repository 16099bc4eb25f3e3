package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	// Attempts is the total number of send calls, including the first.
	Attempts int
	// Delay is the pause between attempts.
	Delay time.Duration
}

// DefaultRetryConfig returns the default retry configuration: one retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 2,
		Delay:    500 * time.Millisecond,
	}
}

// SendError is returned when every attempt failed. Reason is the transport
// error text of the last attempt.
type SendError struct {
	Reason string
	Err    error
}

func (e *SendError) Error() string {
	return "send failed: " + e.Reason
}

func (e *SendError) Unwrap() error { return e.Err }

// IsSendError checks if the error is a SendError.
func IsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// fallbackReason is stored when the transport failed without any text.
const fallbackReason = "mailjet_error"

// Sender handles sending messages with rate limiting and retry logic.
type Sender struct {
	mail        MailSender
	rateLimiter *RateLimiter
	retry       RetryConfig
	metrics     *Metrics
	logger      Logger
}

// SenderConfig holds configuration for the sender.
type SenderConfig struct {
	RateLimiter RateLimiterConfig
	Retry       RetryConfig
}

// DefaultSenderConfig returns the default configuration.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		RateLimiter: DefaultRateLimiterConfig(),
		Retry:       DefaultRetryConfig(),
	}
}

// NewSender creates a new sender. metrics may be nil.
func NewSender(mail MailSender, config SenderConfig, metrics *Metrics, logger Logger) *Sender {
	if config.Retry.Attempts < 1 {
		config.Retry.Attempts = 1
	}
	return &Sender{
		mail:        mail,
		rateLimiter: NewRateLimiter(config.RateLimiter),
		retry:       config.Retry,
		metrics:     metrics,
		logger:      logger,
	}
}

// SendWithRetry delivers msg, retrying failed attempts. Once an attempt has
// started the remaining attempts run to completion even if ctx is done, so
// the caller always gets a definite outcome to record.
func (s *Sender) SendWithRetry(ctx context.Context, msg Message) error {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	sendCtx := context.WithoutCancel(ctx)

	start := time.Now()
	defer func() { s.metrics.ObserveSendDuration(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		err := s.mail.Send(sendCtx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < s.retry.Attempts {
			s.metrics.IncRetries()
			s.logger.Info("retrying email send",
				"attempt", attempt+1,
				"max_attempts", s.retry.Attempts,
				"delay", s.retry.Delay,
				"error", err)
			if s.retry.Delay > 0 {
				time.Sleep(s.retry.Delay)
			}
		}
	}

	reason := lastErr.Error()
	if reason == "" {
		reason = fallbackReason
	}
	s.logger.Error("email send attempts exhausted",
		"to", msg.To.Email,
		"subject", msg.Subject,
		"error", lastErr)
	return &SendError{Reason: reason, Err: lastErr}
}
