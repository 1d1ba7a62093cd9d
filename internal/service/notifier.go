package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"
	"vending-kernel/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotifierConfig configures delivery to the gateway's notify endpoint.
type NotifierConfig struct {
	URL          string
	AccessKey    string
	MaxAttempts  int
	RetryBackoff time.Duration
}

// notificationEnvelope is the JSON body posted to the gateway.
type notificationEnvelope struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	domain.Notification
}

// GatewayNotifier implements ports.Notifier by POSTing signed JSON to the
// gateway. Requests are signed the same way the gateway signs its calls to
// the kernel.
type GatewayNotifier struct {
	cfg        NotifierConfig
	path       string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	metrics    *metrics.KernelMetrics
	log        zerolog.Logger
}

func NewGatewayNotifier(
	cfg NotifierConfig,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	m *metrics.KernelMetrics,
	log zerolog.Logger,
) (*GatewayNotifier, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	path := ""
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing notify url: %w", err)
		}
		path = u.EscapedPath()
	}
	return &GatewayNotifier{
		cfg:        cfg,
		path:       path,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		metrics:    m,
		log:        log,
	}, nil
}

// Notify delivers n, retrying transport errors and 5xx responses. It
// returns an error once every attempt failed; callers decide whether that
// matters.
func (s *GatewayNotifier) Notify(ctx context.Context, n domain.Notification) error {
	event := string(n.Event)
	if s.cfg.URL == "" {
		s.log.Debug().Str("event", event).Str("recipient", n.Recipient).Msg("notify: no gateway url configured, skipping")
		s.metrics.IncNotification(event, "skipped")
		return nil
	}

	body, err := json.Marshal(notificationEnvelope{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().Unix(),
		Notification: n,
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				s.metrics.IncNotification(event, "failed")
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * s.cfg.RetryBackoff):
			}
		}

		retry, err := s.deliver(ctx, n.Recipient, body)
		if err == nil {
			s.log.Debug().Str("event", event).Str("recipient", n.Recipient).Int("attempt", attempt).Msg("notify: delivered")
			s.metrics.IncNotification(event, "delivered")
			return nil
		}
		lastErr = err
		s.log.Warn().Err(err).Str("event", event).Str("recipient", n.Recipient).Int("attempt", attempt).Msg("notify: delivery failed")
		if !retry {
			break
		}
	}

	s.metrics.IncNotification(event, "failed")
	return fmt.Errorf("notify %s to %s: %w", event, n.Recipient, lastErr)
}

// deliver makes one attempt. retry reports whether a later attempt may succeed.
func (s *GatewayNotifier) deliver(ctx context.Context, recipient string, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}

	ts := time.Now().Unix()
	nonce := uuid.NewString()
	canonical := s.sigSvc.BuildCanonicalString(http.MethodPost, s.path, ts, nonce, recipient, string(body))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Key", s.cfg.AccessKey)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Actor-ID", recipient)
	req.Header.Set("X-Signature", s.sigSvc.Sign(canonical))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("gateway responded %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("gateway responded %d", resp.StatusCode)
	}
}
