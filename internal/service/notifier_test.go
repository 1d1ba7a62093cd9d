package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, url string, attempts int) *GatewayNotifier {
	t.Helper()
	n, err := NewGatewayNotifier(NotifierConfig{
		URL:          url,
		AccessKey:    "kernel-key",
		MaxAttempts:  attempts,
		RetryBackoff: time.Millisecond,
	}, NewHMACSignatureService("gateway-secret"), http.DefaultClient, nil, zerolog.Nop())
	require.NoError(t, err)
	return n
}

func TestGatewayNotifier_DeliversSignedEnvelope(t *testing.T) {
	sig := NewHMACSignatureService("gateway-secret")
	var got map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts, _ := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notify", r.URL.Path)
		assert.Equal(t, "kernel-key", r.Header.Get("X-Gateway-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Nonce"))
		assert.Equal(t, "42", r.Header.Get("X-Actor-ID"))
		canonical := sig.BuildCanonicalString(http.MethodPost, "/notify", ts, r.Header.Get("X-Nonce"), "42", string(body))
		assert.True(t, sig.Verify(canonical, r.Header.Get("X-Signature")))

		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL+"/notify", 3)
	err := n.Notify(context.Background(), domain.Notification{
		Recipient: "42",
		Event:     domain.EventCredentialDelivered,
		Data:      map[string]string{"account": "user@mail.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "42", got["recipient"])
	assert.Equal(t, "credential.delivered", got["event"])
	assert.NotEmpty(t, got["id"])
	assert.NotZero(t, got["timestamp"])
}

func TestGatewayNotifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestNotifier(t, srv.URL, 3).Notify(context.Background(), domain.Notification{Recipient: "1", Event: domain.EventBroadcast, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGatewayNotifier_StopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestNotifier(t, srv.URL, 3).Notify(context.Background(), domain.Notification{Recipient: "1", Event: domain.EventBroadcast})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewayNotifier_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestNotifier(t, srv.URL, 2).Notify(context.Background(), domain.Notification{Recipient: "1", Event: domain.EventBroadcast})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGatewayNotifier_SkipsWithoutURL(t *testing.T) {
	n := newTestNotifier(t, "", 3)
	assert.NoError(t, n.Notify(context.Background(), domain.Notification{Recipient: "1", Event: domain.EventBroadcast}))
}
