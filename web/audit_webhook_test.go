package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestWebhook(url, authHeader string) *auditWebhook {
	w := newAuditWebhook(url, authHeader, slog.New(slog.DiscardHandler))
	w.retryDelay = 10 * time.Millisecond
	return w
}

func TestAuditWebhook_Delivers(t *testing.T) {
	var (
		mu       sync.Mutex
		received webhookEvent
		gotAuth  string
		gotType  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "Authorization: Bearer t0ken")
	wh.enqueue(webhookEventFrom(AuditThemeToggled, "127.0.0.1:5000", "2026-01-01T00:00:00Z", []slog.Attr{
		slog.String("user_id", "u1"),
		slog.Bool("dark_mode", false),
	}))
	wh.close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "theme_toggled", received.Event)
	assert.Equal(t, "u1", received.UserID)
	assert.Equal(t, "127.0.0.1:5000", received.RemoteAddr)
	assert.Equal(t, map[string]string{"dark_mode": "false"}, received.Attrs)
	assert.Equal(t, "Bearer t0ken", gotAuth)
	assert.Equal(t, "application/json", gotType)
}

func TestAuditWebhook_RetriesServerErrorsOnce(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	wh.enqueue(webhookEvent{Event: "logout"})
	wh.close()
	assert.Equal(t, int32(2), attempts.Load())
}

func TestAuditWebhook_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	wh.enqueue(webhookEvent{Event: "logout"})
	wh.close()
	assert.Equal(t, int32(1), attempts.Load())
}

func TestAuditWebhook_CloseDrainsQueue(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	for i := 0; i < 5; i++ {
		wh.enqueue(webhookEvent{Event: "login_failure"})
	}
	wh.close()
	assert.Equal(t, int32(5), count.Load())
}

func TestAuditLoggerForwardsToWebhook(t *testing.T) {
	events := make(chan webhookEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		json.NewDecoder(r.Body).Decode(&evt)
		events <- evt
	}))
	defer srv.Close()

	al := newAuditLogger(slog.New(slog.DiscardHandler))
	al.webhook = newTestWebhook(srv.URL, "")
	al.logFailure(AuditLoginFailure, httptest.NewRequest(http.MethodPost, "/login", nil), "invalid email or password")
	al.webhook.close()

	evt := <-events
	assert.Equal(t, "login_failure", evt.Event)
	assert.Equal(t, "invalid email or password", evt.Attrs["reason"])
	assert.NotEmpty(t, evt.Timestamp)
}

func TestAuditWebhook_CloseIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	wh.enqueue(webhookEvent{Event: "logout"})
	assert.NotPanics(t, func() {
		wh.close()
		wh.close()
	})
}
