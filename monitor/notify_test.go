package monitor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZaryabShah/nasdaq-rule-filing-monitor/monitor"
)

var testFiling = monitor.Filing{
	ID:          "SR-NASDAQ-2025-042",
	Description: "Proposal to modify the fee schedule",
}

// webhookCapture records the content field of the last message posted.
func webhookCapture(t *testing.T) (*httptest.Server, func() string) {
	t.Helper()
	var mu sync.Mutex
	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("want POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("bad content type: %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var msg map[string]string
		json.Unmarshal(body, &msg)
		mu.Lock()
		content = msg["content"]
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() string {
		mu.Lock()
		defer mu.Unlock()
		return content
	}
}

// -- WebhookNotifier -----------------------------------------------------------

func TestNotify_WebhookSendsContent(t *testing.T) {
	srv, lastContent := webhookCapture(t)

	n := monitor.NewWebhookNotifier(srv.URL, time.Second)
	if err := n.Notify(context.Background(), testFiling); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := lastContent()
	if !strings.Contains(content, "**SR-NASDAQ-2025-042**") {
		t.Errorf("content missing bold filing id: %q", content)
	}
	if !strings.Contains(content, "> Proposal to modify the fee schedule") {
		t.Errorf("content missing quoted description: %q", content)
	}
	if !strings.Contains(content, "Detected: `") {
		t.Errorf("content missing detection timestamp: %q", content)
	}
}

func TestNotify_WebhookTimestampIsUTC(t *testing.T) {
	srv, lastContent := webhookCapture(t)

	n := monitor.NewWebhookNotifier(srv.URL, time.Second)
	if err := n.Notify(context.Background(), testFiling); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := lastContent()
	start := strings.Index(content, "`")
	end := strings.LastIndex(content, "`")
	if start < 0 || end <= start {
		t.Fatalf("no backtick-wrapped timestamp in %q", content)
	}
	stamp := content[start+1 : end]
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatalf("timestamp %q not RFC 3339: %v", stamp, err)
	}
	if !strings.HasSuffix(stamp, "Z") {
		t.Errorf("timestamp %q not UTC", stamp)
	}
	if d := time.Since(ts); d < 0 || d > time.Minute {
		t.Errorf("timestamp %q not recent", stamp)
	}
}

func TestNotify_WebhookErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message": "rate limited"}`))
	}))
	defer srv.Close()

	n := monitor.NewWebhookNotifier(srv.URL, time.Second)
	err := n.Notify(context.Background(), testFiling)
	if err == nil {
		t.Fatal("expected error for 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status: %v", err)
	}
}

func TestNotify_WebhookErrorOnConnectionRefused(t *testing.T) {
	n := monitor.NewWebhookNotifier("http://127.0.0.1:1", time.Second)
	if err := n.Notify(context.Background(), testFiling); err == nil {
		t.Fatal("expected error on connection refused")
	}
}

// -- BotNotifier ---------------------------------------------------------------

func TestNotify_BotPostsToChannel(t *testing.T) {
	var mu sync.Mutex
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Write([]byte(`{"id": "1"}`))
	}))
	defer srv.Close()

	n := monitor.NewBotNotifier("bot-token", "123456", time.Second)
	n.BaseURL = srv.URL
	if err := n.Notify(context.Background(), testFiling); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/channels/123456/messages" {
		t.Errorf("path: got %q", path)
	}
	if auth != "Bot bot-token" {
		t.Errorf("authorization: got %q", auth)
	}
}

func TestNotify_BotErrorOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "401: Unauthorized"}`))
	}))
	defer srv.Close()

	n := monitor.NewBotNotifier("bad-token", "123456", time.Second)
	n.BaseURL = srv.URL
	if err := n.Notify(context.Background(), testFiling); err == nil {
		t.Fatal("expected error for 401")
	}
}
