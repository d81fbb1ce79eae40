package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epavanello/fixodev-sub001/internal/message"
	"github.com/epavanello/fixodev-sub001/internal/prompt"
	"github.com/epavanello/fixodev-sub001/internal/queue"
)

func dialStream(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJobEvent(t *testing.T, conn *websocket.Conn) message.JobEvent {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var ev message.JobEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode stream message %q: %v", data, err)
	}
	return ev
}

func TestHubBroadcastsJobEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := discardLogger()
	hub := NewHub(logger)
	go hub.Run(ctx)

	classifier := newTestClassifier(t)
	catalog, err := prompt.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	srv := New(Options{
		WebhookPath: "/api/webhooks/github",
		Secret:      testSecret,
		BotName:     "fixodev",
	}, classifier, catalog, queue.New(8), hub, logger)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialStream(t, ts.URL)
	// Give the read pump time to register the client before publishing.
	time.Sleep(50 * time.Millisecond)

	body := issueCommentBody("created", "hey @fixodev please check this")
	rec := deliver(t, srv, body, map[string]string{
		"X-GitHub-Event":      "issue_comment",
		"X-GitHub-Delivery":   "delivery-stream",
		"X-Hub-Signature-256": sign(body, testSecret),
	})
	if rec.Code != 200 {
		t.Fatalf("webhook status = %d", rec.Code)
	}

	ev := readJobEvent(t, conn)
	if ev.Type != "job" {
		t.Errorf("type = %q, want job", ev.Type)
	}
	if ev.Status != message.StatusEnqueued {
		t.Errorf("status = %q, want enqueued", ev.Status)
	}
	if ev.DeliveryID != "delivery-stream" {
		t.Errorf("delivery id = %q", ev.DeliveryID)
	}
	if ev.Repository != "acme/widgets" {
		t.Errorf("repository = %q", ev.Repository)
	}
}

func TestHubSubscriptionFiltering(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := discardLogger()
	hub := NewHub(logger)
	go hub.Run(ctx)

	srv := New(Options{WebhookPath: "/api/webhooks/github"}, newTestClassifier(t), nil, nil, hub, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialStream(t, ts.URL)
	sub, _ := json.Marshal(map[string]any{"type": "subscribe", "events": []string{"pull_request"}})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	hub.Publish(message.NewJobEvent(message.StatusEnqueued, "d-issue", "issue_comment"))
	hub.Publish(message.NewJobEvent(message.StatusEnqueued, "d-pr", "pull_request"))

	ev := readJobEvent(t, conn)
	if ev.DeliveryID != "d-pr" {
		t.Errorf("first received event = %q, want the pull_request one", ev.DeliveryID)
	}
}

func TestHubAddAfterStopReportsFalse(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(discardLogger())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	done := make(chan bool, 1)
	go func() {
		done <- hub.add(&streamClient{hub: hub, send: make(chan []byte, 1)})
	}()
	select {
	case ok := <-done:
		if ok {
			t.Error("add reported success on a stopped hub")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("add blocked on a stopped hub")
	}
}

func TestStreamConnectAfterHubStopped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(discardLogger())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	srv := New(Options{WebhookPath: "/api/webhooks/github"}, newTestClassifier(t), nil, nil, hub, discardLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialStream(t, ts.URL)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed by the server")
	}
}
