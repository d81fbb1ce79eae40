// Package stream is the client side of the job event stream: it
// connects to a running fixodev server, subscribes to event types, and
// prints job lifecycle events as JSON lines.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// Config controls a tail session.
type Config struct {
	// ServerURL is the ws:// or wss:// endpoint of the server.
	ServerURL string
	// Events restricts the stream to these webhook event types; empty
	// means all.
	Events []string
	// Until, when non-empty, ends the session with success as soon as
	// any matcher holds for a received event.
	Until []Matcher
}

type subscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

// Run tails the stream until ctx is done or an Until matcher fires.
// Lost connections are retried with exponential backoff.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	stdout := bufio.NewWriter(os.Stdout)
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Info("connecting", "url", cfg.ServerURL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
		if err != nil {
			logger.Warn("connect failed", "error", err)
			wait(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		if err := sendSubscribe(conn, cfg.Events); err != nil {
			logger.Warn("subscribe failed", "error", err)
			_ = conn.Close()
			wait(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}

		matched, err := readLoop(ctx, conn, stdout, logger, cfg.Until)
		_ = conn.Close()
		if matched {
			return nil
		}
		if err != nil && errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			logger.Info("disconnected", "error", err)
		} else {
			logger.Info("disconnected")
		}
	}
}

// readLoop prints events until the connection drops, ctx is done, or
// an until matcher fires. The bool reports whether a matcher fired.
func readLoop(ctx context.Context, conn *websocket.Conn, stdout *bufio.Writer, logger *slog.Logger, until []Matcher) (bool, error) {
	type result struct {
		matched bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- result{err: err}
				return
			}
			if !json.Valid(data) {
				logger.Warn("invalid json from server", "data", string(data))
				continue
			}
			if _, err := stdout.Write(data); err != nil {
				done <- result{err: err}
				return
			}
			if err := stdout.WriteByte('\n'); err != nil {
				done <- result{err: err}
				return
			}
			if err := stdout.Flush(); err != nil {
				done <- result{err: err}
				return
			}
			if len(until) > 0 && anyMatches(data, until) {
				done <- result{matched: true}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		// Unblocks the reader goroutine.
		_ = conn.Close()
		return false, ctx.Err()
	case r := <-done:
		return r.matched, r.err
	}
}

func sendSubscribe(conn *websocket.Conn, events []string) error {
	if events == nil {
		events = []string{}
	}
	encoded, err := json.Marshal(subscribeMessage{Type: "subscribe", Events: events})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, encoded)
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
