// Package server is the HTTP entry point of the pipeline: it receives
// webhook deliveries, runs verify, classify, extract, render, enqueue
// in order, and exposes the job event stream to operators.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epavanello/fixodev-sub001/internal/bot"
	"github.com/epavanello/fixodev-sub001/internal/message"
	"github.com/epavanello/fixodev-sub001/internal/prompt"
	"github.com/epavanello/fixodev-sub001/internal/queue"
	"github.com/epavanello/fixodev-sub001/internal/webhook"
)

// Options carries the configuration the receiver needs; see
// config.Config for where the values come from.
type Options struct {
	Port        int
	WebhookPath string
	Secret      string
	BotName     string
}

// Server sequences the pipeline for each inbound delivery. The only
// state shared across requests is the queue's dedupe memory and the
// hub's client set.
type Server struct {
	opts     Options
	classify *webhook.Classifier
	catalog  *prompt.Catalog
	queue    *queue.Queue
	hub      *Hub
	logger   *slog.Logger

	warnNoSecretOnce sync.Once
}

// New wires the pipeline components into a receiver.
func New(opts Options, classifier *webhook.Classifier, catalog *prompt.Catalog, q *queue.Queue, hub *Hub, logger *slog.Logger) *Server {
	return &Server{
		opts:     opts,
		classify: classifier,
		catalog:  catalog,
		queue:    q,
		hub:      hub,
		logger:   logger,
	}
}

// Handler returns the receiver's routes: the webhook endpoint, a
// liveness probe, and the websocket job event stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.WebhookPath, s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleStream)
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "port", s.opts.Port, "path", s.opts.WebhookPath)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, "failed to read body")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	signature := r.Header.Get("X-Hub-Signature-256")
	log := s.logger.With("event", eventType, "delivery_id", deliveryID)

	if s.opts.Secret == "" {
		s.warnNoSecretOnce.Do(func() {
			s.logger.Warn("webhook signature verification disabled: no secret configured")
		})
	} else if !webhook.VerifySignature(body, signature, s.opts.Secret) {
		log.Warn("webhook signature verification failed")
		respond(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := s.classify.Classify(body, eventType, deliveryID)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrUnsupportedEvent),
			errors.Is(err, webhook.ErrMalformedPayload),
			errors.Is(err, webhook.ErrMissingContext):
			log.Warn("webhook rejected", "error", err)
			respond(w, http.StatusBadRequest, "invalid payload")
		default:
			log.Error("webhook classification failed", "error", err)
			respond(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	ev.Delivery.Signature = signature

	cmd := bot.Extract(ev.Text, ev.Sender, s.opts.BotName)
	if !cmd.ShouldProcess {
		log.Debug("webhook acknowledged without dispatch", "sender", ev.Sender, "action", ev.Action)
		s.publish(message.StatusIgnored, ev)
		acknowledge(w)
		return
	}

	req, err := s.catalog.Build(s.catalog.TemplateFor(ev.Delivery.Event), map[string]string{
		"command":    cmd.Text,
		"sender":     cmd.Sender,
		"repository": ev.Repo.FullName,
		"clone_url":  ev.Repo.CloneURL,
		"event":      ev.Delivery.Event,
		"action":     ev.Action,
	})
	if err != nil {
		log.Error("prompt rendering failed", "error", err)
		respond(w, http.StatusInternalServerError, "internal error")
		return
	}

	receipt, err := s.queue.Enqueue(&queue.Job{
		Delivery:     ev.Delivery,
		Installation: ev.Installation,
		Repo:         ev.Repo,
		Command:      cmd,
		Prompt:       req,
		EnqueuedAt:   time.Now(),
	})
	if err != nil {
		log.Error("enqueue failed", "error", err)
		respond(w, http.StatusInternalServerError, "internal error")
		return
	}

	if receipt.Duplicate {
		log.Info("duplicate delivery acknowledged")
		s.publish(message.StatusDuplicate, ev)
		acknowledge(w)
		return
	}

	log.Info("job enqueued", "repository", ev.Repo.FullName, "sender", cmd.Sender, "template", req.TemplateID)
	s.publish(message.StatusEnqueued, ev)
	acknowledge(w)
}

func (s *Server) publish(status string, ev *webhook.Event) {
	if s.hub == nil {
		return
	}
	jobEvent := message.NewJobEvent(status, ev.Delivery.ID, ev.Delivery.Event)
	jobEvent.Repository = ev.Repo.FullName
	jobEvent.Sender = ev.Sender
	s.hub.Publish(jobEvent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "stream disabled", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	s.logger.Debug("ws connected", "remote", r.RemoteAddr)

	client := &streamClient{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 16),
		logger: s.logger,
	}
	if !s.hub.add(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump()

	s.logger.Debug("ws disconnected", "remote", r.RemoteAddr)
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// acknowledge is the 200 contract: {"success": true}.
func acknowledge(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, response{Success: true})
}

// respond writes a rejection. The error string is a fixed category,
// never the underlying error text.
func respond(w http.ResponseWriter, status int, category string) {
	writeJSON(w, status, response{Success: false, Error: category})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
