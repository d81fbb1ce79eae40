package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epavanello/fixodev-sub001/internal/config"
	"github.com/epavanello/fixodev-sub001/internal/logging"
	"github.com/epavanello/fixodev-sub001/internal/prompt"
	"github.com/epavanello/fixodev-sub001/internal/queue"
	"github.com/epavanello/fixodev-sub001/internal/server"
	"github.com/epavanello/fixodev-sub001/internal/stream"
	"github.com/epavanello/fixodev-sub001/internal/webhook"
	"github.com/epavanello/fixodev-sub001/internal/worker"
)

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit with code %d", e.code)
}

func (e exitError) ExitCode() int {
	return e.code
}

func runWithSignals(run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	select {
	case sig := <-sigCh:
		cancel()
		<-errCh
		if sig == os.Interrupt {
			return exitError{code: 130}
		}
		return exitError{code: 143}
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	classifier, err := webhook.NewClassifier(cfg.Events)
	if err != nil {
		return err
	}
	catalog, err := prompt.LoadCatalog(cfg.TemplateCatalog)
	if err != nil {
		return err
	}

	q := queue.New(cfg.QueueSize)
	hub := server.NewHub(logger)
	go hub.Run(ctx)

	// Stand-in for the completion-service collaborator: log the
	// rendered prompt instead of calling a model.
	processor := worker.ProcessorFunc(func(ctx context.Context, job *queue.Job) error {
		logger.Info("dispatching prompt",
			"delivery_id", job.Delivery.ID,
			"repository", job.Repo.FullName,
			"template", job.Prompt.TemplateID,
			"prompt_bytes", len(job.Prompt.Text),
		)
		return nil
	})

	pool := worker.NewPool(q, processor, hub, logger, cfg.Workers)
	poolDone := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(poolDone)
	}()

	srv := server.New(server.Options{
		Port:        cfg.Port,
		WebhookPath: cfg.WebhookPath,
		Secret:      cfg.WebhookSecret,
		BotName:     cfg.BotName,
	}, classifier, catalog, q, hub, logger)

	err = srv.Run(ctx)
	<-poolDone
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "fixodev",
		Short: "GitHub bot that turns webhook mentions into queued LLM jobs",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook receiver and worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSignals(func(ctx context.Context) error {
				err := runServe(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	var serverURL string
	var events []string
	var until []string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the server's job event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := stream.ParseMatchers(until)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stderr, logging.ParseLevel(os.Getenv("FIXODEV_LOG_LEVEL")))
			return runWithSignals(func(ctx context.Context) error {
				err := stream.Run(ctx, stream.Config{
					ServerURL: serverURL,
					Events:    events,
					Until:     matchers,
				}, logger)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	tailCmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8080/ws", "WebSocket server URL")
	tailCmd.Flags().StringArrayVar(&events, "event", nil, "Only stream these webhook event types")
	tailCmd.Flags().StringArrayVar(&until, "until", nil, "Exit once a job event matches (path=value, path=~regex, path exists)")

	rootCmd.AddCommand(serveCmd, tailCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}
