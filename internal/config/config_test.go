package config

import (
	"slices"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.WebhookPath != "/api/webhooks/github" {
		t.Errorf("webhook path = %q", cfg.WebhookPath)
	}
	if cfg.BotName != "fixodev" {
		t.Errorf("bot name = %q", cfg.BotName)
	}
	want := []string{"issue_comment", "issues", "pull_request"}
	if !slices.Equal(cfg.Events, want) {
		t.Errorf("events = %v, want %v", cfg.Events, want)
	}
	if cfg.QueueSize != 64 {
		t.Errorf("queue size = %d, want 64", cfg.QueueSize)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FIXODEV_PORT", "9999")
	t.Setenv("FIXODEV_BOT_NAME", "reviewbot")
	t.Setenv("FIXODEV_EVENTS", "issue_comment")
	t.Setenv("FIXODEV_WEBHOOK_SECRET", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Port)
	}
	if cfg.BotName != "reviewbot" {
		t.Errorf("bot name = %q, want reviewbot", cfg.BotName)
	}
	if len(cfg.Events) != 1 || cfg.Events[0] != "issue_comment" {
		t.Errorf("events = %v", cfg.Events)
	}
	if cfg.WebhookSecret != "hunter2" {
		t.Errorf("secret not loaded")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "FIXODEV_PORT", value: "70000"},
		{name: "negative port", key: "FIXODEV_PORT", value: "-1"},
		{name: "empty bot name", key: "FIXODEV_BOT_NAME", value: ""},
		{name: "zero queue size", key: "FIXODEV_QUEUE_SIZE", value: "0"},
		{name: "zero workers", key: "FIXODEV_WORKERS", value: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", tc.key, tc.value)
			}
		})
	}
}
