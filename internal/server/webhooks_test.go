package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"trackline/internal/app"
	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/migrate"
	"trackline/internal/repo"
	"trackline/internal/workflow"
)

func TestWebhookDispatcherStopsOnCancel(t *testing.T) {
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("org-1")
	r := repo.Repo{DB: conn}
	if err := app.EnsureOrganization(context.Background(), r, cfg); err != nil {
		t.Fatalf("provision org: %v", err)
	}
	d := &webhookDispatcher{
		engine:   workflow.New(conn, cfg),
		orgID:    "org-1",
		webhooks: []config.WebhookConfig{{URL: "http://127.0.0.1:1/hook"}},
		client:   &http.Client{Timeout: time.Second},
		cursors:  make(map[int]int64),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("dispatcher kept running after context cancel")
	}
}

func TestActionFilter(t *testing.T) {
	f := newActionFilter(nil)
	if !f.match("TRANSITIONED") {
		t.Fatalf("empty filter should match everything")
	}
	f = newActionFilter([]string{"TRANSITIONED", " "})
	if !f.match("TRANSITIONED") {
		t.Fatalf("expected TRANSITIONED to match")
	}
	if f.match("CREATED") {
		t.Fatalf("CREATED should not match")
	}
}
