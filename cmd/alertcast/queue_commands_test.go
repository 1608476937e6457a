package main

import (
	"context"
	"fmt"
	"testing"

	"alertcast/internal/testsupport"
)

func TestTriggerAndQueueList(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	testsupport.SeedDefinition(t, env.store, "mega-gift", testsupport.AsGift())

	if err := env.daemon.SetPaused(ctx, true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	out, _, err := runCLI(t, []string{"trigger", "mega-gift", "--username", "whale", "--gift-count", "7"}, env.addr)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	requireContains(t, out, "Queued entry")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.addr)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "whale")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"queue", "count"}, env.addr)
	if err != nil {
		t.Fatalf("queue count: %v", err)
	}
	requireContains(t, out, "1")
}

func TestTriggerUnknownSlugFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"trigger", "ghost"}, env.addr)
	if err == nil {
		t.Fatal("expected error for unknown slug")
	}
}

func TestQueueRemoveAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	def := testsupport.SeedDefinition(t, env.store, "follow")

	if err := env.daemon.SetPaused(ctx, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	entry := testsupport.Enqueue(t, env.store, def.ID)

	out, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", entry.ID)}, env.addr)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"queue", "remove", fmt.Sprintf("%d", entry.ID)}, env.addr)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed entry")

	if _, _, err := runCLI(t, []string{"queue", "remove", fmt.Sprintf("%d", entry.ID)}, env.addr); err == nil {
		t.Fatal("expected error removing a missing entry")
	}
}

func TestPauseAndResumeCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	out, _, err := runCLI(t, []string{"pause"}, env.addr)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	requireContains(t, out, "Queue paused")

	if paused, err := env.daemon.IsPaused(ctx); err != nil || !paused {
		t.Fatalf("paused=%v err=%v", paused, err)
	}

	out, _, err = runCLI(t, []string{"resume"}, env.addr)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "Queue resumed")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.addr)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running")
	requireContains(t, out, "pending")
}

func TestAlertsSaveAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"alerts", "save", "New Sub", "--kind", "audio", "--duration", "6"}, env.addr)
	if err != nil {
		t.Fatalf("alerts save: %v", err)
	}
	requireContains(t, out, `Saved alert "new-sub"`)

	out, _, err = runCLI(t, []string{"alerts", "list"}, env.addr)
	if err != nil {
		t.Fatalf("alerts list: %v", err)
	}
	requireContains(t, out, "new-sub")
	requireContains(t, out, "audio")
}
