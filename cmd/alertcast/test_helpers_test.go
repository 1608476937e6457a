package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"alertcast/internal/config"
	"alertcast/internal/daemon"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
	"alertcast/internal/testsupport"
)

type cliTestEnv struct {
	cfg    *config.Config
	store  *queue.Store
	daemon *daemon.Daemon
	addr   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})

	return &cliTestEnv{cfg: cfg, store: store, daemon: d, addr: d.APIAddr()}
}

func runCLI(t *testing.T, args []string, addr string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	cmd.SetArgs(append(args, "--addr", addr))

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output missing %q:\n%s", needle, haystack)
	}
}
