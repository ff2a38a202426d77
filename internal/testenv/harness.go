// Package testenv drives integration tests against a live platform
// stack. It resets the backing service's database between runs so tests
// always start from a known state.
package testenv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

// Config locates the stack under test. The dashboard container must be
// reachable through the local docker daemon for resets to work.
type Config struct {
	APIURL             string
	Username           string
	Password           string
	Role               string
	AccountName        string
	DashboardContainer string
}

// FromEnv reads IOTKIT_TEST_* variables. ok is false when no API URL is
// configured, in which case integration tests should skip.
func FromEnv() (Config, bool) {
	apiURL := os.Getenv("IOTKIT_TEST_URL")
	if apiURL == "" {
		return Config{}, false
	}
	return Config{
		APIURL:             apiURL,
		Username:           envOrDefault("IOTKIT_TEST_USERNAME", "testuser"),
		Password:           envOrDefault("IOTKIT_TEST_PASSWORD", "P@ssw0rd"),
		Role:               envOrDefault("IOTKIT_TEST_ROLE", "admin"),
		AccountName:        envOrDefault("IOTKIT_TEST_ACCOUNT", "testaccount"),
		DashboardContainer: envOrDefault("IOTKIT_TEST_CONTAINER", "dashboard"),
	}, true
}

// Harness holds an authenticated client against the stack under test.
type Harness struct {
	Config Config
	Client *iotkit.Client

	log zerolog.Logger
}

// Start builds an authenticated harness, or skips the test when no stack
// is configured. The backing database is reset and the test user
// re-created when the test finishes, mirroring the stack's admin tooling.
func Start(t *testing.T) *Harness {
	t.Helper()

	cfg, ok := FromEnv()
	if !ok {
		t.Skip("IOTKIT_TEST_URL not set; skipping integration test")
	}

	h := &Harness{
		Config: cfg,
		log:    zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
	}

	client, err := iotkit.NewClient(iotkit.Config{BaseURL: cfg.APIURL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Authenticate(ctx, cfg.Username, cfg.Password); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	h.Client = client

	t.Cleanup(func() {
		h.log.Info().Msg("resetting backing database")
		if err := h.ResetDB(); err != nil {
			t.Errorf("reset db: %v", err)
		}
		if err := h.AddUser(); err != nil {
			t.Errorf("re-create test user: %v", err)
		}
	})

	return h
}

// NewAccount creates a fresh account and re-authenticates so the token
// carries the new account's role grants.
func (h *Harness) NewAccount(t *testing.T) *iotkit.Account {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := h.Config.AccountName + "-" + uuid.NewString()[:8]
	account, err := h.Client.CreateAccount(ctx, name)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := h.Client.Authenticate(ctx, h.Config.Username, h.Config.Password); err != nil {
		t.Fatalf("re-authenticate: %v", err)
	}
	return account
}

// ResetDB wipes the backing service's database through its admin tool.
func (h *Harness) ResetDB() error {
	return h.adminExec("resetDB")
}

// AddUser re-creates the configured test user after a reset.
func (h *Harness) AddUser() error {
	return h.adminExec("addUser", h.Config.Username, h.Config.Password, h.Config.Role)
}

func (h *Harness) adminExec(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cmdArgs := append([]string{"exec", h.Config.DashboardContainer, "node", "/app/admin"}, args...)
	cmd := exec.CommandContext(ctx, "docker", cmdArgs...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker %v: %w: %s", args, err, out)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
