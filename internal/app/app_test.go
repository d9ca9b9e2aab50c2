package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dhke/internal/app"
	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dhke.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: 127.0.0.1:0
  handshake_timeout: 5s
  params:
    source: per-session
    bits: 256
log:
  level: debug
`)
	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HandshakeTimeout != 5*time.Second || cfg.Server.Params.Source != app.SourcePerSession {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.Server.Transport != "tcp" || cfg.Client.MinPrimeBits != crypto.DefaultMinBits {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"transport":  "server:\n  transport: quic\n",
		"group":      "server:\n  params:\n    group: 3\n",
		"source":     "server:\n  params:\n    source: magic\n",
		"small bits": "server:\n  params:\n    source: generate\n    bits: 8\n",
		"no file":    "server:\n  params:\n    source: file\n",
		"log level":  "log:\n  level: loud\n",
		"log format": "log:\n  format: xml\n",
		"discovery":  "server:\n  discovery:\n    enabled: true\n    instance: \"\"\n",
		"duration":   "client:\n  timeout: soon\n",
		"max bits":   "client:\n  max_prime_bits: 256\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := app.LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewWire_EngineSizePolicy(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.Client.MinPrimeBits = 1024
	cfg.Client.MaxPrimeBits = 4096
	w, err := app.NewWire(cfg, io.Discard)
	if err != nil {
		t.Fatalf("NewWire: %v", err)
	}
	if w.Engine.MinBits() != 1024 || w.Engine.MaxBits() != 4096 {
		t.Fatalf("engine policy %d..%d, want 1024..4096", w.Engine.MinBits(), w.Engine.MaxBits())
	}
	if app.DefaultConfig().Client.MaxPrimeBits != crypto.DefaultMaxBits {
		t.Fatal("default max_prime_bits should match the engine default")
	}
}

func TestConfig_MarshalRoundTrip(t *testing.T) {
	b, err := app.DefaultConfig().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), "handshake_timeout: 30s") {
		t.Fatalf("durations should render as strings:\n%s", b)
	}
	cfg, err := app.LoadConfig(writeConfig(t, string(b)))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *cfg != *app.DefaultConfig() {
		t.Fatal("defaults changed across marshal/load")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := app.NewLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", "session", "00002a")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"session":"00002a"`) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := app.NewLogger(&buf, "info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWire_FileSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	modp, _ := crypto.Group(2)
	if err := store.SaveParams(good, modp, "modp-2"); err != nil {
		t.Fatal(err)
	}

	cfg := app.DefaultConfig()
	cfg.Server.Params = app.ParamsConfig{Source: app.SourceFile, File: good}
	w, err := app.NewWire(cfg, io.Discard)
	if err != nil {
		t.Fatalf("NewWire: %v", err)
	}
	src, bits, err := w.ParamSource(context.Background())
	if err != nil {
		t.Fatalf("ParamSource: %v", err)
	}
	got, _ := src.Params(context.Background())
	if bits != 1024 || !got.Equal(modp) {
		t.Fatalf("unexpected group (%d bits)", bits)
	}

	// A composite modulus must not be served.
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"p":"ffffffff","g":"2"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Server.Params.File = bad
	if _, _, err := w.ParamSource(context.Background()); !errors.Is(err, domain.ErrParameter) {
		t.Fatalf("want ErrParameter, got %v", err)
	}
}

func TestRunServer_EndToEnd(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.StatusListen = "127.0.0.1:0"
	cfg.Server.Params.Group = 2
	cfg.Server.HandshakeTimeout = 5 * time.Second
	cfg.Client.Timeout = 5 * time.Second

	w, err := app.NewWire(cfg, io.Discard)
	if err != nil {
		t.Fatalf("NewWire: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrc := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- w.RunServer(ctx, func(a net.Addr) { addrc <- a }) }()

	var addr net.Addr
	select {
	case addr = <-addrc:
	case err := <-done:
		t.Fatalf("RunServer: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	res, err := w.Client().Exchange(ctx, addr.String())
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if res.Params.Bits() != 1024 || len(res.Key) != crypto.KeySize {
		t.Fatalf("unexpected result: %d bits, %d-byte key", res.Params.Bits(), len(res.Key))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunServer: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
