package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dhke/internal/app"
	"dhke/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel, logFormat, cfg = "", "", "", nil
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("bad flag"), exitInternal},
		{fmt.Errorf("dial: %w", domain.ErrNetwork), exitNetwork},
		{domain.ErrTimeout, exitTimeout},
		{domain.ErrProtocolViolation, exitProtocol},
		{domain.ErrInvalidPublicValue, exitCrypto},
		{domain.ErrParameter, exitParameter},
		{domain.ErrRandomness, exitParameter},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestGenconfig_LoadsBack(t *testing.T) {
	out, err := run(t, "genconfig")
	if err != nil {
		t.Fatalf("genconfig: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dhke.yaml")
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := app.DefaultConfig()
	if got.Server.Listen != want.Server.Listen || got.Server.HandshakeTimeout != want.Server.HandshakeTimeout {
		t.Fatalf("round trip changed the config: %+v", got.Server)
	}
}

func TestParams_WriteAndCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "group.json")
	out, err := run(t, "params", "--group", "1", "--out", path)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if !strings.Contains(out, "Bits:      768") || !strings.Contains(out, "Safe:      true") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, "params", "--check", path)
	if err != nil {
		t.Fatalf("params --check: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "OK") {
		t.Fatalf("want OK, got:\n%s", out)
	}
}

func TestParams_Errors(t *testing.T) {
	if _, err := run(t, "params", "--group", "3"); ExitCode(err) != exitParameter {
		t.Fatalf("unknown group: want parameter exit, got %v", err)
	}
	if _, err := run(t, "params", "--group", "1", "--bits", "64"); err == nil {
		t.Fatal("want an error for --group with --bits")
	}
	if _, err := run(t, "params", "--check", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("want an error for a missing file")
	}
}

func TestClient_UnreachableServer(t *testing.T) {
	_, err := run(t, "client", "127.0.0.1:1", "--timeout", "1s")
	if got := ExitCode(err); got != exitNetwork && got != exitTimeout {
		t.Fatalf("want network or timeout exit, got %d (%v)", got, err)
	}
}
