package devices

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLoader(t *testing.T, env map[string]string) *InventoryLoader {
	t.Helper()

	l, err := NewInventoryLoader()
	if err != nil {
		t.Fatalf("NewInventoryLoader() error: %v", err)
	}
	l.getenv = func(key string) string { return env[key] }
	return l
}

func TestParseInventory(t *testing.T) {
	l := newTestLoader(t, map[string]string{"LOBBY_PASSWORD": "from-env"})

	defs, err := l.Parse([]byte(`
devices:
  - name: Boardroom
    host: 10.0.0.5
    login: admin
    password: secret
    poll_interval: 30s
    timeout: 10s
  - name: Lobby
    host: lobby-am.local
    port: 8443
    protocol: https
    login: admin
    password_env: LOBBY_PASSWORD
    verify_tls: true
    enabled: false
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("devices = %d, want 2", len(defs))
	}

	board := defs[0]
	if board.Name != "Boardroom" || board.Connection.Host != "10.0.0.5" || board.Connection.Password != "secret" {
		t.Fatalf("unexpected first device: %+v", board)
	}
	if board.PollInterval != 30*time.Second || board.Connection.Timeout != 10*time.Second {
		t.Fatalf("durations not decoded: %+v", board)
	}
	if !board.IsEnabled() {
		t.Fatalf("missing enabled flag must mean enabled")
	}

	lobby := defs[1]
	if lobby.Connection.Password != "from-env" {
		t.Fatalf("Password = %q, want value from environment", lobby.Connection.Password)
	}
	if lobby.Connection.Port != 8443 || !lobby.Connection.VerifyTLS || lobby.IsEnabled() {
		t.Fatalf("unexpected second device: %+v", lobby)
	}
}

func TestParseInventoryRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "missing host", doc: "devices:\n  - name: A\n", want: "schema"},
		{name: "unknown field", doc: "devices:\n  - name: A\n    host: h\n    colour: red\n", want: "schema"},
		{name: "bad port", doc: "devices:\n  - name: A\n    host: h\n    port: 70000\n", want: "schema"},
		{name: "bad protocol", doc: "devices:\n  - name: A\n    host: h\n    protocol: ftp\n", want: "schema"},
		{name: "duplicate", doc: "devices:\n  - name: A\n    host: h\n  - name: A\n    host: i\n", want: "duplicate"},
		{name: "empty password env", doc: "devices:\n  - name: A\n    host: h\n    password_env: NOPE\n", want: "NOPE"},
		{name: "not yaml", doc: "devices: [", want: "YAML"},
	}

	l := newTestLoader(t, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Parse([]byte(tc.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestParseInventorySkipsPasswordEnvOfDisabledDevice(t *testing.T) {
	defs, err := newTestLoader(t, nil).Parse([]byte("devices:\n  - name: A\n    host: h\n    password_env: UNSET\n    enabled: false\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(defs) != 1 || defs[0].Connection.Password != "" {
		t.Fatalf("unexpected devices: %+v", defs)
	}
}

func TestLoadInventoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("devices: []\n"), 0o600); err != nil {
		t.Fatalf("write inventory: %v", err)
	}

	defs, err := newTestLoader(t, nil).Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("devices = %d, want 0", len(defs))
	}

	if _, err := newTestLoader(t, nil).Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing inventory")
	}
}
