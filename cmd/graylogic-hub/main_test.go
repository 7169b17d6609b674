package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/auth"
	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/entry"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/template"
)

// ─── Fixtures ───────────────────────────────────────────────────────

const testSecret = "0123456789abcdef0123456789abcdef"

const testConfig = `
site:
  id: test-site
database:
  path: ":memory:"
api:
  port: 18090
mqtt:
  enabled: false
telemetry:
  enabled: false
security:
  jwt:
    secret: "` + testSecret + `"
    token_ttl: 30
entries:
  - id: controller
    url: http://192.0.2.10
    categories:
      - name: zones
        path: /api/zones
        sensors:
          - key: zone_1
            path: zones.0.temp
          - key: zone_2
            path: zones.1.temp
      - name: provision
        path: /api/provision
        interval: 5m
templates:
  - id: average
    template: "{{sensor.controller_zone_1}}.value"
    validator:
      type: number
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GRAYLOGIC_JWT_SECRET", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type fakeHandle struct {
	name      string
	refreshes atomic.Int32
}

func (h *fakeHandle) Name() string                   { return h.name }
func (h *fakeHandle) Snapshot() coordinator.Status   { return coordinator.Status{Name: h.name} }
func (h *fakeHandle) RequestRefresh(context.Context) { h.refreshes.Add(1) }
func (h *fakeHandle) Shutdown()                      {}

type rebootFunc func(ctx context.Context) error

func (f rebootFunc) Reboot(ctx context.Context) error { return f(ctx) }

type commandFixture struct {
	manager   *entry.Manager
	zones     *fakeHandle
	provision *fakeHandle
	reboots   atomic.Int32
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()
	f := &commandFixture{
		manager:   entry.NewManager(config.SetupRetryConfig{InitialDelay: time.Millisecond}, nil),
		zones:     &fakeHandle{name: "zones"},
		provision: &fakeHandle{name: "provision"},
	}
	t.Cleanup(f.manager.UnloadAll)

	ctx := context.Background()
	err := f.manager.Setup(ctx, entry.New(config.EntryConfig{ID: "controller"}), entry.IntegrationFunc(func(_ context.Context, e *entry.Entry) error {
		e.AddCoordinator(f.zones)
		e.AddCoordinator(f.provision)
		e.SetRebooter(rebootFunc(func(context.Context) error {
			f.reboots.Add(1)
			return nil
		}))
		return nil
	}))
	if err != nil {
		t.Fatalf("Setup(controller) error = %v", err)
	}

	err = f.manager.Setup(ctx, entry.New(config.EntryConfig{ID: "sensor_box"}), entry.IntegrationFunc(func(_ context.Context, e *entry.Entry) error {
		e.AddCoordinator(&fakeHandle{name: "readings"})
		return nil
	}))
	if err != nil {
		t.Fatalf("Setup(sensor_box) error = %v", err)
	}

	err = f.manager.Setup(ctx, entry.New(config.EntryConfig{ID: "broken"}), entry.IntegrationFunc(func(context.Context, *entry.Entry) error {
		return errors.New("invalid credentials")
	}))
	if !errors.Is(err, entry.ErrSetupFailed) {
		t.Fatalf("Setup(broken) error = %v, want ErrSetupFailed", err)
	}
	return f
}

type memoryAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memoryAudit) Create(_ context.Context, ev *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *memoryAudit) List(context.Context, audit.Filter) (*audit.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &audit.Page{Events: m.events, Total: len(m.events)}, nil
}

func (m *memoryAudit) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// ─── Validators ─────────────────────────────────────────────────────

func TestBuildValidator(t *testing.T) {
	lo, hi := 0.0, 100.0

	tests := []struct {
		name    string
		cfg     config.ValidatorConfig
		raw     any
		want    any
		wantErr bool
	}{
		{name: "number in range", cfg: config.ValidatorConfig{Type: "number", Min: &lo, Max: &hi}, raw: "21.5", want: 21.5},
		{name: "number above max", cfg: config.ValidatorConfig{Type: "number", Min: &lo, Max: &hi}, raw: 150.0, wantErr: true},
		{name: "boolean", cfg: config.ValidatorConfig{Type: "boolean"}, raw: "on", want: true},
		{name: "boolean rejects text", cfg: config.ValidatorConfig{Type: "boolean"}, raw: "maybe", wantErr: true},
		{name: "string", cfg: config.ValidatorConfig{Type: "string"}, raw: 3.0, want: "3"},
		{name: "one_of", cfg: config.ValidatorConfig{Type: "one_of", Values: []string{"heat", "cool"}}, raw: "cool", want: "cool"},
		{name: "one_of rejects", cfg: config.ValidatorConfig{Type: "one_of", Values: []string{"heat", "cool"}}, raw: "off", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := buildValidator(tt.cfg)
			if v == nil {
				t.Fatal("buildValidator() = nil")
			}
			got, err := v(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, template.ErrValidation) {
					t.Errorf("validator(%v) error = %v, want ErrValidation", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validator(%v) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("validator(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBuildValidator_EmptyAcceptsAnything(t *testing.T) {
	if v := buildValidator(config.ValidatorConfig{}); v != nil {
		t.Error("buildValidator(empty) != nil")
	}
}

func TestParseTemplates(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		wantErr bool
	}{
		{name: "valid", tmpl: "{{sensor.controller_zone_1}}.value"},
		{name: "no entity", tmpl: "42", wantErr: true},
		{name: "bad placeholder", tmpl: "{{Not An Entity}}.value", wantErr: true},
		{name: "self reference", tmpl: "{{sensor.average}}.value", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parseTemplates([]config.TemplateConfig{{ID: "average", Template: tt.tmpl}})
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseTemplates() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTemplates() error = %v", err)
			}
			if len(parsed) != 1 {
				t.Errorf("len(parsed) = %d, want 1", len(parsed))
			}
		})
	}
}

// ─── Commands ───────────────────────────────────────────────────────

func TestExecuteCommand_RefreshAll(t *testing.T) {
	f := newCommandFixture(t)

	if err := executeCommand(context.Background(), f.manager, "controller", mqtt.Command{Command: mqtt.CommandRefresh}); err != nil {
		t.Fatalf("executeCommand() error = %v", err)
	}
	if f.zones.refreshes.Load() != 1 || f.provision.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d/%d, want 1/1", f.zones.refreshes.Load(), f.provision.refreshes.Load())
	}
}

func TestExecuteCommand_RefreshOne(t *testing.T) {
	f := newCommandFixture(t)

	cmd := mqtt.Command{Command: mqtt.CommandRefresh, Coordinator: "provision"}
	if err := executeCommand(context.Background(), f.manager, "controller", cmd); err != nil {
		t.Fatalf("executeCommand() error = %v", err)
	}
	if f.zones.refreshes.Load() != 0 {
		t.Errorf("zones refreshes = %d, want 0", f.zones.refreshes.Load())
	}
	if f.provision.refreshes.Load() != 1 {
		t.Errorf("provision refreshes = %d, want 1", f.provision.refreshes.Load())
	}
}

func TestExecuteCommand_Reboot(t *testing.T) {
	f := newCommandFixture(t)

	if err := executeCommand(context.Background(), f.manager, "controller", mqtt.Command{Command: mqtt.CommandReboot}); err != nil {
		t.Fatalf("executeCommand() error = %v", err)
	}
	if f.reboots.Load() != 1 {
		t.Errorf("reboots = %d, want 1", f.reboots.Load())
	}
}

func TestExecuteCommand_Errors(t *testing.T) {
	f := newCommandFixture(t)

	tests := []struct {
		name    string
		entryID string
		cmd     mqtt.Command
		wantErr error
	}{
		{name: "unknown entry", entryID: "missing", cmd: mqtt.Command{Command: mqtt.CommandRefresh}, wantErr: entry.ErrNotFound},
		{name: "entry not loaded", entryID: "broken", cmd: mqtt.Command{Command: mqtt.CommandRefresh}, wantErr: entry.ErrNotLoaded},
		{name: "unknown coordinator", entryID: "controller", cmd: mqtt.Command{Command: mqtt.CommandRefresh, Coordinator: "prices"}, wantErr: entry.ErrNotFound},
		{name: "reboot unsupported", entryID: "sensor_box", cmd: mqtt.Command{Command: mqtt.CommandReboot}, wantErr: entry.ErrRebootUnsupported},
		{name: "unknown command", entryID: "controller", cmd: mqtt.Command{Command: "explode"}, wantErr: mqtt.ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executeCommand(context.Background(), f.manager, tt.entryID, tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("executeCommand() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommandHandler(t *testing.T) {
	f := newCommandFixture(t)
	repo := &memoryAudit{}
	handler := commandHandler(context.Background(), f.manager, audit.NewTrail(repo, nil), nopLogger{})

	if err := handler("graylogic/state/hub/controller", []byte(`{"command":"refresh"}`)); !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("handler(state topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := handler((mqtt.Topics{}).EntryCommand("controller"), []byte(`not json`)); !errors.Is(err, mqtt.ErrInvalidCommand) {
		t.Errorf("handler(bad payload) error = %v, want ErrInvalidCommand", err)
	}

	if err := handler((mqtt.Topics{}).EntryCommand("controller"), []byte(`{"command":"refresh","coordinator":"zones"}`)); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if err := handler((mqtt.Topics{}).EntryCommand("sensor_box"), []byte(`{"command":"reboot"}`)); err != nil {
		t.Fatalf("handler(reboot) error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.zones.refreshes.Load() == 0 || repo.Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for commands")
		}
		time.Sleep(2 * time.Millisecond)
	}

	outcomes := map[string]string{}
	page, _ := repo.List(context.Background(), audit.Filter{})
	for _, ev := range page.Events {
		if ev.Source != audit.SourceMQTT {
			t.Errorf("event source = %s, want mqtt", ev.Source)
		}
		outcomes[ev.EntryID+"/"+ev.Action] = ev.Outcome
	}
	if outcomes["controller/refresh"] != audit.OutcomeAccepted {
		t.Errorf("controller refresh outcome = %q, want accepted", outcomes["controller/refresh"])
	}
	if outcomes["sensor_box/reboot"] != audit.OutcomeRejected {
		t.Errorf("sensor_box reboot outcome = %q, want rejected", outcomes["sensor_box/reboot"])
	}
}

// ─── CLI ────────────────────────────────────────────────────────────

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "-c", writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{
		"Config is valid!",
		"Entries:      1",
		"Coordinators: 2",
		"Sensors:      2",
		"Templates:    1",
		"API auth:     true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing file", body: ""},
		{name: "bad template", body: strings.Replace(testConfig, "{{sensor.controller_zone_1}}.value", "{{Nope}}", 1)},
		{name: "duplicate category", body: strings.Replace(testConfig, "name: provision", "name: zones", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			if _, err := execute(t, "validate", "-c", path); err == nil {
				t.Error("validate error = nil, want error")
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "-c", writeConfig(t, testConfig), "--subject", "dashboard", "--role", "operator")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "dashboard" || claims.Role != auth.RoleOperator {
		t.Errorf("claims = %s/%s, want dashboard/operator", claims.Subject, claims.Role)
	}

	// token_ttl is 30 minutes.
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", ttl)
	}
}

func TestTokenCommand_Errors(t *testing.T) {
	noSecret := strings.Replace(testConfig, `secret: "`+testSecret+`"`, `secret: ""`, 1)

	tests := []struct {
		name    string
		body    string
		args    []string
		wantErr error
	}{
		{name: "no secret", body: noSecret, args: []string{"--subject", "x"}, wantErr: auth.ErrNoSecret},
		{name: "bad role", body: testConfig, args: []string{"--subject", "x", "--role", "root"}, wantErr: auth.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"token", "-c", writeConfig(t, tt.body)}, tt.args...)
			_, err := execute(t, args...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("token error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenCommand_RequiresSubject(t *testing.T) {
	if _, err := execute(t, "token", "-c", writeConfig(t, testConfig)); err == nil {
		t.Error("token without --subject error = nil, want error")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "graylogic-hub "+version) {
		t.Errorf("output = %q", out)
	}
}
