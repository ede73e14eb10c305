package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadNodeDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadNode(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadNode: %v", err)
	}
	if cfg.GRPC.Addr != NodeDefaults.ListenAddr {
		t.Errorf("GRPC.Addr = %q, want %q", cfg.GRPC.Addr, NodeDefaults.ListenAddr)
	}
	if !cfg.Instance.Discoverable {
		t.Error("instances should be discoverable by default")
	}
	if cfg.Instance.Forceable {
		t.Error("instances should not be forceable by default")
	}
	if cfg.Timeouts.Call != NodeDefaults.CallTimeout {
		t.Errorf("Timeouts.Call = %v, want %v", cfg.Timeouts.Call, NodeDefaults.CallTimeout)
	}
	if cfg.Observability.ServiceName != "mw" {
		t.Errorf("ServiceName = %q, want mw", cfg.Observability.ServiceName)
	}
}

func TestLoadRDCDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadRDC(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadRDC: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Index.TTL != RDCDefaults.TTL {
		t.Errorf("Index.TTL = %v, want %v", cfg.Index.TTL, RDCDefaults.TTL)
	}
	if cfg.GRPC.Addr != RDCDefaults.ListenAddr {
		t.Errorf("GRPC.Addr = %q, want %q", cfg.GRPC.Addr, RDCDefaults.ListenAddr)
	}
}

func TestLoadNodeYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mw.yaml")
	content := `
data_dir: /tmp/mw-test
instance:
  id: phone-1
  forceable: true
rdc:
  addr: 10.0.0.1:7500
timeouts:
  call: 2s
endpoints:
  - name: temps
    polarity: source
    schema: '{"type":"number"}'
    tags: [Sensor, outdoor]
    exposed: true
mappings:
  - endpoint: temps
    persistence: resend-query
    query:
      include_tags: [display]
      matches: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadNode(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadNode: %v", err)
	}
	if cfg.Instance.ID != "phone-1" || !cfg.Instance.Forceable {
		t.Errorf("Instance = %+v", cfg.Instance)
	}
	if cfg.RDC.Addr != "10.0.0.1:7500" {
		t.Errorf("RDC.Addr = %q", cfg.RDC.Addr)
	}
	if cfg.Timeouts.Call != 2*time.Second {
		t.Errorf("Timeouts.Call = %v, want 2s", cfg.Timeouts.Call)
	}
	if len(cfg.Endpoints) != 1 || len(cfg.Mappings) != 1 {
		t.Fatalf("endpoints=%d mappings=%d, want 1 and 1", len(cfg.Endpoints), len(cfg.Mappings))
	}

	d, err := cfg.Endpoints[0].Details(cfg.BaseConfig)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Polarity != endpoint.Source {
		t.Errorf("Polarity = %v, want source", d.Polarity)
	}
	if !d.HasTag("Sensor") || d.HasTag("sensor") {
		t.Errorf("tags are case-sensitive, got %v", d.Tags)
	}
	if len(d.Tags) != 2 || d.Tags[0] != "Sensor" || d.Tags[1] != "outdoor" {
		t.Errorf("tags should be sorted, got %v", d.Tags)
	}

	m := cfg.Mappings[0]
	pol, err := m.Policy()
	if err != nil || pol != persistence.ResendQuery {
		t.Errorf("Policy = %v, %v; want RESEND_QUERY", pol, err)
	}
	q, err := m.Query.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if q.Matches() != 1 {
		t.Errorf("Matches = %d, want 1", q.Matches())
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	if _, err := LoadNode(viper.New(), "/nonexistent/path/to/config.hcl"); err == nil {
		t.Error("LoadNode with explicit missing config file should error")
	}
}

func TestEndpointSchemaFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "s.json"), []byte(`{"type":"string"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	base := BaseConfig{DataDir: dir}

	d, err := EndpointConfig{Name: "a", Polarity: "sink", SchemaFile: "s.json"}.Details(base)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Schema != `{"type":"string"}` {
		t.Errorf("Schema = %q", d.Schema)
	}

	_, err = EndpointConfig{Name: "b", Polarity: "sink", SchemaFile: "missing.json"}.Details(base)
	if !errors.Is(err, mwerrors.ErrBadSchema) {
		t.Errorf("missing schema file: err = %v, want ErrBadSchema", err)
	}

	if _, err := (EndpointConfig{Name: "c", Polarity: "sideways"}).Details(base); err == nil {
		t.Error("unknown polarity should error")
	}
}

func TestMappingPolicyDefault(t *testing.T) {
	pol, err := MappingConfig{}.Policy()
	if err != nil || pol != persistence.None {
		t.Errorf("Policy = %v, %v; want NONE", pol, err)
	}
	if _, err := (MappingConfig{Persistence: "sometimes"}).Policy(); err == nil {
		t.Error("unknown persistence should error")
	}
}

func TestBindNodeFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	BindNodeFlags(cmd, v)

	err := cmd.Flags().Parse([]string{
		"--addr", ":7000",
		"--rdc", "rdc.local:7500",
		"--id", "tablet",
		"--forceable",
		"--discoverable=false",
		"--reflection",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	SetNodeDefaults(v)

	if v.GetString("grpc.addr") != ":7000" {
		t.Errorf("grpc.addr = %q", v.GetString("grpc.addr"))
	}
	if v.GetString("rdc.addr") != "rdc.local:7500" {
		t.Errorf("rdc.addr = %q", v.GetString("rdc.addr"))
	}
	if v.GetString("instance.id") != "tablet" {
		t.Errorf("instance.id = %q", v.GetString("instance.id"))
	}
	if !v.GetBool("instance.forceable") || v.GetBool("instance.discoverable") {
		t.Error("instance flags not bound")
	}
	if !v.GetBool("grpc.enable_reflection") {
		t.Error("reflection flag not bound")
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MW_RDC_STORAGE_BACKEND", "sqlite")
	t.Setenv("MW_RDC_INDEX_TTL", "5m")

	cfg, err := LoadRDC(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadRDC: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Index.TTL != 5*time.Minute {
		t.Errorf("Index.TTL = %v, want 5m", cfg.Index.TTL)
	}
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("MW_GRPC_ADDR", ":55555")

	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	BindNodeFlags(cmd, v)
	if err := cmd.Flags().Parse([]string{"--addr", ":6000"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	SetNodeDefaults(v)
	v.SetEnvPrefix("MW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetString("grpc.addr") != ":6000" {
		t.Errorf("flag should take priority over env var, got %q", v.GetString("grpc.addr"))
	}
}

func TestBaseConfigPath(t *testing.T) {
	b := BaseConfig{DataDir: "/data"}
	if got := b.Path("x.db"); got != filepath.Join("/data", "x.db") {
		t.Errorf("Path = %q", got)
	}
	if got := b.Path("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("Path(abs) = %q", got)
	}
	if (BaseConfig{}).ResolvedDataDir() != DefaultDataDir() {
		t.Error("empty data dir should resolve to default")
	}
}
