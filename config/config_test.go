package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lsst/qserv-sub022/config"
)

func TestGetFallsBackToSchemaDefault(t *testing.T) {
	c := config.New()
	v, ok := c.Get("registry", "port")
	if !ok {
		t.Fatal("expected registry.port to resolve from schema defaults")
	}
	if v != 25081 {
		t.Fatalf("expected default 25081, got %v", v)
	}
}

func TestSetOverridesDefault(t *testing.T) {
	c := config.New()
	if err := c.Set("registry", "port", 30000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := c.Get("registry", "port")
	if v != 30000 {
		t.Fatalf("expected overridden value 30000, got %v", v)
	}
}

func TestSetAllowsUnknownKey(t *testing.T) {
	c := config.New()
	if err := c.Set("worker", "custom-extension", "x"); err != nil {
		t.Fatalf("expected unknown keys outside the schema to be settable, got %v", err)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qserv.toml")
	contents := `
[registry]
host = "registry.example.org"
port = 25090

[worker]
ingest-num-retries = 5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	host, _ := c.Get("registry", "host")
	if host != "registry.example.org" {
		t.Fatalf("expected loaded host, got %v", host)
	}
	retries, _ := c.Get("worker", "ingest-num-retries")
	if retries != int64(5) {
		t.Fatalf("expected loaded ingest-num-retries=5, got %v (%T)", retries, retries)
	}
	// Keys absent from the file still resolve from schema defaults.
	maxRetries, _ := c.Get("worker", "ingest-max-retries")
	if maxRetries != 10 {
		t.Fatalf("expected default ingest-max-retries=10, got %v", maxRetries)
	}
}

func TestReadOnlyKeyRejectsSet(t *testing.T) {
	// No schema key is currently flagged ReadOnly by default; this
	// guards the mechanism itself rather than a specific key.
	c := config.New()
	orig, hadOrig := config.Schema["worker.svc-port"]
	config.Schema["worker.svc-port"] = config.ParamFlags{ReadOnly: true, Default: orig.Default}
	defer func() {
		if hadOrig {
			config.Schema["worker.svc-port"] = orig
		}
	}()

	if err := c.Set("worker", "svc-port", 1); err == nil {
		t.Fatal("expected Set to reject a read-only key")
	}
}
