package config

import (
	"os"
	"path/filepath"
	"testing"
)

// helper to write temp config files
func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestValidate_ValidConfig(t *testing.T) {
	valid := `port: 8080
world_name: "Test Layout"
require_reservation: auto
interfaces:
  - id: main-bus
    protocol: dinamo
    type: tcp
    address: 127.0.0.1:2560
script:
  enabled: true
  dir: data/scripts
`
	p := writeTempConfig(t, "valid.yaml", valid)
	if err := Validate(p); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_TabsInConfig(t *testing.T) {
	tabbed := "script:\n\tenabled: true\n\tdir:\n\t\tdata/scripts\n"
	p := writeTempConfig(t, "tabs.yaml", tabbed)
	if err := Validate(p); err == nil {
		t.Fatalf("expected validation to fail due to tabs, but it passed")
	}
}

func TestValidate_MissingFile(t *testing.T) {
	if err := Validate("/path/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}

func TestValidate_MalformedInterfaces(t *testing.T) {
	// interfaces is present but malformed (map instead of list)
	bad := "interfaces: { id: main-bus }\n"
	p := writeTempConfig(t, "badinterfaces.yaml", bad)
	if err := Validate(p); err == nil {
		t.Fatalf("expected error for malformed interfaces section, but got nil")
	}
}

func TestValidate_UnknownProtocol(t *testing.T) {
	bad := `interfaces:
  - id: main-bus
    protocol: carrier-pigeon
    type: tcp
    address: 127.0.0.1:2560
`
	p := writeTempConfig(t, "badprotocol.yaml", bad)
	if err := Validate(p); err == nil {
		t.Fatalf("expected error for unknown interface protocol, but got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(writeTempConfig(t, "empty.yaml", "port: 9090\n"))
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.RequireReservation != RequirePathReservationAuto {
		t.Fatalf("expected default require_reservation auto, got %q", cfg.RequireReservation)
	}
	if !cfg.Script.Enabled {
		t.Fatalf("expected script.enabled default true")
	}
}
