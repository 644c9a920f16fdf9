package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("Bad config %+v", cfg)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watersensord.yaml")
	partial := `radio:
  backend: ble
  ble:
    addr: "5C:CF:7F:01:02:03"
`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("Bad error %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if cfg.Radio.Backend != "ble" {
		t.Fatalf("Bad backend %v", cfg.Radio.Backend)
	}
	if cfg.Radio.BLE.Addr != "5C:CF:7F:01:02:03" {
		t.Fatalf("Bad address %v", cfg.Radio.BLE.Addr)
	}
	// Unset fields fill in from the defaults.
	if cfg.Pins.Trigger != "GPIO23" {
		t.Fatalf("Bad trigger pin %v", cfg.Pins.Trigger)
	}
	if cfg.Radio.Serial.Baud != 115200 {
		t.Fatalf("Bad baud %v", cfg.Radio.Serial.Baud)
	}
	if cfg.Store.Path != "/var/lib/watersensord/settings.bin" {
		t.Fatalf("Bad store path %v", cfg.Store.Path)
	}
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watersensord.yaml")
	if err := os.WriteFile(path, []byte("\t{nope"), 0644); err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watersensord.yaml")

	cfg := Default()
	cfg.Radio.Backend = "mock"
	cfg.Pins.LEDInvert = true
	cfg.HomeKit.Enabled = false

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Bad error %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if *out != *cfg {
		t.Fatalf("Bad config %+v", out)
	}
}
