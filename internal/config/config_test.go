package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smokers.yaml")
	data := []byte("ingredients: 4\norders: 9\nbackend: redis\nrolling:\n  mean: 20ms\n  stddev: 5ms\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingredients != 4 || cfg.Orders != 9 || cfg.Backend != BackendRedis {
		t.Fatalf("loaded %+v", cfg)
	}
	if cfg.Rolling.Mean != 20*time.Millisecond || cfg.Rolling.StdDev != 5*time.Millisecond {
		t.Fatalf("rolling = %+v", cfg.Rolling)
	}
	if cfg.Smoking != Default().Smoking || cfg.Mode != ModeInProcess {
		t.Fatalf("unset fields lost their defaults: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicit missing file accepted")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("orders: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"-orders", "12", "-smoking", "1s", "-mode", "process", "-backend", "sysv"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Orders != 12 || cfg.Smoking.Mean != time.Second || cfg.Mode != ModeProcess {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		ok   bool
	}{
		{"defaults", func(*Config) {}, true},
		{"two ingredients", func(c *Config) { c.Ingredients = 2 }, false},
		{"negative orders", func(c *Config) { c.Orders = -1 }, false},
		{"zero orders", func(c *Config) { c.Orders = 0 }, true},
		{"unknown mode", func(c *Config) { c.Mode = "threads" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "etcd" }, false},
		{"process over memory", func(c *Config) { c.Mode = ModeProcess }, false},
		{"sysv hex key", func(c *Config) { c.Backend = BackendSysV; c.Key = "0x534d" }, true},
		{"sysv bad key", func(c *Config) { c.Backend = BackendSysV; c.Key = "smokers" }, false},
		{"negative stddev", func(c *Config) { c.Smoking.StdDev = -time.Millisecond }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParticipantArgsRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendRedis
	cfg.Key = "run-1"
	cfg.ErrDir = "/tmp/errs"

	args := cfg.ParticipantArgs("smoker", 2)
	if args[0] != "smoker" {
		t.Fatalf("role = %q", args[0])
	}

	got := Default()
	var id int
	fs := flag.NewFlagSet("smoker", flag.ContinueOnError)
	got.BindFlags(fs)
	fs.IntVar(&id, "id", -1, "")
	if err := fs.Parse(args[1:]); err != nil {
		t.Fatal(err)
	}
	if id != 2 || got.Backend != BackendRedis || got.Key != "run-1" || got.ErrDir != "/tmp/errs" || got.RedisAddr != cfg.RedisAddr {
		t.Fatalf("child sees %+v (id %d)", got, id)
	}
}
