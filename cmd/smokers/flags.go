package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/edirooss/smokers/internal/config"
)

// configPath finds -config in args without parsing the rest, so the file
// can be loaded before flags override it.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := strings.TrimLeft(args[i], "-")
		if len(a) == len(args[i]) {
			continue // not a flag
		}
		if v, ok := strings.CutPrefix(a, "config="); ok {
			return v
		}
		if a == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// loadConfig builds the configuration of a command: defaults, then the
// config file, then flags. bind registers command-specific flags.
func loadConfig(name string, args []string, bind func(*flag.FlagSet)) (config.Config, error) {
	cfg, err := config.Load(configPath(args))
	if err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.String("config", "", "YAML config file (default "+config.DefaultFile+" if present)")
	cfg.BindFlags(fs)
	if bind != nil {
		bind(fs)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("%w: unexpected arguments %q", config.ErrInvalid, fs.Args())
	}
	return cfg, cfg.Validate()
}
