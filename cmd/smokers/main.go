package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edirooss/smokers/internal/config"
	"github.com/edirooss/smokers/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const usage = `usage: smokers [run] [flags]
       smokers agent|watcher|smoker -id N [flags]
       smokers -v|--version`

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	os.Exit(dispatch(os.Args[1:]))
}

// dispatch runs the subcommand named by args[0] ("run" when it is a flag or
// missing) and returns the exit status.
func dispatch(args []string) int {
	cmd := "run"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		return runSupervisor(args)
	case service.RoleAgent, service.RoleWatcher, service.RoleSmoker:
		return runParticipant(cmd, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

// handleVersion prints build metadata and exits when -v/--version is the
// first argument.
func handleVersion() {
	if len(os.Args) < 2 {
		return
	}
	switch os.Args[1] {
	case "-v", "-version", "--version":
		fmt.Printf("smokers %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// helpers

// buildLogger returns the development logger. With errFile set, entries are
// also written, uncolored, to that file.
func buildLogger(errFile string) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	if errFile != "" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		logConfig.OutputPaths = []string{"stderr", errFile}
		logConfig.ErrorOutputPaths = []string{"stderr", errFile}
	}
	return zap.Must(logConfig.Build())
}

// errFilePath names the error file of a participant, e.g. error_SM01, and
// makes sure its directory exists. It returns "" when dir is unset or
// cannot be created.
func errFilePath(dir, name string) string {
	if dir == "" {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error dir %s: %v\n", dir, err)
		return ""
	}
	return filepath.Join(dir, "error_"+name)
}
