package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration rejected before any shared resource is touched.
var ErrInvalid = errors.New("invalid configuration")

// Run modes.
const (
	ModeInProcess = "inproc"  // goroutines over in-memory or shared backends
	ModeProcess   = "process" // one OS process per participant
)

// Backends for the gate set and the state store.
const (
	BackendMemory = "memory"
	BackendSysV   = "sysv"
	BackendRedis  = "redis"
)

// DefaultFile is read when present and no -config flag is given.
const DefaultFile = "smokers.yaml"

// Timing is a normally distributed step duration.
type Timing struct {
	Mean   time.Duration `yaml:"mean"`
	StdDev time.Duration `yaml:"stddev"`
}

// Config of one run.
type Config struct {
	Ingredients int    `yaml:"ingredients"`
	Orders      int    `yaml:"orders"`
	Mode        string `yaml:"mode"`
	Backend     string `yaml:"backend"`

	// Key names the shared resources: a SysV IPC key or a Redis run ID.
	// Empty picks one (ftok of the executable, or a fresh UUID).
	Key       string `yaml:"key"`
	RedisAddr string `yaml:"redis_address"`
	RedisDB   int    `yaml:"redis_db"`

	LogFile  string `yaml:"log_file"`  // trace file; empty is stdout
	ErrDir   string `yaml:"error_dir"` // per-participant error files; empty disables
	HTTPAddr string `yaml:"http_address"`
	Seed     uint64 `yaml:"seed"` // 0 is random

	Rolling Timing `yaml:"rolling"`
	Smoking Timing `yaml:"smoking"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Ingredients: 3,
		Orders:      5,
		Mode:        ModeInProcess,
		Backend:     BackendMemory,
		RedisAddr:   "127.0.0.1:6379",
		LogFile:     "smokers.log",
		Rolling:     Timing{Mean: 100 * time.Millisecond, StdDev: 30 * time.Millisecond},
		Smoking:     Timing{Mean: 100 * time.Millisecond, StdDev: 30 * time.Millisecond},
	}
}

// Load reads path over the defaults. A missing DefaultFile is not an error;
// any other missing path is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, nil
}

// BindFlags registers flags that override the loaded values. Call before
// fs.Parse.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Ingredients, "ingredients", c.Ingredients, "number of ingredient types (and smokers)")
	fs.IntVar(&c.Orders, "orders", c.Orders, "orders the agent fulfills before closing")
	fs.StringVar(&c.Mode, "mode", c.Mode, "run mode: inproc or process")
	fs.StringVar(&c.Backend, "backend", c.Backend, "shared backend: memory, sysv or redis")
	fs.StringVar(&c.Key, "key", c.Key, "shared resource key (SysV key or Redis run id)")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "redis address")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "redis database")
	fs.StringVar(&c.LogFile, "log", c.LogFile, "trace file, empty for stdout")
	fs.StringVar(&c.ErrDir, "errdir", c.ErrDir, "directory for per-participant error files")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "status API listen address, empty disables")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "random seed, 0 for a random one")
	fs.DurationVar(&c.Rolling.Mean, "rolling", c.Rolling.Mean, "mean rolling time")
	fs.DurationVar(&c.Rolling.StdDev, "rolling-stddev", c.Rolling.StdDev, "rolling time standard deviation")
	fs.DurationVar(&c.Smoking.Mean, "smoking", c.Smoking.Mean, "mean smoking time")
	fs.DurationVar(&c.Smoking.StdDev, "smoking-stddev", c.Smoking.StdDev, "smoking time standard deviation")
}

// Validate rejects configurations no run can start from.
func (c *Config) Validate() error {
	switch {
	case c.Ingredients < 3:
		return fmt.Errorf("%w: need at least 3 ingredients, got %d", ErrInvalid, c.Ingredients)
	case c.Ingredients > 99:
		return fmt.Errorf("%w: at most 99 ingredients, got %d", ErrInvalid, c.Ingredients)
	case c.Orders < 0:
		return fmt.Errorf("%w: negative order count %d", ErrInvalid, c.Orders)
	case c.Rolling.Mean < 0 || c.Rolling.StdDev < 0 || c.Smoking.Mean < 0 || c.Smoking.StdDev < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	switch c.Mode {
	case ModeInProcess, ModeProcess:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}
	switch c.Backend {
	case BackendMemory:
		if c.Mode == ModeProcess {
			return fmt.Errorf("%w: process mode needs a shared backend (sysv or redis)", ErrInvalid)
		}
	case BackendSysV:
		if c.Key != "" {
			if _, err := c.SysVKey(); err != nil {
				return err
			}
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend without an address", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	return nil
}

// SysVKey parses Key as a SysV IPC key (decimal, 0x hex or 0 octal).
func (c *Config) SysVKey() (int, error) {
	k, err := strconv.ParseInt(c.Key, 0, 32)
	if err != nil || k == 0 {
		return 0, fmt.Errorf("%w: sysv key %q", ErrInvalid, c.Key)
	}
	return int(k), nil
}

// ParticipantArgs returns the flags a child process needs to join this run
// as role/id. Key must already be resolved.
func (c *Config) ParticipantArgs(role string, id int) []string {
	args := []string{
		role,
		"-id", strconv.Itoa(id),
		"-ingredients", strconv.Itoa(c.Ingredients),
		"-orders", strconv.Itoa(c.Orders),
		"-backend", c.Backend,
		"-key", c.Key,
		"-log", c.LogFile,
		"-rolling", c.Rolling.Mean.String(),
		"-rolling-stddev", c.Rolling.StdDev.String(),
		"-smoking", c.Smoking.Mean.String(),
		"-smoking-stddev", c.Smoking.StdDev.String(),
	}
	if c.Backend == BackendRedis {
		args = append(args, "-redis", c.RedisAddr, "-redis-db", strconv.Itoa(c.RedisDB))
	}
	if c.ErrDir != "" {
		args = append(args, "-errdir", c.ErrDir)
	}
	if c.Seed != 0 {
		// distinct but reproducible per participant
		args = append(args, "-seed", strconv.FormatUint(c.Seed+uint64(id)*7919+roleSalt(role), 10))
	}
	return args
}

func roleSalt(role string) uint64 {
	var h uint64
	for _, r := range role {
		h = h*31 + uint64(r)
	}
	return h
}
