package main

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/matst80/tcp2np/internal/netaddr"
	"github.com/matst80/tcp2np/internal/pipe"
	"github.com/matst80/tcp2np/internal/relay"
)

// Config holds all runtime configuration. Values come from, in increasing
// precedence: defaults, the --config YAML file, the environment (logging
// only), and command line flags.
type Config struct {
	Endpoint netip.AddrPort `yaml:"-"`
	PipeName string         `yaml:"-"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	BufferSize     int           `yaml:"buffer_size"`
	MetricsAddr    string        `yaml:"metrics"`
	Redis          RedisConfig   `yaml:"redis"`
	Admission      Admission     `yaml:"admission"`
	Logging        LoggingConfig `yaml:"logging"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Admission limits how fast accepted connections are served. Zero rates
// disable the limit.
type Admission struct {
	Rate     int `yaml:"rate"`
	PeerRate int `yaml:"peer_rate"`
	Burst    int `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// logEnv is the only configuration read from the environment.
type logEnv struct {
	Level  string `env:"TCP2NP_LOG_LEVEL"`
	Format string `env:"TCP2NP_LOG_FORMAT"`
}

func defaultConfig() Config {
	return Config{
		ConnectTimeout: pipe.DefaultTimeout,
		BufferSize:     relay.DefaultBufferSize,
		Admission:      Admission{Burst: 10},
		Logging:        LoggingConfig{Level: "info", Format: "json"},
	}
}

// loadFile overlays the YAML file at path onto cfg.
func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays TCP2NP_LOG_* onto cfg.
func (cfg *Config) loadEnv() error {
	var env logEnv
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}
	if env.Level != "" {
		cfg.Logging.Level = env.Level
	}
	if env.Format != "" {
		cfg.Logging.Format = env.Format
	}
	return nil
}

const usage = `tcp2np - relay a TCP listener to a local named pipe

USAGE
    tcp2np [flags] <ip:port> <pipe-name>

ARGUMENTS
    ip:port      address to listen on, e.g. 127.0.0.1:9000 or [::1]:9000
    pipe-name    pipe to connect to for every accepted connection; on Unix a
                 plain name maps to $TMPDIR/CoreFxPipe_<name>, an absolute
                 path is used as-is

FLAGS
`

// parseArgs builds the configuration from args. Usage and flag errors are
// written to stderr; the returned error joins every problem found.
func parseArgs(args []string, stderr io.Writer) (*Config, error) {
	cfg := defaultConfig()

	// --config has to be applied before the remaining flags so they win.
	pre := pflag.NewFlagSet("tcp2np", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	configPath := pre.String("config", "", "")
	_ = pre.Parse(args)
	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet("tcp2np", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.String("config", *configPath, "YAML file with defaults for the flags below")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "how long to wait for the pipe server per connection")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "largest chunk forwarded per read")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics and health listen address (empty disables)")
	fs.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "publish relay status to this Redis server")
	fs.StringVar(&cfg.Redis.Password, "redis-password", cfg.Redis.Password, "Redis password")
	fs.IntVar(&cfg.Redis.DB, "redis-db", cfg.Redis.DB, "Redis database")
	fs.IntVar(&cfg.Admission.Rate, "accept-rate", cfg.Admission.Rate, "connections per second served overall (0 = unlimited)")
	fs.IntVar(&cfg.Admission.PeerRate, "peer-accept-rate", cfg.Admission.PeerRate, "connections per second served per remote IP (0 = unlimited)")
	fs.IntVar(&cfg.Admission.Burst, "accept-burst", cfg.Admission.Burst, "admission burst size")
	verbose := fs.BoolP("verbose", "v", false, "log every chunk (trace level)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *verbose {
		cfg.Logging.Level = "trace"
	}

	var errs []error
	switch fs.NArg() {
	case 0:
		errs = append(errs, errors.New("missing required argument <ip:port>"), errors.New("missing required argument <pipe-name>"))
	case 1:
		errs = append(errs, errors.New("missing required argument <pipe-name>"))
	case 2:
	default:
		errs = append(errs, fmt.Errorf("unrecognized arguments: %v", fs.Args()[2:]))
	}
	if fs.NArg() >= 1 {
		ep, err := netaddr.ParseEndpoint(fs.Arg(0))
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Endpoint = ep
	}
	if fs.NArg() >= 2 {
		cfg.PipeName = fs.Arg(1)
		if cfg.PipeName == "" {
			errs = append(errs, errors.New("pipe name must not be empty"))
		}
	}
	if cfg.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect timeout must be positive, got %s", cfg.ConnectTimeout))
	}
	if cfg.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", cfg.BufferSize))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
