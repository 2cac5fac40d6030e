package main

import (
	"flag"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"http1d/application/http/actor/server"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is everything the daemon can be configured with, either from the
// command line or from a YAML file.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodySize     uint64        `yaml:"max_body"`

	// Dir is served as static files; without it requests are echoed.
	Dir       string `yaml:"dir"`
	MapHTML   bool   `yaml:"map_html"`
	Compress  bool   `yaml:"compress"`
	NoCache   bool   `yaml:"no_cache"`
	ReusePort bool   `yaml:"reuse_port"`

	Debug bool `yaml:"debug"`

	// Fetch, when set, answers this one request target in process and
	// prints the response instead of listening.
	Fetch string `yaml:"-"`
}

func defaultConfig() Config {
	opts := server.DefaultOptions()
	return Config{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     opts.ReadTimeout,
		WriteTimeout:    opts.WriteTimeout,
		ShutdownTimeout: 5 * time.Second,
		MaxBodySize:     opts.MaxBodySize,
	}
}

func (c Config) Address() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

func (c Config) ServerOptions() server.Options {
	opts := server.DefaultOptions()
	opts.ReadTimeout = c.ReadTimeout
	opts.WriteTimeout = c.WriteTimeout
	opts.MaxBodySize = c.MaxBodySize
	opts.Debug = c.Debug
	return opts
}

func bindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Host, "host", c.Host, "address to listen on")
	fs.IntVar(&c.Port, "port", c.Port, "port to listen on, 0 picks a free one")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "limit for each read of a request, 0 disables it")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "limit for writing a response, 0 disables it")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "grace period for in-flight requests on exit")
	fs.Uint64Var(&c.MaxBodySize, "max-body", c.MaxBodySize, "largest accepted request body in bytes")
	fs.StringVar(&c.Dir, "dir", c.Dir, "directory to serve; requests are echoed when empty")
	fs.BoolVar(&c.MapHTML, "map-html", c.MapHTML, "serve /name from name.html")
	fs.BoolVar(&c.Compress, "compress", c.Compress, "compress responses with zstd or gzip")
	fs.BoolVar(&c.NoCache, "no-cache", c.NoCache, "ask clients not to cache responses")
	fs.BoolVar(&c.ReusePort, "reuse-port", c.ReusePort, "listen with SO_REUSEPORT")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "debug logging and detailed error responses")
	fs.StringVar(&c.Fetch, "fetch", c.Fetch, "serve one GET for this target in process, print the response and exit")
}

// parseArgs reads the command line. With -config the file is loaded over
// the defaults and flags given explicitly take precedence over it.
func parseArgs(args []string, output io.Writer) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("http1d", flag.ContinueOnError)
	fs.SetOutput(output)

	var configPath string
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	bindFlags(fs, &cfg)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	if configPath == "" {
		return cfg, nil
	}

	fileCfg, err := loadConfig(configPath)
	if err != nil {
		return Config{}, err
	}

	overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
	bindFlags(overrides, &fileCfg)

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || err != nil {
			return
		}
		err = overrides.Set(f.Name, f.Value.String())
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "applying flags over config file")
	}

	return fileCfg, nil
}

func loadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening config file")
	}
	defer f.Close()

	return decodeConfig(f)
}

// decodeConfig reads YAML over the defaults. Unknown keys are rejected.
func decodeConfig(r io.Reader) (Config, error) {
	cfg := defaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decoding config file")
	}
	return cfg, nil
}
