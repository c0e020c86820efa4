// Package config holds the service configuration and the values of the
// command line flags.
//
// The default configuration is overridden first by a YAML config file and
// then by OS ENV variables prefixed with VESTINGSCOPE_ (VESTINGSCOPE_DB_TYPE,
// VESTINGSCOPE_DB_DSN, VESTINGSCOPE_HTTP_PORT, ...). Command line flags are
// applied last by the commands themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tranvictor/vestingscope/networks"
	"github.com/tranvictor/vestingscope/strategy"
)

// Flag values shared by the commands.
var (
	ConfigFile    string
	Network       string
	TokenID       string
	ForceRefresh  bool
	Contract      string
	JSONOutput    bool
	UploadFile    string
	Beneficiaries []string
)

const EnvPrefix = "VESTINGSCOPE_"

type DBConfig struct {
	Type string `yaml:"type"`
	// DSN is the postgres connection string, or the fixtures file of the
	// memory store.
	DSN string `yaml:"dsn"`
}

type HTTPConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ResolverConfig struct {
	InterContractDelay time.Duration `yaml:"inter_contract_delay"`
	CallTimeout        time.Duration `yaml:"call_timeout"`
	BatchSize          int           `yaml:"batch_size"`
}

type ExplorerConfig struct {
	PrimaryAPIKey     string  `yaml:"primary_api_key"`
	SecondaryAPIKey   string  `yaml:"secondary_api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type ServiceConfig struct {
	DB        DBConfig                                 `yaml:"db"`
	HTTP      HTTPConfig                               `yaml:"http"`
	Log       LogConfig                                `yaml:"log"`
	Resolver  ResolverConfig                           `yaml:"resolver"`
	Explorers ExplorerConfig                           `yaml:"explorers"`
	Networks  []networks.GenericEtherscanNetworkConfig `yaml:"networks"`
	// Nodes overrides the rpc nodes of a network: network -> name -> url.
	Nodes        map[string]map[string]string `yaml:"nodes"`
	ABISeeds     string                       `yaml:"abi_seeds"`
	ABICacheSize int                          `yaml:"abi_cache_size"`
	Strategies   []strategy.Spec              `yaml:"strategies"`
}

func Default() ServiceConfig {
	return ServiceConfig{
		DB:   DBConfig{Type: "memory"},
		HTTP: HTTPConfig{Port: "3030", ReadTimeout: 15 * time.Second, WriteTimeout: 60 * time.Second},
		Log:  LogConfig{Level: "info", Format: "text"},
		Resolver: ResolverConfig{
			InterContractDelay: 1500 * time.Millisecond,
			CallTimeout:        15 * time.Second,
			BatchSize:          10,
		},
		Explorers: ExplorerConfig{RequestsPerSecond: 4, Burst: 4},
		Nodes:     map[string]map[string]string{},
	}
}

// Load reads the config file at filename, if any, over the defaults and
// then applies the environment.
func Load(filename string) (ServiceConfig, error) {
	conf := Default()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return conf, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(content, &conf); err != nil {
			return conf, fmt.Errorf("parsing config %s: %w", filename, err)
		}
	}
	if err := conf.applyEnv(os.Getenv); err != nil {
		return conf, err
	}
	return conf, conf.Validate()
}

func (c *ServiceConfig) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"DB_TYPE":           &c.DB.Type,
		"DB_DSN":            &c.DB.DSN,
		"HTTP_ENDPOINT":     &c.HTTP.Endpoint,
		"HTTP_PORT":         &c.HTTP.Port,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FORMAT":        &c.Log.Format,
		"PRIMARY_API_KEY":   &c.Explorers.PrimaryAPIKey,
		"SECONDARY_API_KEY": &c.Explorers.SecondaryAPIKey,
		"ABI_SEEDS":         &c.ABISeeds,
	}
	for name, dst := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	durations := map[string]*time.Duration{
		"INTER_CONTRACT_DELAY": &c.Resolver.InterContractDelay,
		"CALL_TIMEOUT":         &c.Resolver.CallTimeout,
	}
	for name, dst := range durations {
		if v := getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	if v := getenv(EnvPrefix + "BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBATCH_SIZE: %w", EnvPrefix, err)
		}
		c.Resolver.BatchSize = n
	}
	return nil
}

func (c ServiceConfig) Validate() error {
	switch c.DB.Type {
	case "memory", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported db type %q", c.DB.Type)
	}
	if c.Resolver.InterContractDelay < 0 {
		return fmt.Errorf("resolver.inter_contract_delay must not be negative")
	}
	if c.Resolver.CallTimeout <= 0 {
		return fmt.Errorf("resolver.call_timeout must be positive")
	}
	if c.Resolver.BatchSize <= 0 {
		return fmt.Errorf("resolver.batch_size must be positive")
	}
	return nil
}

// Logger builds the root logger described by the log section.
func (lc LogConfig) Logger() (*logrus.Logger, error) {
	l := logrus.New()
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)
	switch strings.ToLower(lc.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", lc.Format)
	}
	return l, nil
}

// Address is the listen address of the HTTP API.
func (hc HTTPConfig) Address() string {
	return hc.Endpoint + ":" + hc.Port
}
