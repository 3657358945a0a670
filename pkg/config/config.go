package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. BASE_IMAGES_BUILDER_NAMESPACE
const EnvPrefix = "BASE_IMAGES"

// Config holds all configuration for the application
type Config struct {
	Builder  BuilderConfig
	Docker   DockerConfig
	Registry RegistryConfig
	Log      LogConfig
	History  HistoryConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

// BuilderConfig describes the definitions tree and publish defaults
type BuilderConfig struct {
	RootDir        string
	Namespace      string
	TemplatesDir   string
	DescriptorFile string
	BuildFile      string
}

// DockerConfig holds engine connection settings. An empty host uses DOCKER_HOST.
type DockerConfig struct {
	Host string
}

// RegistryConfig holds pass-through push credentials
type RegistryConfig struct {
	Server   string
	Username string
	Password string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// HistoryConfig holds the build history database configuration
type HistoryConfig struct {
	Enabled         bool
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// MetricsConfig controls the metrics textfile written after each run
type MetricsConfig struct {
	Textfile  string
	Namespace string
}

// TracingConfig holds distributed tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	SampleRate     float64
	Insecure       bool
}

// flagBindings maps config keys to the CLI flags that override them
var flagBindings = map[string]string{
	"builder.root_dir":  "root",
	"builder.namespace": "namespace",
	"log.level":         "log-level",
	"log.format":        "log-format",
}

// Load reads configuration from defaults, an optional config file, BASE_IMAGES_*
// environment variables and flags, in increasing order of precedence. An
// explicitly named config file must exist.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	config := &Config{
		Builder: BuilderConfig{
			RootDir:        v.GetString("builder.root_dir"),
			Namespace:      v.GetString("builder.namespace"),
			TemplatesDir:   v.GetString("builder.templates_dir"),
			DescriptorFile: v.GetString("builder.descriptor_file"),
			BuildFile:      v.GetString("builder.build_file"),
		},
		Docker: DockerConfig{
			Host: v.GetString("docker.host"),
		},
		Registry: RegistryConfig{
			Server:   v.GetString("registry.server"),
			Username: v.GetString("registry.username"),
			Password: v.GetString("registry.password"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		History: HistoryConfig{
			Enabled:         v.GetBool("history.enabled"),
			Driver:          v.GetString("history.driver"),
			DSN:             v.GetString("history.dsn"),
			MaxOpenConns:    v.GetInt("history.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("history.conn_max_lifetime"),
		},
		Metrics: MetricsConfig{
			Textfile:  v.GetString("metrics.textfile"),
			Namespace: v.GetString("metrics.namespace"),
		},
		Tracing: TracingConfig{
			Enabled:        v.GetBool("tracing.enabled"),
			ServiceName:    v.GetString("tracing.service_name"),
			ServiceVersion: v.GetString("tracing.service_version"),
			OTLPEndpoint:   v.GetString("tracing.otlp_endpoint"),
			SampleRate:     v.GetFloat64("tracing.sample_rate"),
			Insecure:       v.GetBool("tracing.insecure"),
		},
	}

	rootDir, err := filepath.Abs(config.Builder.RootDir)
	if err != nil {
		return nil, fmt.Errorf("invalid root directory %q: %w", config.Builder.RootDir, err)
	}
	config.Builder.RootDir = rootDir

	if config.History.Driver == "sqlite" && config.History.DSN == "" {
		config.History.DSN = defaultHistoryDSN()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Builder.Namespace == "" {
		return fmt.Errorf("builder.namespace must not be empty")
	}
	if c.Builder.TemplatesDir == "" || strings.ContainsAny(c.Builder.TemplatesDir, `/\`) {
		return fmt.Errorf("builder.templates_dir must be a single directory name, got %q", c.Builder.TemplatesDir)
	}
	if c.Builder.DescriptorFile == "" || c.Builder.BuildFile == "" {
		return fmt.Errorf("builder.descriptor_file and builder.build_file must not be empty")
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	if c.History.Enabled {
		switch c.History.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("history.driver must be sqlite or postgres, got %q", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn must be set when history is enabled")
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Builder defaults
	v.SetDefault("builder.root_dir", ".")
	v.SetDefault("builder.namespace", "gigantum")
	v.SetDefault("builder.templates_dir", "_templates")
	v.SetDefault("builder.descriptor_file", "dockerfile_template.json")
	v.SetDefault("builder.build_file", "Dockerfile")

	v.SetDefault("docker.host", "")

	// Registry defaults
	v.SetDefault("registry.server", "")
	v.SetDefault("registry.username", "")
	v.SetDefault("registry.password", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.max_open_conns", 1)
	v.SetDefault("history.conn_max_lifetime", 5*time.Minute)

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.namespace", "base_images")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "base-images")
	v.SetDefault("tracing.service_version", "dev")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)
}

func defaultHistoryDSN() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "base-images", "history.db")
}
