package neoconsole

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// Config is the configuration consumed by Start.
type Config struct {
	Neo4j graph.Neo4jConfig `yaml:"neo4j"`

	// QueryVersion is the initial version pin, e.g. "3.5". Empty means the latest grammar.
	QueryVersion string `yaml:"query_version"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns the configuration used for any value a file or the
// environment leaves unset.
func DefaultConfig() Config {
	return Config{
		Neo4j:   graph.DefaultNeo4jConfig(),
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Environment variables read by LoadConfig. They take precedence over the file.
const (
	EnvNeo4jURI      = "NEOCONSOLE_NEO4J_URI"
	EnvNeo4jUsername = "NEOCONSOLE_NEO4J_USERNAME"
	EnvNeo4jPassword = "NEOCONSOLE_NEO4J_PASSWORD"
	EnvNeo4jDatabase = "NEOCONSOLE_NEO4J_DATABASE"
	EnvQueryVersion  = "NEOCONSOLE_QUERY_VERSION"
	EnvLogLevel      = "NEOCONSOLE_LOG_LEVEL"
)

// LoadConfig reads the YAML file at path on top of DefaultConfig, applies environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	set(EnvNeo4jURI, &c.Neo4j.URI)
	set(EnvNeo4jUsername, &c.Neo4j.Username)
	set(EnvNeo4jPassword, &c.Neo4j.Password)
	set(EnvNeo4jDatabase, &c.Neo4j.Database)
	set(EnvQueryVersion, &c.QueryVersion)
	set(EnvLogLevel, &c.Logging.Level)
}

var validate = validator.New()

// Validate checks the struct tags and that QueryVersion is a valid pin.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation error: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (value: %v)", e.Namespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	if _, err := ParseVersionPin(c.QueryVersion); err != nil {
		return fmt.Errorf("configuration validation failed: query_version: %w", err)
	}
	return nil
}
