package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for geosql-engine.
// Configuration comes from a YAML file (config.yaml) with environment
// variable overrides. Secrets (database password, LLM API key) must only
// come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database    DatabaseConfig    `yaml:"database"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Corrections CorrectionsConfig `yaml:"corrections"`
	LLM         LLMConfig         `yaml:"llm"`
	Executor    ExecutorConfig    `yaml:"executor"`
}

// DatabaseConfig holds PostgreSQL/PostGIS connection configuration.
// The configured role should be a read-only one; the engine never writes.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"llm_read"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"geodata"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// CatalogConfig controls schema introspection and the catalog cache.
type CatalogConfig struct {
	// AllowedSchemas restricts introspection (and therefore correction and
	// execution) to the listed schemas.
	AllowedSchemas []string `yaml:"allowed_schemas" env:"CATALOG_ALLOWED_SCHEMAS" env-separator:"," env-default:"public"`
	// RefreshMinutes is the coarse staleness interval after which a Get
	// triggers a background refresh. 0 disables time-based refresh.
	RefreshMinutes           int `yaml:"refresh_minutes" env:"CATALOG_REFRESH_MINUTES" env-default:"30"`
	IntrospectTimeoutSeconds int `yaml:"introspect_timeout_seconds" env:"CATALOG_INTROSPECT_TIMEOUT_SECONDS" env-default:"30"`
}

// RefreshInterval returns the staleness interval as a duration.
func (c *CatalogConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMinutes) * time.Minute
}

// IntrospectTimeout returns the introspection query timeout as a duration.
func (c *CatalogConfig) IntrospectTimeout() time.Duration {
	return time.Duration(c.IntrospectTimeoutSeconds) * time.Second
}

// CorrectionsConfig holds the correction context configuration: canonical
// SRIDs and the alias tables the rewrite rules consult.
type CorrectionsConfig struct {
	// MetricSRID is the projected SRID used for metric distance/area
	// operations. Defaults to EPSG:32719 (UTM 19S).
	MetricSRID int `yaml:"metric_srid" env:"CORRECTIONS_METRIC_SRID" env-default:"32719"`
	// GeographicSRID is the canonical geographic (degree-based) SRID.
	GeographicSRID int `yaml:"geographic_srid" env:"CORRECTIONS_GEOGRAPHIC_SRID" env-default:"4326"`
	// FallbackSRID is assumed, flagged as unverified, when the database
	// reports no SRID (0/unknown) for a geometry column.
	FallbackSRID int `yaml:"fallback_srid" env:"CORRECTIONS_FALLBACK_SRID" env-default:"4326"`
	// GeometryAliases are generic column names the model tends to invent for
	// geometry; they resolve to each table's declared geometry column.
	GeometryAliases []string `yaml:"geometry_aliases" env:"CORRECTIONS_GEOMETRY_ALIASES" env-separator:"," env-default:"geom,geometry,the_geom"`
	// IdentifierAliases resolve to each table's identifier column.
	IdentifierAliases []string `yaml:"identifier_aliases" env:"CORRECTIONS_IDENTIFIER_ALIASES" env-separator:"," env-default:"id,objectid,gid"`
	// Aliases are literal operator-configured renames, applied as the final
	// rewrite pass. Keys may be bare ("superficie") or table-scoped
	// ("parcelas.superficie").
	Aliases map[string]string `yaml:"aliases"`
}

// LLMConfig holds language model endpoint configuration.
// The openai provider speaks to any OpenAI-compatible endpoint, which
// covers Ollama and llama.cpp server deployments.
type LLMConfig struct {
	Provider       string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint       string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"http://127.0.0.1:11434/v1"`
	APIKey         string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	SQLModel       string  `yaml:"sql_model" env:"LLM_SQL_MODEL" env-default:"sqlcoder"`
	ChatModel      string  `yaml:"chat_model" env:"LLM_CHAT_MODEL" env-default:"llama3"`
	Temperature    float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"120"`
}

// Timeout returns the per-request LLM timeout as a duration.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExecutorConfig bounds query execution.
type ExecutorConfig struct {
	RowLimit                int     `yaml:"row_limit" env:"EXECUTOR_ROW_LIMIT" env-default:"500"`
	StatementTimeoutSeconds int     `yaml:"statement_timeout_seconds" env:"EXECUTOR_STATEMENT_TIMEOUT_SECONDS" env-default:"15"`
	IdleTimeoutSeconds      int     `yaml:"idle_timeout_seconds" env:"EXECUTOR_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ExplainTimeoutSeconds   int     `yaml:"explain_timeout_seconds" env:"EXECUTOR_EXPLAIN_TIMEOUT_SECONDS" env-default:"5"`
	MaxPlanCost             float64 `yaml:"max_plan_cost" env:"EXECUTOR_MAX_PLAN_COST" env-default:"5000000"`
}

// StatementTimeout returns the per-statement timeout as a duration.
func (c *ExecutorConfig) StatementTimeout() time.Duration {
	return time.Duration(c.StatementTimeoutSeconds) * time.Second
}

// IdleTimeout returns the idle-in-transaction timeout as a duration.
func (c *ExecutorConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// ExplainTimeout returns the EXPLAIN gate timeout as a duration.
func (c *ExecutorConfig) ExplainTimeout() time.Duration {
	return time.Duration(c.ExplainTimeoutSeconds) * time.Second
}

// Load reads configuration from the given YAML file with environment
// variable overrides. The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err != nil {
		// No config file: environment variables and defaults only.
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read config from environment: %w", err)
		}
	} else {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Catalog.AllowedSchemas) == 0 {
		return fmt.Errorf("catalog.allowed_schemas must not be empty")
	}
	if c.Corrections.MetricSRID <= 0 {
		return fmt.Errorf("corrections.metric_srid must be positive")
	}
	if c.Corrections.GeographicSRID <= 0 {
		return fmt.Errorf("corrections.geographic_srid must be positive")
	}
	if c.Executor.RowLimit <= 0 {
		return fmt.Errorf("executor.row_limit must be positive")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be \"openai\" or \"anthropic\", got %q", c.LLM.Provider)
	}
	return nil
}
