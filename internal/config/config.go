package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultEnvironment = "production"
	DefaultPageSize    = 100
	RowPageSize        = 50
)

type APIEnvironment struct {
	Name        string
	Base        string
	Auth        string
	DisplayName string
}

type Deployment struct {
	Branch      string `json:"branch"`
	CommitSHA   string `json:"commit_sha"`
	Environment string `json:"environment"`
}

type Config struct {
	ServiceName string
	ListenAddr  string
	LogLevel    string

	DefaultEnvironment string
	Environments       map[string]APIEnvironment

	CookieSecure    bool
	SessionTTL      time.Duration
	RefreshBuffer   time.Duration
	RefreshInterval time.Duration

	AuthTimeout time.Duration
	DataTimeout time.Duration
	LogTimeout  time.Duration

	DefaultPageSize int
	RowPageSize     int

	KafkaBrokers []string
	AuditTopic   string

	CSRFEnabled        bool
	CSRFTrustedOrigins []string

	// ExitMarkerDir holds the graceful-exit marker between restarts.
	ExitMarkerDir string

	Deployment Deployment
}

func builtinEnvironments() map[string]APIEnvironment {
	return map[string]APIEnvironment{
		"production": {
			Name:        "production",
			Base:        "https://api.trends.earth/api/v1",
			Auth:        "https://api.trends.earth/auth",
			DisplayName: "Production (api.trends.earth)",
		},
		"staging": {
			Name:        "staging",
			Base:        "https://api-staging.trends.earth/api/v1",
			Auth:        "https://api-staging.trends.earth/auth",
			DisplayName: "Staging (api-staging.trends.earth)",
		},
	}
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment variables", err)
	}

	envs := builtinEnvironments()
	if raw := os.Getenv("API_ENVIRONMENTS"); raw != "" {
		parsed, err := ParseEnvironments(raw)
		if err != nil {
			return nil, err
		}
		for name, env := range parsed {
			envs[name] = env
		}
	}

	cfg := &Config{
		ServiceName: EnvDefault("SERVICE_NAME", "trends-dashboard"),
		ListenAddr:  EnvDefault("LISTEN_ADDR", ":8050"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DefaultEnvironment: EnvDefault("DEFAULT_API_ENVIRONMENT", DefaultEnvironment),
		Environments:       envs,

		CookieSecure:    EnvBoolDefault("COOKIE_SECURE", false),
		SessionTTL:      EnvDurationDefault("SESSION_TTL", 30*24*time.Hour),
		RefreshBuffer:   EnvDurationDefault("REFRESH_BUFFER", 5*time.Minute),
		RefreshInterval: EnvDurationDefault("REFRESH_INTERVAL", 5*time.Minute),

		AuthTimeout: EnvDurationDefault("AUTH_TIMEOUT", 5*time.Second),
		DataTimeout: EnvDurationDefault("DATA_TIMEOUT", 10*time.Second),
		LogTimeout:  EnvDurationDefault("LOG_TIMEOUT", 30*time.Second),

		DefaultPageSize: EnvIntDefault("DEFAULT_PAGE_SIZE", DefaultPageSize),
		RowPageSize:     EnvIntDefault("ROW_PAGE_SIZE", RowPageSize),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:   EnvDefault("AUDIT_TOPIC", "session_events"),

		CSRFEnabled:        EnvBoolDefault("CSRF_ENABLED", true),
		CSRFTrustedOrigins: CSV(os.Getenv("CSRF_TRUSTED_ORIGINS")),

		ExitMarkerDir: EnvDefault("EXIT_MARKER_DIR", os.TempDir()),

		Deployment: LoadDeployment(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, ok := c.Environments[c.DefaultEnvironment]; !ok {
		return fmt.Errorf("default api environment %q is not configured", c.DefaultEnvironment)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.DefaultPageSize < 1 || c.RowPageSize < 1 {
		return fmt.Errorf("page sizes must be positive")
	}
	return nil
}

// EnvironmentNames returns configured environment names in stable order.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseEnvironments reads "name=base|auth" pairs separated by commas.
func ParseEnvironments(raw string) (map[string]APIEnvironment, error) {
	out := make(map[string]APIEnvironment)
	for _, entry := range CSV(raw) {
		name, urls, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("api environment %q: expected name=base|auth", entry)
		}
		base, auth, ok := strings.Cut(urls, "|")
		if !ok || base == "" || auth == "" {
			return nil, fmt.Errorf("api environment %q: expected base|auth urls", name)
		}
		name = strings.TrimSpace(name)
		out[name] = APIEnvironment{
			Name:        name,
			Base:        strings.TrimRight(strings.TrimSpace(base), "/"),
			Auth:        strings.TrimRight(strings.TrimSpace(auth), "/"),
			DisplayName: name,
		}
	}
	return out, nil
}

func LoadDeployment() Deployment {
	env := firstNonEmpty(
		os.Getenv("DEPLOYMENT_ENVIRONMENT"),
		os.Getenv("ENVIRONMENT"),
		os.Getenv("ENV"),
		"development",
	)
	if os.Getenv("AWS_REGION") != "" || os.Getenv("ECS_CONTAINER_METADATA_URI") != "" {
		env = "production"
	}
	return Deployment{
		Branch:      EnvDefault("GIT_BRANCH", "unknown"),
		CommitSHA:   EnvDefault("GIT_COMMIT", "unknown"),
		Environment: env,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
