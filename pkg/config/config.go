package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
	"github.com/platinummonkey/helpdesk-rbac/pkg/webhooks"
)

// Group-role sources
const (
	RolesSourceGraph = "graph"
	RolesSourceSQL   = "sql"
	RolesSourceFile  = "file"
	RolesSourceS3    = "s3"
	RolesSourceNone  = "none"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Access        AccessConfig
	Graph         GraphConfig
	Identity      IdentityConfig
	Store         StoreConfig
	Observability ObservabilityConfig
	Webhooks      WebhookConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Per-caller limit on /v1, 0 disables
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AccessConfig tunes the access engine
type AccessConfig struct {
	AdminEmails        string // comma separated allow-list
	ConfigTTL          time.Duration
	SessionTTL         time.Duration
	RefreshSchedule    string // cron spec, "off" disables background refresh
	GroupQueryWorkers  int
	ApprovalCategories []string
}

// GraphConfig holds app-only Microsoft Graph settings
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	SiteID       string // SharePoint site holding the group roles list
	ListID       string
}

// Enabled reports whether Graph credentials are present
func (g GraphConfig) Enabled() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != ""
}

// IdentityConfig holds bearer token verification settings
type IdentityConfig struct {
	IssuerURL string
	ClientID  string
}

// StoreConfig selects where group roles and shared cache slots live
type StoreConfig struct {
	RolesSource    string
	DatabaseDriver string
	DatabaseURL    string
	RolesFile      string
	RedisURL       string

	S3Bucket       string
	S3Key          string
	S3Region       string
	S3Endpoint     string
	S3UsePathStyle bool
	S3AccessKey    string
	S3SecretKey    string
}

// WebhookConfig lists endpoints notified of audit events
type WebhookConfig struct {
	URLs   []string
	Secret string
	Format string
	Events []string // empty notifies every audit event
}

// Enabled reports whether any endpoint is configured
func (w WebhookConfig) Enabled() bool {
	return len(w.URLs) > 0
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       logrus.Level
	MetricsEnabled bool
	AuditLogDir    string // JSON-lines audit trail, empty logs audit events only to the service log
	APIDocsEnabled bool

	TracingEnabled   bool
	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Access:        loadAccessConfig(),
		Graph:         loadGraphConfig(),
		Store:         loadStoreConfig(),
		Observability: loadObservabilityConfig(),
		Webhooks:      loadWebhookConfig(),
	}
	cfg.Identity = loadIdentityConfig(cfg.Graph)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HELPDESK_HOST", "0.0.0.0"),
		Port:            getEnv("HELPDESK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("HELPDESK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("HELPDESK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("HELPDESK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("HELPDESK_SHUTDOWN_TIMEOUT", 30*time.Second),

		RateLimitPerMinute: getEnvInt("HELPDESK_RATE_LIMIT_PER_MINUTE", 600),
		RateLimitBurst:     getEnvInt("HELPDESK_RATE_LIMIT_BURST", 60),
	}
}

func loadAccessConfig() AccessConfig {
	return AccessConfig{
		AdminEmails:        getEnv("HELPDESK_ADMIN_EMAILS", ""),
		ConfigTTL:          getEnvDuration("HELPDESK_CONFIG_TTL", 5*time.Minute),
		SessionTTL:         getEnvDuration("HELPDESK_SESSION_TTL", 5*time.Minute),
		RefreshSchedule:    getEnv("HELPDESK_REFRESH_SCHEDULE", "@every 4m"),
		GroupQueryWorkers:  getEnvInt("HELPDESK_GROUP_QUERY_WORKERS", 8),
		ApprovalCategories: getEnvList("HELPDESK_APPROVAL_CATEGORIES", []string{"Purchase Request", "Purchasing"}),
	}
}

func loadGraphConfig() GraphConfig {
	return GraphConfig{
		TenantID:     getEnv("HELPDESK_TENANT_ID", ""),
		ClientID:     getEnv("HELPDESK_GRAPH_CLIENT_ID", ""),
		ClientSecret: getEnv("HELPDESK_GRAPH_CLIENT_SECRET", ""),
		BaseURL:      getEnv("HELPDESK_GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		SiteID:       getEnv("HELPDESK_ROLES_SITE_ID", ""),
		ListID:       getEnv("HELPDESK_ROLES_LIST_ID", ""),
	}
}

// loadIdentityConfig defaults the issuer to the tenant's v2.0 endpoint
func loadIdentityConfig(graph GraphConfig) IdentityConfig {
	issuer := ""
	if graph.TenantID != "" {
		issuer = fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", graph.TenantID)
	}

	return IdentityConfig{
		IssuerURL: getEnv("HELPDESK_OIDC_ISSUER", issuer),
		ClientID:  getEnv("HELPDESK_OIDC_CLIENT_ID", graph.ClientID),
	}
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		RolesSource:    strings.ToLower(getEnv("HELPDESK_ROLES_SOURCE", RolesSourceGraph)),
		DatabaseDriver: getEnv("HELPDESK_DATABASE_DRIVER", "postgres"),
		DatabaseURL:    getEnv("HELPDESK_DATABASE_URL", ""),
		RolesFile:      getEnv("HELPDESK_ROLES_FILE", ""),
		RedisURL:       getEnv("HELPDESK_REDIS_URL", ""),

		S3Bucket:       getEnv("HELPDESK_ROLES_S3_BUCKET", ""),
		S3Key:          getEnv("HELPDESK_ROLES_S3_KEY", "group-roles.yaml"),
		S3Region:       getEnv("HELPDESK_ROLES_S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("HELPDESK_ROLES_S3_ENDPOINT", ""),
		S3UsePathStyle: getEnvBool("HELPDESK_ROLES_S3_USE_PATH_STYLE", false),
		S3AccessKey:    getEnv("HELPDESK_ROLES_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("HELPDESK_ROLES_S3_SECRET_KEY", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("HELPDESK_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("HELPDESK_METRICS_ENABLED", true),
		AuditLogDir:    getEnv("HELPDESK_AUDIT_LOG_DIR", ""),
		APIDocsEnabled: getEnvBool("HELPDESK_API_DOCS_ENABLED", true),

		TracingEnabled:   getEnvBool("HELPDESK_TRACING_ENABLED", false),
		OTLPEndpoint:     getEnv("HELPDESK_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:     getEnvBool("HELPDESK_OTLP_INSECURE", true),
		TraceSampleRatio: getEnvFloat("HELPDESK_TRACE_SAMPLE_RATIO", 0.1),
	}
}

func loadWebhookConfig() WebhookConfig {
	return WebhookConfig{
		URLs:   getEnvList("HELPDESK_WEBHOOK_URLS", nil),
		Secret: getEnv("HELPDESK_WEBHOOK_SECRET", ""),
		Format: strings.ToLower(getEnv("HELPDESK_WEBHOOK_FORMAT", string(webhooks.FormatJSON))),
		Events: getEnvList("HELPDESK_WEBHOOK_EVENTS", []string{"config.invalidate", "config.reload"}),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Observability.TraceSampleRatio < 0 || c.Observability.TraceSampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be between 0 and 1")
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}

	if c.Access.ConfigTTL <= 0 {
		return fmt.Errorf("config TTL must be positive")
	}
	if c.Access.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Access.GroupQueryWorkers <= 0 {
		return fmt.Errorf("group query workers must be positive")
	}

	if c.Identity.IssuerURL == "" || c.Identity.ClientID == "" {
		return fmt.Errorf("OIDC issuer and client id are required (set HELPDESK_TENANT_ID or HELPDESK_OIDC_ISSUER)")
	}

	switch c.Store.RolesSource {
	case RolesSourceGraph:
		if !c.Graph.Enabled() {
			return fmt.Errorf("graph credentials are required for the graph roles source")
		}
		if c.Graph.SiteID == "" || c.Graph.ListID == "" {
			return fmt.Errorf("roles site and list ids are required for the graph roles source")
		}
	case RolesSourceSQL:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the sql roles source")
		}
		switch c.Store.DatabaseDriver {
		case "postgres", "sqlite3":
		default:
			return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Store.DatabaseDriver)
		}
	case RolesSourceFile:
		if c.Store.RolesFile == "" {
			return fmt.Errorf("roles file is required for the file roles source")
		}
	case RolesSourceS3:
		if c.Store.S3Bucket == "" || c.Store.S3Key == "" {
			return fmt.Errorf("bucket and key are required for the s3 roles source")
		}
		if (c.Store.S3AccessKey == "") != (c.Store.S3SecretKey == "") {
			return fmt.Errorf("s3 access key and secret key must be set together")
		}
	case RolesSourceNone:
	default:
		return fmt.Errorf("invalid roles source: %s (must be graph, sql, file, s3, or none)", c.Store.RolesSource)
	}

	for _, raw := range c.Webhooks.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid webhook URL: %s", raw)
		}
	}
	if _, err := webhooks.ParseFormat(c.Webhooks.Format); err != nil {
		return err
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
