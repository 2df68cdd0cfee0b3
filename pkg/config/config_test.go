package config

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("HELPDESK_TEST_VAR", "custom")

	assert.Equal(t, "custom", getEnv("HELPDESK_TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("HELPDESK_TEST_VAR_NOT_SET", "default"))
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("HELPDESK_TEST_FLOAT", "0.25")
	assert.Equal(t, 0.25, getEnvFloat("HELPDESK_TEST_FLOAT", 1))

	t.Setenv("HELPDESK_TEST_FLOAT", "a quarter")
	assert.Equal(t, 1.0, getEnvFloat("HELPDESK_TEST_FLOAT", 1))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"TRUE", "TRUE", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"garbage", "yes please", true, false},
		{"unset", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HELPDESK_TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.want, getEnvBool("HELPDESK_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetEnvIntAndDuration(t *testing.T) {
	t.Setenv("HELPDESK_TEST_INT", "12")
	t.Setenv("HELPDESK_TEST_BAD_INT", "twelve")
	t.Setenv("HELPDESK_TEST_DURATION", "90s")
	t.Setenv("HELPDESK_TEST_BAD_DURATION", "soon")

	assert.Equal(t, 12, getEnvInt("HELPDESK_TEST_INT", 3))
	assert.Equal(t, 3, getEnvInt("HELPDESK_TEST_BAD_INT", 3))
	assert.Equal(t, 90*time.Second, getEnvDuration("HELPDESK_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("HELPDESK_TEST_BAD_DURATION", time.Minute))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("HELPDESK_TEST_LIST", " Purchase Request , ,Capital ")
	t.Setenv("HELPDESK_TEST_EMPTY_LIST", " , ")

	assert.Equal(t, []string{"Purchase Request", "Capital"}, getEnvList("HELPDESK_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("HELPDESK_TEST_EMPTY_LIST", []string{"x"}))
	assert.Equal(t, []string{"x"}, getEnvList("HELPDESK_TEST_LIST_UNSET", []string{"x"}))
}

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HELPDESK_TENANT_ID", "tenant-1")
	t.Setenv("HELPDESK_GRAPH_CLIENT_ID", "client-1")
	t.Setenv("HELPDESK_GRAPH_CLIENT_SECRET", "secret")
	t.Setenv("HELPDESK_ROLES_SITE_ID", "site-1")
	t.Setenv("HELPDESK_ROLES_LIST_ID", "list-1")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Access.ConfigTTL)
	assert.Equal(t, "@every 4m", cfg.Access.RefreshSchedule)
	assert.Equal(t, 8, cfg.Access.GroupQueryWorkers)
	assert.Equal(t, []string{"Purchase Request", "Purchasing"}, cfg.Access.ApprovalCategories)
	assert.Equal(t, RolesSourceGraph, cfg.Store.RolesSource)
	assert.Equal(t, logrus.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.Empty(t, cfg.Observability.AuditLogDir)
	assert.True(t, cfg.Observability.APIDocsEnabled)
	assert.False(t, cfg.Observability.TracingEnabled)
	assert.Equal(t, 0.1, cfg.Observability.TraceSampleRatio)
	assert.Equal(t, 600, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 60, cfg.Server.RateLimitBurst)
	assert.False(t, cfg.Webhooks.Enabled())
	assert.Equal(t, "json", cfg.Webhooks.Format)
	assert.Equal(t, []string{"config.invalidate", "config.reload"}, cfg.Webhooks.Events)

	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/v2.0", cfg.Identity.IssuerURL)
	assert.Equal(t, "client-1", cfg.Identity.ClientID)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("HELPDESK_OIDC_ISSUER", "https://issuer.example.test")
	t.Setenv("HELPDESK_OIDC_CLIENT_ID", "spa-client")
	t.Setenv("HELPDESK_ADMIN_EMAILS", "ops@example.com")
	t.Setenv("HELPDESK_LOG_LEVEL", "debug")
	t.Setenv("HELPDESK_AUDIT_LOG_DIR", "/var/log/helpdesk")
	t.Setenv("HELPDESK_ROLES_SOURCE", "SQL")
	t.Setenv("HELPDESK_DATABASE_DRIVER", "sqlite3")
	t.Setenv("HELPDESK_DATABASE_URL", "file:roles.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://issuer.example.test", cfg.Identity.IssuerURL)
	assert.Equal(t, "spa-client", cfg.Identity.ClientID)
	assert.Equal(t, "ops@example.com", cfg.Access.AdminEmails)
	assert.Equal(t, logrus.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "/var/log/helpdesk", cfg.Observability.AuditLogDir)
	assert.Equal(t, RolesSourceSQL, cfg.Store.RolesSource)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Access: AccessConfig{
			ConfigTTL:         5 * time.Minute,
			SessionTTL:        5 * time.Minute,
			GroupQueryWorkers: 8,
		},
		Graph: GraphConfig{
			TenantID: "t", ClientID: "c", ClientSecret: "s", SiteID: "site", ListID: "list",
		},
		Identity: IdentityConfig{IssuerURL: "https://issuer", ClientID: "c"},
		Store:    StoreConfig{RolesSource: RolesSourceGraph, DatabaseDriver: "postgres"},
	}
}

func TestLoadConfig_S3RolesSource(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("HELPDESK_ROLES_SOURCE", "S3")
	t.Setenv("HELPDESK_ROLES_S3_BUCKET", "helpdesk-config")
	t.Setenv("HELPDESK_ROLES_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("HELPDESK_ROLES_S3_USE_PATH_STYLE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, RolesSourceS3, cfg.Store.RolesSource)
	assert.Equal(t, "helpdesk-config", cfg.Store.S3Bucket)
	assert.Equal(t, "group-roles.yaml", cfg.Store.S3Key)
	assert.Equal(t, "us-east-1", cfg.Store.S3Region)
	assert.Equal(t, "http://minio:9000", cfg.Store.S3Endpoint)
	assert.True(t, cfg.Store.S3UsePathStyle)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port"},
		{"sample ratio above one", func(c *Config) { c.Observability.TraceSampleRatio = 1.5 }, "sample ratio"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimitPerMinute = -1 }, "rate limit"},
		{"zero ttl", func(c *Config) { c.Access.ConfigTTL = 0 }, "config TTL"},
		{"zero session ttl", func(c *Config) { c.Access.SessionTTL = 0 }, "session TTL"},
		{"zero workers", func(c *Config) { c.Access.GroupQueryWorkers = 0 }, "workers"},
		{"missing issuer", func(c *Config) { c.Identity.IssuerURL = "" }, "OIDC"},
		{"graph without secret", func(c *Config) { c.Graph.ClientSecret = "" }, "graph credentials"},
		{"graph without list", func(c *Config) { c.Graph.ListID = "" }, "list ids"},
		{"sql without url", func(c *Config) { c.Store.RolesSource = RolesSourceSQL }, "database URL"},
		{"sql bad driver", func(c *Config) {
			c.Store.RolesSource = RolesSourceSQL
			c.Store.DatabaseURL = "x"
			c.Store.DatabaseDriver = "mysql"
		}, "invalid database driver"},
		{"file without path", func(c *Config) { c.Store.RolesSource = RolesSourceFile }, "roles file"},
		{"s3 without bucket", func(c *Config) { c.Store.RolesSource = RolesSourceS3 }, "bucket and key"},
		{"s3 half credentials", func(c *Config) {
			c.Store.RolesSource = RolesSourceS3
			c.Store.S3Bucket = "roles"
			c.Store.S3Key = "group-roles.yaml"
			c.Store.S3AccessKey = "AKID"
		}, "set together"},
		{"s3 default chain", func(c *Config) {
			c.Store.RolesSource = RolesSourceS3
			c.Store.S3Bucket = "roles"
			c.Store.S3Key = "group-roles.yaml"
		}, ""},
		{"none needs nothing", func(c *Config) {
			c.Store.RolesSource = RolesSourceNone
			c.Graph = GraphConfig{}
		}, ""},
		{"unknown source", func(c *Config) { c.Store.RolesSource = "ldap" }, "invalid roles source"},
		{"webhook without scheme", func(c *Config) { c.Webhooks.URLs = []string{"ops.example.com/hook"} }, "invalid webhook URL"},
		{"webhook bad format", func(c *Config) {
			c.Webhooks.URLs = []string{"https://ops.example.com/hook"}
			c.Webhooks.Format = "discord"
		}, "unknown webhook format"},
		{"webhook ok", func(c *Config) { c.Webhooks.URLs = []string{"https://ops.example.com/hook"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}
