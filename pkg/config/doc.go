// Package config provides application configuration management from environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	HELPDESK_HOST="0.0.0.0"
//	HELPDESK_PORT="8080"
//	HELPDESK_READ_TIMEOUT="15s"
//	HELPDESK_SHUTDOWN_TIMEOUT="30s"
//	HELPDESK_RATE_LIMIT_PER_MINUTE="600"  # 0 disables rate limiting
//	HELPDESK_RATE_LIMIT_BURST="60"
//
// Access engine settings:
//
//	HELPDESK_ADMIN_EMAILS="ops@example.com,gm@example.com"
//	HELPDESK_CONFIG_TTL="5m"
//	HELPDESK_SESSION_TTL="5m"
//	HELPDESK_REFRESH_SCHEDULE="@every 4m"  # "off" disables background refresh
//	HELPDESK_GROUP_QUERY_WORKERS="8"
//	HELPDESK_APPROVAL_CATEGORIES="Purchase Request,Purchasing"
//
// Directory and identity settings:
//
//	HELPDESK_TENANT_ID="..."
//	HELPDESK_GRAPH_CLIENT_ID="..."
//	HELPDESK_GRAPH_CLIENT_SECRET="..."
//	HELPDESK_OIDC_ISSUER="https://login.microsoftonline.com/<tenant>/v2.0"  # derived from the tenant
//	HELPDESK_OIDC_CLIENT_ID="..."  # defaults to the Graph client id
//
// Group role source:
//
//	HELPDESK_ROLES_SOURCE="graph"  # graph, sql, file, s3, none
//	HELPDESK_ROLES_SITE_ID="..."
//	HELPDESK_ROLES_LIST_ID="..."
//	HELPDESK_DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	HELPDESK_DATABASE_URL="postgres://localhost/helpdesk"
//	HELPDESK_ROLES_FILE="/etc/helpdesk/group_roles.yaml"
//	HELPDESK_ROLES_S3_BUCKET="helpdesk-config"
//	HELPDESK_ROLES_S3_KEY="group-roles.yaml"
//	HELPDESK_ROLES_S3_REGION="us-east-1"
//	HELPDESK_ROLES_S3_ENDPOINT="http://minio:9000"  # S3-compatible services
//	HELPDESK_ROLES_S3_USE_PATH_STYLE="false"
//	HELPDESK_ROLES_S3_ACCESS_KEY="..."  # empty uses the default credential chain
//	HELPDESK_ROLES_S3_SECRET_KEY="..."
//	HELPDESK_REDIS_URL="redis://localhost:6379/0"  # optional shared cache slots and rate limits
//
// Observability settings:
//
//	HELPDESK_LOG_LEVEL="info"  # debug, info, warn, error
//	HELPDESK_METRICS_ENABLED="true"
//	HELPDESK_AUDIT_LOG_DIR="/var/log/helpdesk"  # JSON-lines audit file, rotated by size
//	HELPDESK_API_DOCS_ENABLED="true"
//	HELPDESK_TRACING_ENABLED="false"
//	HELPDESK_OTLP_ENDPOINT="localhost:4317"
//	HELPDESK_OTLP_INSECURE="true"
//	HELPDESK_TRACE_SAMPLE_RATIO="0.1"
//
// Webhook notifications of audit events:
//
//	HELPDESK_WEBHOOK_URLS="https://ops.example.com/hooks/helpdesk"
//	HELPDESK_WEBHOOK_SECRET="..."  # HMAC-SHA256 signing key
//	HELPDESK_WEBHOOK_FORMAT="json"  # json, slack, teams
//	HELPDESK_WEBHOOK_EVENTS="config.invalidate,config.reload"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
