// Package config provides runtime configuration management.
// This file holds fixed constants for the Vertex AI reasoning-engine API.
package config

// OAuth token exchange
const (
	// TokenURL is the Google OAuth2 token endpoint used for the
	// signed-JWT bearer exchange
	TokenURL = "https://oauth2.googleapis.com/token"

	// CloudPlatformScope is the OAuth scope requested for reasoning-engine calls
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// JWTBearerGrantType is the grant type for the signed-JWT exchange
	JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// TokenLifetimeSeconds is the requested assertion lifetime (and the
	// approximate lifetime of the bearer token Google returns)
	TokenLifetimeSeconds = 3600
)

// Reasoning-engine endpoint suffixes
const (
	// StreamQuerySuffix is the streaming query endpoint suffix
	StreamQuerySuffix = ":streamQuery"

	// QuerySuffix is the non-streaming query endpoint suffix
	QuerySuffix = ":query"
)

// Marker texts for session-lifecycle operations. The reasoning-engine API
// exposes no dedicated session CRUD endpoints, so lifecycle operations are
// expressed as fixed natural-language queries against the non-streaming
// endpoint. Known limitation, not a clean contract.
const (
	MarkerCreateSession = "Initialize new conversation session"
	MarkerListSessions  = "List available sessions"
	MarkerGetSession    = "Get session information for %s"
	MarkerDeleteSession = "Delete session %s"
)

// Server defaults
const (
	// DefaultPort is the default HTTP server port
	DefaultPort = 8080

	// RequestBodyLimit is the maximum inbound request body size (1MB)
	RequestBodyLimit = 1 << 20

	// HistoryCaptureLimit bounds how much relayed stream output is captured
	// for conversation-history persistence (512KB). The relay itself never
	// materializes the response; this cap applies only to the side capture.
	HistoryCaptureLimit = 512 << 10
)

// Environment variable names
const (
	// EnvServiceAccountJSON holds the Google Cloud service-account
	// credential bundle as a JSON document
	EnvServiceAccountJSON = "GOOGLE_CLOUD_SERVICE_ACCOUNT_JSON"
)
