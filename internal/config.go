package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrPanicEnvNotSet         = errors.New("environment variable not set")
	ErrPanicEnvNotInt         = errors.New("environment variable is not an integer")
	ErrPanicInvalidCatalog    = errors.New("invalid catalog backend")
	ErrPanicInvalidAbrSetting = errors.New("invalid ABR constraints")
)

const (
	EnvServerPort       = "LVP_SERVER_PORT"
	EnvMetricsPort      = "LVP_METRICS_PORT"
	EnvDatabaseHost     = "LVP_DB_HOST"
	EnvDatabasePort     = "LVP_DB_PORT"
	EnvDatabaseUser     = "LVP_DB_USER"
	EnvDatabasePassword = "LVP_DB_PASSWORD"
	EnvDatabaseName     = "LVP_DB_NAME"

	EnvCatalogBackend = "LVP_CATALOG_BACKEND"
	EnvCatalogTable   = "LVP_CATALOG_TABLE"

	EnvRawPrefix            = "LVP_RAW_PREFIX"
	EnvMediaConvertRole     = "LVP_MEDIACONVERT_ROLE_ARN"
	EnvMediaConvertEndpoint = "LVP_MEDIACONVERT_ENDPOINT"
	EnvMediaConvertQueue    = "LVP_MEDIACONVERT_QUEUE_ARN"
	EnvOutputBucket         = "LVP_OUTPUT_BUCKET"
	EnvAbrMaxRenditions     = "LVP_ABR_MAX_RENDITIONS"
	EnvAbrMinBitrate        = "LVP_ABR_MIN_BITRATE"
	EnvAbrMaxBitrate        = "LVP_ABR_MAX_BITRATE"
	EnvLessonReadyWebhook   = "LVP_LESSON_READY_WEBHOOK_URL"

	EnvCDNBaseURL            = "LVP_CDN_BASE_URL"
	EnvCloudFrontKeyID       = "LVP_CLOUDFRONT_KEY_ID"
	EnvCloudFrontKeyPath     = "LVP_CLOUDFRONT_PRIVATE_KEY_PATH"
	EnvCookieDomain          = "LVP_COOKIE_DOMAIN"
	EnvCookieTTLSeconds      = "LVP_COOKIE_TTL_SECONDS"
	EnvManifestURLTTLSeconds = "LVP_MANIFEST_URL_TTL_SECONDS"

	EnvJWTSecret  = "LVP_JWT_SECRET"
	EnvJWTIssuer  = "LVP_JWT_ISSUER"
	EnvEventToken = "LVP_EVENT_TOKEN"

	EnvUploadBucket     = "LVP_UPLOAD_BUCKET"
	EnvUploadTTLSeconds = "LVP_UPLOAD_URL_TTL_SECONDS"
)

const (
	DefaultRawPrefix      = "uploads/raw"
	DefaultCookieTTL      = 24 * time.Hour
	DefaultManifestURLTTL = time.Hour
	DefaultUploadURLTTL   = 15 * time.Minute
)

type CatalogBackend string

const (
	CatalogBackendPostgres CatalogBackend = "postgres"
	CatalogBackendDynamoDB CatalogBackend = "dynamodb"
)

// IsValid reports whether b names a supported backend.
func (b CatalogBackend) IsValid() bool {
	switch b {
	case CatalogBackendPostgres, CatalogBackendDynamoDB:
		return true
	default:
		return false
	}
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Port       int
	EventToken string
	RawPrefix  string
	Database   *DatabaseConfig
	Catalog    *CatalogConfig
	Access     *AccessConfig
	Auth       *AuthConfig
	Upload     *UploadConfig
}

// WorkerConfig contains configuration for the worker.
type WorkerConfig struct {
	MetricsPort int
	RawPrefix   string
	WebhookURL  string
	Database    *DatabaseConfig
	Catalog     *CatalogConfig
	Transcode   *TranscodeConfig
}

// IngestLambdaConfig contains configuration for the upload notification Lambda.
type IngestLambdaConfig struct {
	RawPrefix string
	Transcode *TranscodeConfig
}

// ReconcileLambdaConfig contains configuration for the job state change
// Lambda. Lambdas have no Postgres connection, so the catalog is always
// DynamoDB.
type ReconcileLambdaConfig struct {
	Catalog *CatalogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type CatalogConfig struct {
	Backend CatalogBackend
	// Table is the DynamoDB table name. Unused for Postgres.
	Table string
}

type TranscodeConfig struct {
	RoleARN      string
	Endpoint     string
	QueueARN     string
	OutputBucket string
	Abr          AbrConstraints
}

type AccessConfig struct {
	CDNBaseURL     string
	KeyID          string
	PrivateKeyPath string
	CookieDomain   string
	CookieTTL      time.Duration
	ManifestURLTTL time.Duration
}

type AuthConfig struct {
	Secret string
	Issuer string
}

type UploadConfig struct {
	Bucket string
	URLTTL time.Duration
}

// LoadDotEnv reads .env style files into the process environment. Missing
// files are ignored and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func mustGetenv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotSet, key))
	}
	return value
}

func mustGetenvAtoi(key string) int {
	valueStr := mustGetenv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotInt, key))
	}
	return value
}

func getenvDefault(key, def string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return def
}

func getenvDefaultAtoi(key string, def int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotInt, key))
	}
	return value
}

func getenvSeconds(key string, def time.Duration) time.Duration {
	return time.Duration(getenvDefaultAtoi(key, int(def/time.Second))) * time.Second
}

func databaseConfigFromEnv() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     mustGetenv(EnvDatabaseHost),
		Port:     mustGetenvAtoi(EnvDatabasePort),
		User:     mustGetenv(EnvDatabaseUser),
		Password: mustGetenv(EnvDatabasePassword),
		Name:     mustGetenv(EnvDatabaseName),
	}
}

func catalogConfigFromEnv(def CatalogBackend) *CatalogConfig {
	cfg := &CatalogConfig{
		Backend: CatalogBackend(getenvDefault(EnvCatalogBackend, string(def))),
	}
	if !cfg.Backend.IsValid() {
		panic(fmt.Errorf("%w: %q", ErrPanicInvalidCatalog, cfg.Backend))
	}
	if cfg.Backend == CatalogBackendDynamoDB {
		cfg.Table = mustGetenv(EnvCatalogTable)
	}
	return cfg
}

func transcodeConfigFromEnv() *TranscodeConfig {
	abr := AbrConstraints{
		MaxRenditions: getenvDefaultAtoi(EnvAbrMaxRenditions, DefaultAbrConstraints.MaxRenditions),
		MinBitrate:    getenvDefaultAtoi(EnvAbrMinBitrate, DefaultAbrConstraints.MinBitrate),
		MaxBitrate:    getenvDefaultAtoi(EnvAbrMaxBitrate, DefaultAbrConstraints.MaxBitrate),
	}
	if !abr.IsValid() {
		panic(fmt.Errorf("%w: %+v", ErrPanicInvalidAbrSetting, abr))
	}
	return &TranscodeConfig{
		RoleARN:      mustGetenv(EnvMediaConvertRole),
		Endpoint:     getenvDefault(EnvMediaConvertEndpoint, ""),
		QueueARN:     getenvDefault(EnvMediaConvertQueue, ""),
		OutputBucket: mustGetenv(EnvOutputBucket),
		Abr:          abr,
	}
}

// NewServerConfigFromEnv reads the HTTP server configuration. It panics
// when a required variable is missing.
func NewServerConfigFromEnv() *ServerConfig {
	return &ServerConfig{
		Port:       mustGetenvAtoi(EnvServerPort),
		EventToken: getenvDefault(EnvEventToken, ""),
		RawPrefix:  getenvDefault(EnvRawPrefix, DefaultRawPrefix),
		Database:   databaseConfigFromEnv(),
		Catalog:    catalogConfigFromEnv(CatalogBackendPostgres),
		Access: &AccessConfig{
			CDNBaseURL:     mustGetenv(EnvCDNBaseURL),
			KeyID:          mustGetenv(EnvCloudFrontKeyID),
			PrivateKeyPath: mustGetenv(EnvCloudFrontKeyPath),
			CookieDomain:   mustGetenv(EnvCookieDomain),
			CookieTTL:      getenvSeconds(EnvCookieTTLSeconds, DefaultCookieTTL),
			ManifestURLTTL: getenvSeconds(EnvManifestURLTTLSeconds, DefaultManifestURLTTL),
		},
		Auth: &AuthConfig{
			Secret: mustGetenv(EnvJWTSecret),
			Issuer: mustGetenv(EnvJWTIssuer),
		},
		Upload: &UploadConfig{
			Bucket: mustGetenv(EnvUploadBucket),
			URLTTL: getenvSeconds(EnvUploadTTLSeconds, DefaultUploadURLTTL),
		},
	}
}

// NewWorkerConfigFromEnv reads the worker configuration. It panics when a
// required variable is missing.
func NewWorkerConfigFromEnv() *WorkerConfig {
	return &WorkerConfig{
		MetricsPort: mustGetenvAtoi(EnvMetricsPort),
		RawPrefix:   getenvDefault(EnvRawPrefix, DefaultRawPrefix),
		WebhookURL:  getenvDefault(EnvLessonReadyWebhook, ""),
		Database:    databaseConfigFromEnv(),
		Catalog:     catalogConfigFromEnv(CatalogBackendPostgres),
		Transcode:   transcodeConfigFromEnv(),
	}
}

// NewIngestLambdaConfigFromEnv reads the upload notification Lambda
// configuration. It panics when a required variable is missing.
func NewIngestLambdaConfigFromEnv() *IngestLambdaConfig {
	return &IngestLambdaConfig{
		RawPrefix: getenvDefault(EnvRawPrefix, DefaultRawPrefix),
		Transcode: transcodeConfigFromEnv(),
	}
}

// NewReconcileLambdaConfigFromEnv reads the job state change Lambda
// configuration. Only the catalog table is required.
func NewReconcileLambdaConfigFromEnv() *ReconcileLambdaConfig {
	return &ReconcileLambdaConfig{
		Catalog: &CatalogConfig{
			Backend: CatalogBackendDynamoDB,
			Table:   mustGetenv(EnvCatalogTable),
		},
	}
}
