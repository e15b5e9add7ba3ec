package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string
	JWTIssuer   string

	CORSAllowOrigins        string
	DatabaseMaxOpenConns    int
	DatabaseConnectAttempts int
	EnrollmentRateLimit     int

	EventsChannel     string
	OfferingLockTTL   time.Duration
	AnalyticsCacheTTL time.Duration
	AutoMigrate       bool

	Prerequisite PrerequisiteConfig
	Transfer     TransferConfig
	Analytics    AnalyticsConfig
}

// PrerequisiteConfig configures which grades satisfy a prerequisite.
type PrerequisiteConfig struct {
	FailingGrades []string
	MinimumGrade  string
}

// TransferConfig is the institutional transfer credit policy.
type TransferConfig struct {
	MaxCourseAgeYears  int
	MinimumGrade       string
	MaxTransferCredits float64
}

// AnalyticsConfig holds the thresholds used by course analytics.
type AnalyticsConfig struct {
	SuccessThreshold      string
	AtRiskThreshold       string
	LowUtilizationPercent float64
}

// IsDevelopment reports whether the service runs outside production.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ENROLL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Enrollment API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("http.cors_origins", "*")
	v.SetDefault("enrollment.rate_limit_per_minute", 20)
	v.SetDefault("events.channel", "enrollment")
	v.SetDefault("offering.lock_ttl", "5s")
	v.SetDefault("analytics.cache_ttl", "10m")
	v.SetDefault("prerequisite.failing_grades", "F,W,I")
	v.SetDefault("prerequisite.minimum_grade", "D-")
	v.SetDefault("transfer.max_course_age_years", 7)
	v.SetDefault("transfer.minimum_grade", "C")
	v.SetDefault("transfer.max_transfer_credits", 60)
	v.SetDefault("analytics.success_threshold", "C")
	v.SetDefault("analytics.at_risk_threshold", "C-")
	v.SetDefault("analytics.low_utilization_percent", 50)

	lockTTL, err := parseDuration(v, "offering.lock_ttl", "5s")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "analytics.cache_ttl", "10m")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		DatabaseURL:             v.GetString("database.url"),
		RedisURL:                v.GetString("redis.url"),
		NATSURL:                 v.GetString("nats.url"),
		JWTSecret:               v.GetString("jwt.secret"),
		JWTIssuer:               strings.TrimSpace(v.GetString("jwt.issuer")),
		CORSAllowOrigins:        v.GetString("http.cors_origins"),
		DatabaseMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DatabaseConnectAttempts: v.GetInt("database.connect_attempts"),
		EnrollmentRateLimit:     v.GetInt("enrollment.rate_limit_per_minute"),
		EventsChannel:           v.GetString("events.channel"),
		OfferingLockTTL:         lockTTL,
		AnalyticsCacheTTL:       cacheTTL,
		AutoMigrate:             v.GetBool("database.auto_migrate"),
		Prerequisite: PrerequisiteConfig{
			FailingGrades: splitList(v.GetString("prerequisite.failing_grades")),
			MinimumGrade:  strings.ToUpper(strings.TrimSpace(v.GetString("prerequisite.minimum_grade"))),
		},
		Transfer: TransferConfig{
			MaxCourseAgeYears:  v.GetInt("transfer.max_course_age_years"),
			MinimumGrade:       strings.ToUpper(strings.TrimSpace(v.GetString("transfer.minimum_grade"))),
			MaxTransferCredits: v.GetFloat64("transfer.max_transfer_credits"),
		},
		Analytics: AnalyticsConfig{
			SuccessThreshold:      strings.ToUpper(strings.TrimSpace(v.GetString("analytics.success_threshold"))),
			AtRiskThreshold:       strings.ToUpper(strings.TrimSpace(v.GetString("analytics.at_risk_threshold"))),
			LowUtilizationPercent: v.GetFloat64("analytics.low_utilization_percent"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.EnrollmentRateLimit <= 0 {
		return Config{}, fmt.Errorf("enrollment.rate_limit_per_minute must be positive")
	}
	if cfg.Transfer.MaxCourseAgeYears < 0 {
		return Config{}, fmt.Errorf("transfer.max_course_age_years must not be negative")
	}
	if cfg.Transfer.MaxTransferCredits < 0 {
		return Config{}, fmt.Errorf("transfer.max_transfer_credits must not be negative")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToUpper(strings.TrimSpace(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
