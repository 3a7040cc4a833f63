package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`

	MatchHighThreshold   float64 `mapstructure:"MATCH_HIGH_THRESHOLD"`
	MatchMediumThreshold float64 `mapstructure:"MATCH_MEDIUM_THRESHOLD"`
	MatchMinScore        float64 `mapstructure:"MATCH_MIN_SCORE"`
	MatchMaxCandidates   int     `mapstructure:"MATCH_MAX_CANDIDATES"`
	MatchScanLimit       int     `mapstructure:"MATCH_SCAN_LIMIT"`
	MatchPrefilterRatio  float64 `mapstructure:"MATCH_PREFILTER_RATIO"`

	StoreBreakerFailures uint32        `mapstructure:"STORE_BREAKER_FAILURES"`
	StoreBreakerTimeout  time.Duration `mapstructure:"STORE_BREAKER_TIMEOUT"`

	PendingTTL time.Duration `mapstructure:"PENDING_TTL"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"MATCH_HIGH_THRESHOLD", "MATCH_MEDIUM_THRESHOLD", "MATCH_MIN_SCORE",
	"MATCH_MAX_CANDIDATES", "MATCH_SCAN_LIMIT", "MATCH_PREFILTER_RATIO",
	"STORE_BREAKER_FAILURES", "STORE_BREAKER_TIMEOUT", "PENDING_TTL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_AUDIENCE", "surgichart")

	// Matching defaults mirror resolution.DefaultMatchConfig.
	v.SetDefault("MATCH_HIGH_THRESHOLD", 0.90)
	v.SetDefault("MATCH_MEDIUM_THRESHOLD", 0.60)
	v.SetDefault("MATCH_MIN_SCORE", 0.50)
	v.SetDefault("MATCH_MAX_CANDIDATES", 20)
	v.SetDefault("MATCH_SCAN_LIMIT", 200)
	v.SetDefault("MATCH_PREFILTER_RATIO", 0.50)
	v.SetDefault("STORE_BREAKER_FAILURES", 5)
	v.SetDefault("STORE_BREAKER_TIMEOUT", "30s")
	v.SetDefault("PENDING_TTL", "30m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper splits the list on commas but keeps the spaces around entries.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("running in development mode: requests without a token are accepted with every role")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside
// development a signing key and issuer are required, and the match
// thresholds must be ordered min <= medium < high.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER is required when ENV=%q", c.Env)
		}
	}
	if c.IsProduction() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes in production, got %d", len(c.AuthSigningKey))
	}

	if c.MatchHighThreshold <= 0 || c.MatchHighThreshold > 1 {
		return fmt.Errorf("MATCH_HIGH_THRESHOLD must be in (0,1], got %.3f", c.MatchHighThreshold)
	}
	if c.MatchMediumThreshold <= 0 || c.MatchMediumThreshold >= c.MatchHighThreshold {
		return fmt.Errorf("MATCH_MEDIUM_THRESHOLD must be below MATCH_HIGH_THRESHOLD (%.3f), got %.3f", c.MatchHighThreshold, c.MatchMediumThreshold)
	}
	if c.MatchMinScore < 0 || c.MatchMinScore > c.MatchMediumThreshold {
		return fmt.Errorf("MATCH_MIN_SCORE must not exceed MATCH_MEDIUM_THRESHOLD (%.3f), got %.3f", c.MatchMediumThreshold, c.MatchMinScore)
	}
	if c.MatchMaxCandidates <= 0 {
		return fmt.Errorf("MATCH_MAX_CANDIDATES must be positive, got %d", c.MatchMaxCandidates)
	}
	if c.MatchScanLimit < c.MatchMaxCandidates {
		return fmt.Errorf("MATCH_SCAN_LIMIT (%d) must be at least MATCH_MAX_CANDIDATES (%d)", c.MatchScanLimit, c.MatchMaxCandidates)
	}
	if c.StoreBreakerFailures == 0 {
		return fmt.Errorf("STORE_BREAKER_FAILURES must be positive")
	}
	if c.StoreBreakerTimeout <= 0 {
		return fmt.Errorf("STORE_BREAKER_TIMEOUT must be positive, got %s", c.StoreBreakerTimeout)
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_TTL must be positive, got %s", c.PendingTTL)
	}
	return nil
}
