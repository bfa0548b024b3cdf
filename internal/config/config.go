package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName           = "User System"
	defaultListenAddr        = ":8000"
	defaultJWTSecret         = "change-me-jwt-secret"
	defaultJWTAlgorithm      = "HS256"
	defaultAccessTTLMin      = "3"
	defaultRefreshTTLMin     = "15"
	defaultFrontendHost      = "http://127.0.0.1:5500"
	defaultVerifyURL         = "/auth/account-verify"
	defaultResetURL          = "/forgot-password-reset"
	defaultVerifyContext     = "verify-account"
	defaultResetContext      = "password-reset"
	defaultMailBuffer        = "64"
	defaultDBMaxOpenConns    = "10"
	defaultDBMaxIdleConns    = "5"
	defaultDBConnMaxLifetime = "30m"
)

// Config is loaded once at startup and passed by reference to every
// component; it is never mutated afterwards.
type Config struct {
	AppName string
	AppEnv  string

	ListenAddr  string
	DatabaseURL string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret       string
	JWTAlgorithm    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	FrontendHost           string
	VerifyAccountURL       string
	ForgotPasswordResetURL string

	VerifyAccountEmailContext  string
	ForgotPasswordEmailContext string

	AllowOrigins []string
	MailBuffer   int
}

// Load reads .env (when present) and the environment, applies defaults
// and fails fast on values the service cannot run with.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.AppName = getEnv("APP_NAME", defaultAppName)
	cfg.ListenAddr = getEnv("LISTEN_ADDR", defaultListenAddr)
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTAlgorithm = strings.TrimSpace(getEnv("JWT_ALGORITHM", defaultJWTAlgorithm))

	var err error
	cfg.AccessTokenTTL, err = parseMinutesEnv("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", defaultAccessTTLMin)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTokenTTL, err = parseMinutesEnv("JWT_REFRESH_TOKEN_EXPIRE_MINUTES", defaultRefreshTTLMin)
	if err != nil {
		return nil, err
	}

	cfg.FrontendHost = strings.TrimRight(getEnv("FRONTEND_HOST", defaultFrontendHost), "/")
	cfg.VerifyAccountURL = getEnv("FRONTEND_ACTIVE_ACCOUNT_URL", defaultVerifyURL)
	cfg.ForgotPasswordResetURL = getEnv("FRONTEND_FORGOT_PASSWORD_RESET_URL", defaultResetURL)

	cfg.VerifyAccountEmailContext = getEnv("USER_VERIFY_ACCOUNT_EMAIL_CONTEXT", defaultVerifyContext)
	cfg.ForgotPasswordEmailContext = getEnv("USER_FORGOT_PASSWORD_EMAIL_CONTEXT", defaultResetContext)

	if origins := strings.TrimSpace(os.Getenv("ALLOW_ORIGINS")); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	cfg.MailBuffer, err = parseIntEnv("MAIL_BUFFER", defaultMailBuffer)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxOpenConns, err = parseIntEnv("DB_MAX_OPEN_CONNS", defaultDBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxIdleConns, err = parseIntEnv("DB_MAX_IDLE_CONNS", defaultDBMaxIdleConns)
	if err != nil {
		return nil, err
	}
	cfg.DBConnMaxLifetime, err = parseDurationEnv("DB_CONN_MAX_LIFETIME", defaultDBConnMaxLifetime)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRE_MINUTES must be > 0")
	}
	if cfg.RefreshTokenTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRE_MINUTES must be > 0")
	}
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM must be one of: HS256, HS384, HS512")
	}
	if cfg.MailBuffer <= 0 {
		return fmt.Errorf("MAIL_BUFFER must be > 0")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return fmt.Errorf("invalid database pool bounds")
	}
	if isProdLike(cfg.AppEnv) {
		if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("in prod/release DATABASE_URL must be set")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	return env == "prod" || env == "production" || env == "release"
}

func parseMinutesEnv(name, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(getEnv(name, fallback))
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	raw := strings.TrimSpace(getEnv(name, fallback))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	return v, nil
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	return d, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
