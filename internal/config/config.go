package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally seeded from a .env file by the process).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Admin     AdminConfig
	Dashboard DashboardConfig
	OpenPhone OpenPhoneConfig
	Jobber    JobberConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AdminConfig holds the dashboard accounts: the operator (owner) and an
// optional read-only viewer.
type AdminConfig struct {
	Username string
	// PasswordHash is a bcrypt hash; the plaintext never appears in env.
	PasswordHash string

	ViewerUsername     string
	ViewerPasswordHash string
}

type DashboardConfig struct {
	Timezone        string
	ReadTimeout     time.Duration
	IncludeNonVoice bool
}

type OpenPhoneConfig struct {
	// WebhookSecret is the base64 signing key shown in the OpenPhone console.
	WebhookSecret string
}

type JobberConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// AuthURL and TokenURL override Jobber's production endpoint.
	AuthURL  string
	TokenURL string
}

// Enabled reports whether the Jobber OAuth routes should be mounted.
func (j JobberConfig) Enabled() bool {
	return j.ClientID != "" && j.ClientSecret != ""
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL, parseErrs = appendDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = appendDuration(parseErrs, "JWT_REFRESH_TTL")

	c.Admin.Username = strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	c.Admin.PasswordHash = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
	c.Admin.ViewerUsername = strings.TrimSpace(os.Getenv("VIEWER_USERNAME"))
	c.Admin.ViewerPasswordHash = strings.TrimSpace(os.Getenv("VIEWER_PASSWORD_HASH"))

	c.Dashboard.Timezone = strings.TrimSpace(os.Getenv("DASHBOARD_TIMEZONE"))
	c.Dashboard.ReadTimeout, parseErrs = appendDuration(parseErrs, "DASHBOARD_READ_TIMEOUT")
	{
		b, err := optionalBool("DASHBOARD_INCLUDE_NON_VOICE")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Dashboard.IncludeNonVoice = b
	}

	c.OpenPhone.WebhookSecret = strings.TrimSpace(os.Getenv("OPENPHONE_WEBHOOK_SECRET"))

	c.Jobber.ClientID = strings.TrimSpace(os.Getenv("JOBBER_CLIENT_ID"))
	c.Jobber.ClientSecret = os.Getenv("JOBBER_CLIENT_SECRET")
	c.Jobber.RedirectURL = strings.TrimSpace(os.Getenv("JOBBER_REDIRECT_URL"))
	c.Jobber.AuthURL = strings.TrimSpace(os.Getenv("JOBBER_AUTH_URL"))
	c.Jobber.TokenURL = strings.TrimSpace(os.Getenv("JOBBER_TOKEN_URL"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Admin.Username == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME is required"))
	}
	if !strings.HasPrefix(c.Admin.PasswordHash, "$2") {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH must be a bcrypt hash"))
	}
	if (c.Admin.ViewerUsername == "") != (c.Admin.ViewerPasswordHash == "") {
		errs = append(errs, errors.New("VIEWER_USERNAME and VIEWER_PASSWORD_HASH must be set together"))
	} else if c.Admin.ViewerUsername != "" {
		if !strings.HasPrefix(c.Admin.ViewerPasswordHash, "$2") {
			errs = append(errs, errors.New("VIEWER_PASSWORD_HASH must be a bcrypt hash"))
		}
		if c.Admin.ViewerUsername == c.Admin.Username {
			errs = append(errs, errors.New("VIEWER_USERNAME must differ from ADMIN_USERNAME"))
		}
	}

	if c.Dashboard.Timezone == "" {
		c.Dashboard.Timezone = "America/New_York"
	}
	if c.Dashboard.ReadTimeout <= 0 {
		c.Dashboard.ReadTimeout = 5 * time.Second
	}

	if c.IsProduction() && c.OpenPhone.WebhookSecret == "" {
		errs = append(errs, errors.New("OPENPHONE_WEBHOOK_SECRET is required in production"))
	}

	if (c.Jobber.ClientID == "") != (c.Jobber.ClientSecret == "") {
		errs = append(errs, errors.New("JOBBER_CLIENT_ID and JOBBER_CLIENT_SECRET must be set together"))
	}
	if c.Jobber.Enabled() && c.Jobber.RedirectURL == "" {
		errs = append(errs, errors.New("JOBBER_REDIRECT_URL is required when Jobber is configured"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 5s or 15m, got %q", key, v)
	}
	return d, nil
}

func appendDuration(errs []error, key string) (time.Duration, []error) {
	d, err := optionalDuration(key)
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func optionalBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
