package config

import (
	"strings"
	"testing"
	"time"
)

const testHash = "$2a$10$abcdefghijklmnopqrstuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuu"

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dashboard"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Admin: AdminConfig{Username: "owner", PasswordHash: testHash},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndWebhookSecret(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	for _, want := range []string{"DB_SSLMODE", "OPENPHONE_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Dashboard.Timezone != "America/New_York" {
		t.Fatalf("expected eastern default, got %q", c.Dashboard.Timezone)
	}
	if c.Dashboard.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %s", c.Dashboard.ReadTimeout)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m access ttl, got %s", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_RejectsPlaintextAdminPassword(t *testing.T) {
	c := validLocal()
	c.Admin.PasswordHash = "hunter2"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "ADMIN_PASSWORD_HASH") {
		t.Fatalf("expected ADMIN_PASSWORD_HASH error, got %v", err)
	}
}

func TestValidate_JobberPartialConfig(t *testing.T) {
	c := validLocal()
	c.Jobber.ClientID = "client"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for client id without secret")
	}

	c = validLocal()
	c.Jobber = JobberConfig{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !c.Jobber.Enabled() {
		t.Fatalf("expected jobber enabled")
	}
}

func TestLoad_ReadsDashboardSettings(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "n")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ADMIN_USERNAME", "owner")
	t.Setenv("ADMIN_PASSWORD_HASH", testHash)
	t.Setenv("DASHBOARD_TIMEZONE", "America/Chicago")
	t.Setenv("DASHBOARD_READ_TIMEOUT", "2s")
	t.Setenv("DASHBOARD_INCLUDE_NON_VOICE", "true")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Dashboard.Timezone != "America/Chicago" || c.Dashboard.ReadTimeout != 2*time.Second || !c.Dashboard.IncludeNonVoice {
		t.Fatalf("unexpected dashboard config: %+v", c.Dashboard)
	}
	if c.HTTPAddr() != ":9000" || c.RedisAddr() != "cache:6379" {
		t.Fatalf("unexpected addrs %q %q", c.HTTPAddr(), c.RedisAddr())
	}
}

func TestLoad_RejectsBadBool(t *testing.T) {
	t.Setenv("APP_PORT", "1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("REDIS_PORT", "1")
	t.Setenv("DASHBOARD_INCLUDE_NON_VOICE", "maybe")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DASHBOARD_INCLUDE_NON_VOICE") {
		t.Fatalf("expected bool parse error, got %v", err)
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("APP_PORT", "1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("REDIS_PORT", "1")

	for _, key := range []string{"DASHBOARD_READ_TIMEOUT", "JWT_ACCESS_TTL", "JWT_REFRESH_TTL"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "5")
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s parse error, got %v", key, err)
			}
		})
	}
}

func TestValidate_ViewerAccount(t *testing.T) {
	cases := []struct {
		name    string
		user    string
		hash    string
		wantErr string
	}{
		{"absent", "", "", ""},
		{"valid", "frontdesk", testHash, ""},
		{"hash missing", "frontdesk", "", "must be set together"},
		{"plaintext", "frontdesk", "hunter2", "VIEWER_PASSWORD_HASH must be a bcrypt hash"},
		{"same as admin", "owner", testHash, "must differ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validLocal()
			c.Admin.ViewerUsername = tc.user
			c.Admin.ViewerPasswordHash = tc.hash
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}
}
