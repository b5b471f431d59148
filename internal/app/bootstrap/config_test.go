package bootstrap

import (
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "drift_test",
		JWTSecret:         "a-strong-enough-test-secret",
		JWTExpiry:         24 * time.Hour,
		WSSendBuffer:      64,
		WSBufferBytes:     1024,
		WSMaxMessageBytes: 4096,
		MessagePageLimit:  100,
	}
}

func TestValidateConfig(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{
			name:    "bad mongo uri",
			mutate:  func(c *AppConfig) { c.MongoURI = "http://not-mongo" },
			wantErr: "MongoDB URI",
		},
		{
			name:    "empty jwt secret",
			mutate:  func(c *AppConfig) { c.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "dev default secret in prod",
			env:     "prod",
			mutate:  func(c *AppConfig) { c.JWTSecret = "dev-only-change-me-please-0123456789ABCDEF" },
			wantErr: "jwt_secret",
		},
		{
			name:    "non-positive expiry",
			mutate:  func(c *AppConfig) { c.JWTExpiry = 0 },
			wantErr: "jwt_expiry",
		},
		{
			name:    "non-positive send buffer",
			mutate:  func(c *AppConfig) { c.WSSendBuffer = 0 },
			wantErr: "ws_send_buffer",
		},
		{
			name:    "non-positive page limit",
			mutate:  func(c *AppConfig) { c.MessagePageLimit = 0 },
			wantErr: "message_page_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appCfg := validAppConfig()
			tt.mutate(&appCfg)
			coreCfg := &config.CoreConfig{Env: tt.env}

			err := ValidateConfig(coreCfg, appCfg, logger)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateConfig failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
