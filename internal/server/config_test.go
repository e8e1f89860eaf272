package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigFromEnv_Defaults(t *testing.T) {
	for _, name := range []string{"SERVER_PORT", "ALLOWED_ORIGINS", "MAX_MESSAGE_SIZE", "SEND_BUFFER_SIZE", "LOG_LEVEL", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	cfg, err := NewConfigFromEnv()

	require.NoError(t, err)
	require.Equal(t, NewConfig(), cfg)
}

func TestNewConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, http://localhost:3000")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("SEND_BUFFER_SIZE", "32")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := NewConfigFromEnv()

	require.NoError(t, err)
	require.Equal(t, &Config{
		Port:            ":9090",
		AllowedOrigins:  []string{"https://chat.example.com", "http://localhost:3000"},
		MaxMessageSize:  1024,
		SendBufferSize:  32,
		LogLevel:        "DEBUG",
		ShutdownTimeout: 5 * time.Second,
	}, cfg)
}

func TestNewConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric size", key: "MAX_MESSAGE_SIZE", value: "big"},
		{name: "negative buffer", key: "SEND_BUFFER_SIZE", value: "-1"},
		{name: "unknown level", key: "LOG_LEVEL", value: "LOUD"},
		{name: "bad duration", key: "SHUTDOWN_TIMEOUT", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := NewConfigFromEnv()
			require.Error(t, err)
		})
	}
}

func TestSetConfig_Sanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		AllowedOrigins: []string{" HTTPS://Chat.Example.com ", "not-an-origin", "", "https://chat.example.com", "*"},
		MaxMessageSize: -1,
	})

	cfg := CurrentConfig()
	require.Equal(t, defaultPort, cfg.Port)
	require.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	require.Equal(t, defaultSendBufferSize, cfg.SendBufferSize)
	require.Equal(t, defaultLogLevel, cfg.LogLevel)
	require.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
	require.Equal(t, []string{"https://chat.example.com", "*"}, cfg.AllowedOrigins)
}

func TestCurrentConfig_ReturnsCopy(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(nil)

	cfg := CurrentConfig()
	cfg.AllowedOrigins[0] = "http://mutated.example.com"

	require.Equal(t, []string{defaultOrigin}, CurrentConfig().AllowedOrigins)
}

func TestOriginPolicy_Allows(t *testing.T) {
	policy := newOriginPolicy([]string{" HTTPS://Chat.Example.com ", "https://chat.example.com", "garbage"})
	require.Len(t, policy.allowed, 1)

	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "https://chat.example.com", want: true},
		{origin: "https://CHAT.example.com", want: true},
		{origin: "http://chat.example.com", want: false},
		{origin: "https://chat.example.com:8443", want: false},
		{origin: "", want: false},
		{origin: "chat.example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, policy.allows(r))
		})
	}
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*", "https://chat.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anything.example.com")
	require.True(t, policy.allows(r))

	// A wildcard still needs an Origin header
	require.False(t, policy.allows(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}

func TestOriginPolicy_Empty(t *testing.T) {
	policy := newOriginPolicy(nil)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", defaultOrigin)
	require.False(t, policy.allows(r))
}
