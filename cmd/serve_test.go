package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendarassist/internal/calendar"
	"github.com/teemow/calendarassist/internal/server"
)

func newTestServeCmd(t *testing.T) (*cobra.Command, *serveConfig) {
	t.Helper()
	var cfg serveConfig
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd, &cfg)
	return cmd, &cfg
}

func TestApplyEnv(t *testing.T) {
	t.Run("environment fills unset flags", func(t *testing.T) {
		t.Setenv("COMPOSIO_API_KEY", "ck_env")
		t.Setenv("UPSTREAM_TIMEOUT", "45s")
		t.Setenv("RATE_LIMIT_RPS", "2.5")
		t.Setenv("APP_ENV", "production")

		cmd, cfg := newTestServeCmd(t)
		require.NoError(t, cmd.ParseFlags(nil))
		require.NoError(t, applyEnv(cmd, appEnvBindings))
		require.NoError(t, applyEnv(cmd, serveEnvBindings))

		assert.Equal(t, "ck_env", cfg.ComposioAPIKey)
		assert.Equal(t, 45*time.Second, cfg.UpstreamTimeout)
		assert.Equal(t, 2.5, cfg.RateLimitRPS)
		assert.True(t, cfg.production())
	})

	t.Run("explicit flags win", func(t *testing.T) {
		t.Setenv("HTTP_ADDR", ":9999")

		cmd, cfg := newTestServeCmd(t)
		require.NoError(t, cmd.ParseFlags([]string{"--http-addr", ":4000"}))
		require.NoError(t, applyEnv(cmd, serveEnvBindings))

		assert.Equal(t, ":4000", cfg.HTTPAddr)
	})

	t.Run("defaults without environment", func(t *testing.T) {
		cmd, cfg := newTestServeCmd(t)
		require.NoError(t, cmd.ParseFlags(nil))
		require.NoError(t, applyEnv(cmd, serveEnvBindings))

		assert.Equal(t, server.DefaultAddr, cfg.HTTPAddr)
		assert.Equal(t, server.DefaultAskTimeout, cfg.AskTimeout)
		assert.False(t, cfg.production())
	})

	t.Run("invalid value names the variable", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_BURST", "lots")

		cmd, _ := newTestServeCmd(t)
		require.NoError(t, cmd.ParseFlags(nil))
		err := applyEnv(cmd, serveEnvBindings)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "RATE_LIMIT_BURST")
	})
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     appConfig
		wantErr []string
	}{
		{
			name: "valid",
			cfg:  appConfig{ComposioAPIKey: "ck", AuthConfigID: "ac", DisplayTimezone: "Europe/Berlin"},
		},
		{
			name:    "missing key and auth config",
			cfg:     appConfig{},
			wantErr: []string{"API key is required", "auth config id is required"},
		},
		{
			name:    "unknown timezone",
			cfg:     appConfig{ComposioAPIKey: "ck", AuthConfigID: "ac", DisplayTimezone: "Mars/Olympus"},
			wantErr: []string{"invalid display timezone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestServeConfig_ServerConfig(t *testing.T) {
	cfg := serveConfig{
		appConfig:      appConfig{AuthConfigID: "ac_1", UpstreamTimeout: 10 * time.Second},
		HTTPAddr:       ":3001",
		AppURL:         "https://cal.example.com",
		AppEnv:         "Production",
		AskTimeout:     time.Minute,
		RateLimitRPS:   3,
		RateLimitBurst: 6,
		TrustProxy:     true,
	}

	got := cfg.serverConfig()

	assert.Equal(t, ":3001", got.Addr)
	assert.True(t, got.Secure)
	assert.Equal(t, "ac_1", got.AuthConfigID)
	assert.Equal(t, "https://cal.example.com/api/auth/callback", got.CallbackURL())
	assert.Equal(t, 10*time.Second, got.UpstreamTimeout)
	assert.Equal(t, time.Minute, got.AskTimeout)
	assert.Equal(t, server.DefaultSuccessPath, got.SuccessPath)
	assert.True(t, got.TrustProxy)
	assert.NoError(t, got.Validate())
}

func TestWriteBookings(t *testing.T) {
	bookings := []calendar.Booking{
		{ID: "e1", Title: "Standup", Time: "3/11/2025, 9:00:00 AM", Duration: "30 mins", Attendees: []string{"a@example.com", "b@example.com"}},
		{ID: "e2", Title: "Focus", Time: "3/11/2025, 1:00:00 PM", Duration: "2 hours", Attendees: []string{}},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeBookings(&buf, outputTable, bookings))

		out := buf.String()
		assert.Contains(t, out, "TIME")
		assert.Contains(t, out, "Standup")
		assert.Contains(t, out, "a@example.com, b@example.com")
		assert.Contains(t, out, "Focus")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeBookings(&buf, outputJSON, bookings[:1]))

		assert.JSONEq(t, `{"bookings":[{"id":"e1","title":"Standup","time":"3/11/2025, 9:00:00 AM","duration":"30 mins","attendees":["a@example.com","b@example.com"],"description":""}]}`, buf.String())
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeBookings(&buf, outputJSON, nil))
		assert.JSONEq(t, `{"bookings":[]}`, buf.String())

		buf.Reset()
		require.NoError(t, writeBookings(&buf, outputTable, nil))
		assert.Equal(t, "No bookings found.\n", buf.String())
	})
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "calendarassist version 1.2.3\n", buf.String())
}
