package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pscheid92/playtime/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TRACKED_USERS", "5120230728:jsadujgha,4491738101:NOTKRZEN")
	t.Setenv("ENTITIES_FILE", "")
	for _, key := range []string{"STORE_BACKEND", "SINK_BACKEND", "PRESENCE_POLICY", "SWITCH_POLICY", "TIMEZONE", "TICK_CONCURRENCY", "REDIS_URL", "DATABASE_URL", "SHEETS_SPREADSHEET_ID", "GOOGLE_CREDENTIALS", "NAME_CACHE_TTL"} {
		unsetEnv(t, key)
	}
}

// unsetEnv removes key for the duration of the test; t.Setenv restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "10000", cfg.Port)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, "online", cfg.PresencePolicy)
	assert.Equal(t, "id", cfg.SwitchPolicy)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, BackendMemory, cfg.SinkBackend)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, time.Duration(0), cfg.TickInterval)
	assert.Equal(t, 2*time.Minute, cfg.TickLockTTL)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Hour, cfg.NameCacheTTL)
	assert.Equal(t, "https://presence.roblox.com/v1/presence/users", cfg.PresenceURL)
	assert.Equal(t, []domain.TrackedEntity{
		{ID: 5120230728, DisplayName: "jsadujgha"},
		{ID: 4491738101, DisplayName: "NOTKRZEN"},
	}, cfg.Entities())
}

func TestLoad_EntitiesFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "users.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[users]]
id = 3263707365
name = "Cyrus_STORM"

[[users]]
id = 1992158202
name = "hulk_buster9402"
`), 0o600))
	t.Setenv("ENTITIES_FILE", path)
	t.Setenv("TRACKED_USERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []domain.TrackedEntity{
		{ID: 3263707365, DisplayName: "Cyrus_STORM"},
		{ID: 1992158202, DisplayName: "hulk_buster9402"},
	}, cfg.Entities())
}

func TestLoad_EntitiesFileAndInlineMerge(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "users.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[users]]\nid = 1\nname = \"one\"\n"), 0o600))
	t.Setenv("ENTITIES_FILE", path)
	t.Setenv("TRACKED_USERS", "2:two")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Len(t, cfg.Entities(), 2)
}

func TestLoad_DuplicateUser(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRACKED_USERS", "1:one,1:again")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"no users", map[string]string{"TRACKED_USERS": ""}, "ENTITIES_FILE or TRACKED_USERS is required"},
		{"bad presence policy", map[string]string{"PRESENCE_POLICY": "website"}, "PRESENCE_POLICY"},
		{"bad switch policy", map[string]string{"SWITCH_POLICY": "name"}, "SWITCH_POLICY"},
		{"unknown store", map[string]string{"STORE_BACKEND": "firestore"}, "STORE_BACKEND"},
		{"redis sink", map[string]string{"SINK_BACKEND": "redis"}, "SINK_BACKEND"},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}, "REDIS_URL is required"},
		{"postgres without url", map[string]string{"SINK_BACKEND": "postgres"}, "DATABASE_URL is required"},
		{"sheets without id", map[string]string{"SINK_BACKEND": "sheets"}, "SHEETS_SPREADSHEET_ID is required"},
		{"sheets without credentials", map[string]string{"STORE_BACKEND": "sheets", "SHEETS_SPREADSHEET_ID": "abc"}, "GOOGLE_CREDENTIALS is required"},
		{"zero concurrency", map[string]string{"TICK_CONCURRENCY": "0"}, "TICK_CONCURRENCY must be at least 1"},
		{"zero tick timeout", map[string]string{"TICK_TIMEOUT": "0s"}, "TICK_TIMEOUT must be positive"},
		{"lock shorter than tick", map[string]string{"TICK_LOCK_TTL": "30s"}, "TICK_LOCK_TTL must be greater than TICK_TIMEOUT"},
		{"lock equal to tick", map[string]string{"TICK_LOCK_TTL": "90s", "TICK_TIMEOUT": "90s"}, "TICK_LOCK_TTL must be greater than TICK_TIMEOUT"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"bad user id", map[string]string{"TRACKED_USERS": "abc:name"}, "TRACKED_USERS entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_UnknownBackendIsSentinel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "firestore")

	_, err := Load()
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestParseTrackedUsers(t *testing.T) {
	users, err := ParseTrackedUsers(" 1:Alice , 2 , ,3:Bob Smith")
	require.NoError(t, err)

	assert.Equal(t, []domain.TrackedEntity{
		{ID: 1, DisplayName: "Alice"},
		{ID: 2, DisplayName: "2"},
		{ID: 3, DisplayName: "Bob Smith"},
	}, users)
}

func TestConfig_LocationDefaultsToUTC(t *testing.T) {
	var cfg Config
	assert.Equal(t, time.UTC, cfg.Location())
}
