package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/config"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/pkg/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func memoryConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "glowup-test", Environment: config.EnvDevelopment, Version: "test"},
		Redis:    config.RedisConfig{Disabled: true},
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Storage:  config.StorageConfig{Driver: config.DriverMemory},
		Scoring:  config.ScoringConfig{MaxWriteAttempts: 3, StrictInvariants: true},
		Features: config.NewFeatureFlags(),
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			MetricsEnabled: true,
		},
	}
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

func TestLevelCommand(t *testing.T) {
	out, err := execute(t, "level", "350")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 3: Explorador")
	assert.Contains(t, out, "250 XP to level 4")

	out, err = execute(t, "level", "99999")
	require.NoError(t, err)
	assert.Contains(t, out, "max level reached")

	out, err = execute(t, "level", "100", "--json")
	require.NoError(t, err)
	var info scoring.LevelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 2, info.Level)

	_, err = execute(t, "level", "-1")
	assert.Error(t, err)
	_, err = execute(t, "level")
	assert.Error(t, err)
}

func TestRankCommand(t *testing.T) {
	out, err := execute(t, "rank", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "Prata")
	assert.Contains(t, out, "900 points to go")

	out, err = execute(t, "rank", "60000", "--json")
	require.NoError(t, err)
	var info scoring.RankInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "legend", info.Current.ID)
	assert.Nil(t, info.Next)

	_, err = execute(t, "rank", "many")
	assert.Error(t, err)
}

func TestTablesCommand_RoundTrip(t *testing.T) {
	out, err := execute(t, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETE_CHALLENGE")

	path := filepath.Join(t.TempDir(), "tables.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	again, err := execute(t, "tables", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	// A file may override a single section.
	custom := filepath.Join(t.TempDir(), "actions.toml")
	require.NoError(t, os.WriteFile(custom, []byte(`
[[actions]]
key = "HYDRATE"
base_points = 3
xp_reward = 5
`), 0o600))
	out, err = execute(t, "tables", "-f", custom)
	require.NoError(t, err)
	assert.Contains(t, out, "HYDRATE")
	assert.NotContains(t, out, "COMPLETE_CHALLENGE")

	out, err = execute(t, "--tables", custom, "level", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 2")

	_, err = execute(t, "tables", "--file", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestMigrateCommand_Validation(t *testing.T) {
	cfg := memoryConfig()
	assert.ErrorContains(t, migrate(context.Background(), io.Discard, cfg, "sideways"), "unknown migrate action")
	assert.ErrorContains(t, migrate(context.Background(), io.Discard, cfg, "up"), "has no schema")
}

func TestMigrateSQLite(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage = config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "glowup.db")}

	var out bytes.Buffer
	require.NoError(t, migrate(context.Background(), &out, cfg, "up"))
	assert.Contains(t, out.String(), "schema up to date")
	assert.Error(t, migrate(context.Background(), io.Discard, cfg, "down"))
}

func TestBuild_MemoryDriverServesAPI(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), quietLogger(), "")
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Cache)
	ts := httptest.NewServer(app.Server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/users/ana/progress", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/users/ana/points", "application/json",
		strings.NewReader(`{"action":"COMPLETE_CHALLENGE"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "glowup_scoring_add_points_total")
}

func TestBuild_SQLiteDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage = config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "glowup.db")}

	app, err := Build(context.Background(), cfg, quietLogger(), "")
	require.NoError(t, err)
	defer app.Close()

	status := app.Health.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Checks, "sqlite")
}

func TestBuild_WithRedisSchedulesRebuild(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}
	cfg.Jobs = config.JobsConfig{LeaderboardRebuildInterval: time.Hour, LeaderboardRebuildLimit: 50}

	app, err := Build(context.Background(), cfg, quietLogger(), "")
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Cache)
	assert.True(t, app.Leaderboard.HasCache())

	jobs := app.Scheduler.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "rebuild_leaderboard", jobs[0].Name)

	_, err = app.Scheduler.RunNow(context.Background(), "rebuild_leaderboard")
	assert.NoError(t, err)

	status := app.Health.Check(context.Background())
	assert.Contains(t, status.Checks, "redis")
}

func TestBuild_RedisDownIsNotFatal(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{URL: "redis://" + addr + "/0"}

	app, err := Build(context.Background(), cfg, quietLogger(), "")
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Cache)
	assert.Empty(t, app.Scheduler.ListJobs())
}

func TestBuild_BadTablesFile(t *testing.T) {
	_, err := Build(context.Background(), memoryConfig(), quietLogger(), filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "load scoring tables")
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, memoryConfig(), quietLogger(), "") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
