package main

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
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/crucible/agent/persistence"
	"github.com/BaSui01/crucible/config"
	"github.com/BaSui01/crucible/workflow"
)

func TestDemoTeams_DefaultPipeline(t *testing.T) {
	teams := demoTeams(workflow.DefaultPipeline())

	assert.Len(t, teams, 4)
	assert.NotContains(t, teams, workflow.StageBroadcastFindings)
	assert.Equal(t, []string{"engineering_a", "engineering_b"}, teams[workflow.StageCompetitivePair].Names())
	assert.Equal(t, []string{"red_team", "blue_team"}, teams[workflow.StageAdversaryPair].Names())
	assert.Equal(t, []string{"security_quality"}, teams[workflow.StageSecurityQuality].Names())
	assert.NoError(t, workflow.ValidatePipeline(workflow.DefaultPipeline(), teams))
}

func TestDemoTeams_CustomPipeline(t *testing.T) {
	pipeline := []workflow.StageDescriptor{
		{ID: "draft", Kind: workflow.StageKindPair, Mode: workflow.PairModeCompetitive},
		{ID: "review", Kind: workflow.StageKindSolo},
	}
	teams := demoTeams(pipeline)
	assert.Equal(t, []string{"draft_a", "draft_b"}, teams["draft"].Names())
	assert.Equal(t, []string{"review"}, teams["review"].Names())

	out, err := teams["draft"].Members[0].Run(context.Background(), "x", nil)
	require.NoError(t, err)
	bid := out.(map[string]any)["bid"].(float64)
	assert.GreaterOrEqual(t, bid, 0.5)
	assert.Less(t, bid, 1.0)
}

func TestDemoBid_Deterministic(t *testing.T) {
	assert.Equal(t, demoBid("engineering_a", "obj"), demoBid("engineering_a", "obj"))
	for _, name := range []string{"a", "b", "engineering_a", "engineering_b", "x_y_z"} {
		bid := demoBid(name, "objective")
		assert.GreaterOrEqual(t, bid, 0.5)
		assert.Less(t, bid, 1.0)
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.TeamTimeout = 5 * time.Second
	cfg.Metrics.Namespace = "crucible_test"
	return cfg
}

func decodeState(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	var state map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &state))
	return state
}

func TestApp_RunMemory(t *testing.T) {
	cfg := testConfig()
	ctx := context.Background()

	a, err := newApp(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &persistence.MemoryRunStore{}, a.store)
	assert.Nil(t, a.server)

	var out bytes.Buffer
	require.NoError(t, a.Run(ctx, "harden the login flow", &out))

	state := decodeState(t, &out)
	assert.Equal(t, "harden the login flow", state["objective"])
	assert.Equal(t, workflow.StageDone, state["next_stage"])
	runID, _ := state["run_id"].(string)
	require.NotEmpty(t, runID)

	rec, err := a.store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "harden the login flow", rec.Objective)
	assert.NotEmpty(t, rec.Winner)

	var listing bytes.Buffer
	require.NoError(t, a.ListRuns(ctx, "", 10, &listing))
	lines := strings.Split(strings.TrimSpace(listing.String()), "\n")
	require.Len(t, lines, 1)
	var summary runSummary
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &summary))
	assert.Equal(t, runID, summary.ID)
}

func TestApp_RunEmptyObjective(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	assert.Error(t, a.Run(context.Background(), "   ", &out))
	assert.Zero(t, out.Len())
}

func TestApp_PersistenceDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Persistence.Backend = "none"

	a, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.store)

	var out bytes.Buffer
	require.NoError(t, a.Run(context.Background(), "objective", &out))
	assert.Error(t, a.ListRuns(context.Background(), "", 10, io.Discard))
}

func TestApp_DatabaseAndMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "crucible.db")
	cfg.Database.MaxOpenConns = 1
	cfg.Database.MaxIdleConns = 1
	cfg.Persistence.Backend = "database"
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	a, err := newApp(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &persistence.GormRunStore{}, a.store)
	require.NotNil(t, a.server)

	require.NoError(t, a.Run(ctx, "ship it", io.Discard))

	runs, err := a.store.ListRuns(ctx, persistence.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	decoded, err := runs[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "ship it", decoded.Objective)

	base := "http://" + a.server.Addr()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"database":"ok"`)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "crucible_test_stage_total")
}

func TestApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis.Addr = mr.Addr()
	cfg.Persistence.Backend = "redis"
	cfg.Pruning.Registry = "redis"
	cfg.Embedding.CacheTTL = time.Minute
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	a, err := newApp(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &persistence.RedisRunStore{}, a.store)

	var out bytes.Buffer
	require.NoError(t, a.Run(ctx, "cache everything", &out))
	runID := decodeState(t, &out)["run_id"].(string)

	assert.True(t, mr.Exists("crucible:run:data:"+runID))
	rec, err := a.store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "cache everything", rec.Objective)
}

func TestApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestBuildPanel(t *testing.T) {
	logger := zaptest.NewLogger(t)

	panel, err := buildPanel(config.DefaultCriticConfig(), logger)
	require.NoError(t, err)
	require.Len(t, panel.Critics(), 3)

	verdict, _ := panel.Review(context.Background(), "password: hunter2", nil)
	assert.False(t, verdict.Approved)

	_, err = buildPanel(config.CriticConfig{
		Principles: []config.PrincipleConfig{{Name: "broken", Pattern: "("}},
	}, logger)
	assert.Error(t, err)
}

func TestBuildPanel_CustomPrinciples(t *testing.T) {
	panel, err := buildPanel(config.CriticConfig{
		Principles: []config.PrincipleConfig{{Name: "no-todo", Pattern: `\bTODO\b`, Fix: "finish the work", Severity: 0.4}},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	verdict, _ := panel.Review(context.Background(), "TODO: write tests", nil)
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Fixes, "finish the work")

	verdict, _ = panel.Review(context.Background(), "password: hunter2", nil)
	assert.True(t, verdict.Approved)
}

func TestBuildPanel_LLMReviewer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"approved\": false, \"fixes\": [\"add rate limiting\"], \"score\": 0.7}"}}]}`))
	}))
	defer srv.Close()

	cfg := config.DefaultCriticConfig()
	cfg.Reviewer.BaseURL = srv.URL
	cfg.Reviewer.Timeout = 5 * time.Second

	panel, err := buildPanel(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	verdict, individual := panel.Review(context.Background(), "expose the admin API", nil)
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Fixes, "add rate limiting")
	require.Len(t, individual, 3)
	assert.Equal(t, "red_team", individual[1].Name)
	assert.False(t, individual[1].Verdict.Approved)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("CRUCIBLE_ENGINE_MAX_STEPS", "7")
	t.Setenv("CRUCIBLE_LOG_LEVEL", "debug")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.MaxSteps)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crucible.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_steps: 3\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.MaxSteps)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CRUCIBLE_ENGINE_TEAM_TIMEOUT", "0s")

	_, err := loadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "team_timeout")
}
