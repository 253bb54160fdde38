package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finca/internal/auth"
	"finca/internal/config"
	"finca/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func withConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	orig := loadConfig
	t.Cleanup(func() { loadConfig = orig })
	loadConfig = func() *config.Config {
		cfg := config.Load()
		cfg.JWTSecret = testSecret
		cfg.DataBackend = config.BackendMemory
		cfg.BlobBackend = config.BackendMemory
		cfg.GoogleSpreadsheetID = ""
		if mutate != nil {
			mutate(cfg)
		}
		return cfg
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestToken_MintsValidSession(t *testing.T) {
	withConfig(t, nil)

	out, err := run(t, "token", "--user", "u-1", "--email", "jc@example.com", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager(testSecret, time.Hour).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "jc@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestToken_RequiresUser(t *testing.T) {
	withConfig(t, nil)

	_, err := run(t, "token")
	require.Error(t, err)
}

func TestToken_RejectsShortSecret(t *testing.T) {
	withConfig(t, func(c *config.Config) { c.JWTSecret = "short" })

	_, err := run(t, "token", "--user", "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestContributors_ListsKnownSetInOrder(t *testing.T) {
	out, err := run(t, "contributors")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(core.KnownContributors()))
	for i, c := range core.KnownContributors() {
		assert.Equal(t, string(c), lines[i])
	}
}

func TestMigrate_AppliesAllMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "finca.db")

	out, err := run(t, "migrate", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2")

	out, err = run(t, "migrate", "--db", dbPath, "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2")
	assert.NotContains(t, out, "warning")
}

func TestSummary_EmptyMemoryStore(t *testing.T) {
	withConfig(t, nil)

	out, err := run(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance:")
	assert.Contains(t, out, "surplus")
	assert.NotContains(t, out, "Por aportante")
}

func TestSummary_JSON(t *testing.T) {
	withConfig(t, nil)

	out, err := run(t, "summary", "--json", "--recent", "5")
	require.NoError(t, err)

	var dash core.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &dash))
	assert.Equal(t, core.Surplus, dash.Balance.Status)
	assert.Empty(t, dash.RecentExpenses)
}

func TestSummary_RejectsRecentOutOfRange(t *testing.T) {
	withConfig(t, nil)

	_, err := run(t, "summary", "--recent", "101")
	require.Error(t, err)
}

func TestMirrorCheck_RequiresSpreadsheet(t *testing.T) {
	withConfig(t, nil)

	_, err := run(t, "mirror-check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SPREADSHEET_ID")
}
