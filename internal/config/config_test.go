package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12000, c.CharBudget)
	assert.Equal(t, OrderStoreFirst, c.SourceOrder)
	assert.Equal(t, 200, c.PreviewLimit)
	assert.Equal(t, 20, c.BatchSize)
	assert.Equal(t, 30, c.SessionTTLMin)
	assert.Equal(t, 50, c.DailyLimit)
	assert.Equal(t, 1000, c.MonthlyLimit)
	assert.Equal(t, "/listings/", c.DetailPath)
	assert.Equal(t, "sqlite", c.StoreDriver)
	assert.Equal(t, 30, c.HTTPTimeoutSec)
	assert.NotEmpty(t, c.DataDir)
	assert.Equal(t, "listingloom.db", filepath.Base(c.DatabaseURL))
	require.NoError(t, c.Validate())
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("char_budget: 500\ndaily_limit: 3\nsource_order: files_first\n"), 0o644))
	t.Setenv("LISTINGLOOM_DAILY_LIMIT", "7")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, c.CharBudget)
	assert.Equal(t, 7, c.DailyLimit)
	assert.Equal(t, OrderFilesFirst, c.SourceOrder)
}

func TestLoad_MissingExplicitFileIsNotFatal(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	c, err := Load("")
	require.NoError(t, err)
	c.CharBudget = 4242
	c.DetailPath = "/homes/"
	require.NoError(t, Save(c, path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, back.CharBudget)
	assert.Equal(t, "/homes/", back.DetailPath)
}

func TestValidate(t *testing.T) {
	base := Global{SourceOrder: OrderStoreFirst, StoreDriver: "sqlite", CharBudget: 1, BatchSize: 1}
	require.NoError(t, base.Validate())

	bad := base
	bad.SourceOrder = "random"
	assert.Error(t, bad.Validate())

	bad = base
	bad.StoreDriver = "postgres"
	assert.Error(t, bad.Validate())

	bad = base
	bad.CharBudget = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.DailyLimit = -1
	assert.Error(t, bad.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("debug", "json"))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))
	assert.Error(t, InitLogger("loud", "console"))
}
