package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	req.NoError(err)
	req.Equal("8081", cfg.Port)
	req.Equal(24*time.Hour, cfg.TokenTTL())
	req.Equal(DriverMemory, cfg.DBDriver)
	req.Equal(5*time.Second, cfg.StoreTimeout)
	req.Equal(1000, cfg.MaxMessageLength)
}

func TestLoad_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", DriverSQLite)
	t.Setenv("DB_DSN", "file:chat.db")
	t.Setenv("STORE_TIMEOUT", "250ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)
	req.Equal("9090", cfg.Port)
	req.Equal(DriverSQLite, cfg.DBDriver)
	req.Equal("file:chat.db", cfg.DBDSN)
	req.Equal(250*time.Millisecond, cfg.StoreTimeout)
}

func TestLoad_DotenvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "test.env")
	req.NoError(os.WriteFile(path, []byte("MAX_MESSAGE_LENGTH=42\nBUS_DRIVER=redis\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("MAX_MESSAGE_LENGTH")
		os.Unsetenv("BUS_DRIVER")
	})

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal(42, cfg.MaxMessageLength)
	req.Equal(BusRedis, cfg.BusDriver)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoad_SQLDriverRequiresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverMySQL)
	t.Setenv("DB_DSN", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
