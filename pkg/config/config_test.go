package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisakit/paisakit/pkg/config"
)

type testConfig struct {
	Name    string        `env:"TESTCFG_NAME,required"`
	Port    int           `env:"TESTCFG_PORT" envDefault:"8080"`
	Timeout time.Duration `env:"TESTCFG_TIMEOUT" envDefault:"5s"`
}

func TestLoad(t *testing.T) {
	t.Run("from environment", func(t *testing.T) {
		t.Setenv("TESTCFG_NAME", "billing")

		cfg, err := config.Load[testConfig]()
		require.NoError(t, err)
		assert.Equal(t, "billing", cfg.Name)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := config.Load[testConfig]()
		assert.ErrorIs(t, err, config.ErrFailedToParseEnv)
	})

	t.Run("env file does not override environment", func(t *testing.T) {
		t.Setenv("TESTCFG_NAME", "from-env")

		file := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(file, []byte("TESTCFG_NAME=from-file\nTESTCFG_PORT=9090\n"), 0o600))

		cfg, err := config.Load[testConfig](file)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Name)
		assert.Equal(t, 9090, cfg.Port)
	})

	t.Run("absent env file is skipped", func(t *testing.T) {
		t.Setenv("TESTCFG_NAME", "billing")
		cfg, err := config.Load[testConfig]("/nonexistent/.env")
		require.NoError(t, err)
		assert.Equal(t, "billing", cfg.Name)
	})
}
