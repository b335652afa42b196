package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("does-not-exist")
	v.AddConfigPath(".")
	v.Set("jwt.secret", strings.Repeat("s", 32))
	v.Set("database.host", "localhost")
	v.Set("database.user", "crowdvote")
	v.Set("database.dbname", "crowdvote")
	return v
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		cfg, err := Load(newTestViper())
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 4, cfg.Worker.Count)
		assert.Equal(t, 3, cfg.Worker.MaxRetry)
		assert.Equal(t, "@every 10m", cfg.Jobs.ReconcileSpec)
		assert.Equal(t, time.Hour, cfg.Leaderboard.TTL)
		assert.Equal(t, float64(5), cfg.RateLimit.QPS)
		assert.Equal(t, 10, cfg.RateLimit.Burst)
		assert.Equal(t, 10*time.Minute, cfg.RateLimit.IdleTTL)
		assert.Equal(t, "postgres://crowdvote:@localhost:5432/crowdvote?sslmode=disable", cfg.Database.DSN())
	})

	t.Run("short jwt secret rejected", func(t *testing.T) {
		v := newTestViper()
		v.Set("jwt.secret", "short")

		_, err := Load(v)
		assert.Error(t, err)
	})

	t.Run("jobs enabled without schedule rejected", func(t *testing.T) {
		v := newTestViper()
		v.Set("jobs.reconcile_spec", " ")

		_, err := Load(v)
		assert.ErrorContains(t, err, "reconcile_spec")
	})
}
