package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "PQ-Bitcoin/internal/errors"
)

func TestNewMySQLStoreRejectsBadDSN(t *testing.T) {
	for _, dsn := range []string{"", "   ", "not a dsn"} {
		_, err := NewMySQLStore(context.Background(), MySQLConfig{DSN: dsn})
		require.Error(t, err, dsn)
		assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err), dsn)
	}
}

func TestApplyPoolDefaults(t *testing.T) {
	cfg := MySQLConfig{MaxIdleConns: 4}
	applyPoolDefaults(&cfg)
	assert.Equal(t, 20, cfg.MaxOpenConns)
	assert.Equal(t, 4, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Zero(t, cfg.ConnMaxIdleTime)
}
