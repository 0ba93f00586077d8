package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledManager(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	assert.False(t, m.Enabled())
	assert.Nil(t, m.Repository())
	assert.Error(t, m.Ping(context.Background()))
	assert.NoError(t, m.Close())
}

func TestEnabledRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true

	_, err := NewManager(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}
