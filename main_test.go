package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func TestAppClose_PartiallyBuilt(t *testing.T) {
	flushed := false
	a := &app{
		logger: otelzap.New(zap.NewNop()),
		shutdownTracer: func(context.Context) error {
			flushed = true
			return nil
		},
	}

	assert.NotPanics(t, func() { a.Close(context.Background()) })
	assert.True(t, flushed)
}

func TestNewApp_LockerFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "shiplite.db"))
	t.Setenv("REDIS_URL", "://not-a-url")

	a, err := newApp(context.Background(), true)

	require.Error(t, err)
	assert.ErrorContains(t, err, "parsing redis url")
	assert.Nil(t, a)
}
