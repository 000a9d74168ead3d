package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{name: "debug level", logLevel: "debug"},
		{name: "info level", logLevel: "info"},
		{name: "warn level", logLevel: "warn"},
		{name: "error level", logLevel: "error"},
		{name: "invalid level falls back to info", logLevel: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: tt.logLevel})
			require.NoError(t, err)
			require.NotNil(t, log)

			// Setup installs the logger as the process default.
			assert.Equal(t, log, slog.Default())
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Run("returns stored logger", func(t *testing.T) {
		stored := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := logger.WithLogger(context.Background(), stored)

		assert.Equal(t, stored, logger.FromContext(ctx))
	})

	t.Run("falls back to default when absent", func(t *testing.T) {
		got := logger.FromContext(context.Background())
		assert.Equal(t, slog.Default(), got)
	})
}

func TestFromContextOrDefault(t *testing.T) {
	def := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("prefers context logger", func(t *testing.T) {
		stored := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := logger.WithLogger(context.Background(), stored)

		assert.Equal(t, stored, logger.FromContextOrDefault(ctx, def))
	})

	t.Run("falls back to provided default", func(t *testing.T) {
		assert.Equal(t, def, logger.FromContextOrDefault(context.Background(), def))
	})

	t.Run("nil default falls back to global", func(t *testing.T) {
		got := logger.FromContextOrDefault(context.Background(), nil)
		assert.Equal(t, slog.Default(), got)
	})
}
