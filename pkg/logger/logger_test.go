package logger_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.Equal(t, 0, buff.Len())
	templogger.Logger.Info().Msg("Test")
	require.Contains(t, buff.String(), "Test")
}

func TestLogLevelFilters(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Level("warn").Make()
	require.NoError(t, err)

	templogger.Logger.Info().Msg("hidden")
	templogger.Logger.Warn().Msg("shown")

	assert.NotContains(t, buff.String(), "hidden")
	assert.Contains(t, buff.String(), "shown")
}

func TestLogInvalidLevel(t *testing.T) {
	_, err := logger.New().Level("loud").Make()
	require.Error(t, err)
}

func TestLogFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.log")
	templogger, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	templogger.Logger.Error().Msg("to file")
	require.NoError(t, templogger.Close())
	require.NotNil(t, templogger.LogFile)
}

func TestParseLevelDefault(t *testing.T) {
	level, err := logger.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}
