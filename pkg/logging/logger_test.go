package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRunID_Stable(t *testing.T) {
	first := GetRunID()
	second := GetRunID()

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second, "run ID should be stable for the process lifetime")
}

func TestNewLogger_WritesWithoutError(t *testing.T) {
	logger, err := NewLogger("test-component")
	require.NotNil(t, logger)

	// Fallback mode still returns a usable logger alongside the error.
	logger.Debugf("debug %d", 1)
	logger.Infof("info %s", "message")
	logger.Warnf("warn")
	logger.Errorf("error")

	if err == nil {
		assert.NotEmpty(t, logger.LogPath())
	}

	assert.Equal(t, GetRunID(), logger.RunID())
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	logger, _ := NewLogger("close-test")
	require.NotNil(t, logger)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
