package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConsoleDefault(t *testing.T) {
	logger := New(Config{})
	assert.NotNil(t, logger)
	logger.Info().Str("component", "test").Msg("console logger ready")
}

func TestNewCreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger := New(Config{Level: "debug", Output: []string{"file", "stdout"}, Dir: dir})
	assert.NotNil(t, logger)
	assert.DirExists(t, dir)
}
