package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvInt(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "8")
	assert.Equal(t, 8, envInt("BATCH_WORKERS", 4))

	t.Setenv("BATCH_WORKERS", "many")
	assert.Equal(t, 4, envInt("BATCH_WORKERS", 4))

	t.Setenv("BATCH_WORKERS", "")
	assert.Equal(t, 4, envInt("BATCH_WORKERS", 4))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
