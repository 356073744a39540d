package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.With(Component("reconcile")).Warn(context.Background(), "duplicate ids",
		Strings("fu_ids", []string{"A"}), Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "duplicate ids", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "reconcile", line["component"])
	assert.Equal(t, "boom", line["error"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	log.Error(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNoop(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Info(context.Background(), "nothing happens")
}
