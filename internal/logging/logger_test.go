package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := base.WithContext(context.Background())

	ctx = WithRequestID(ctx, "req-123")
	FromContext(ctx).LogError("generate_image", errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "generate_image", line["operation"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "error", line["level"])
}

func TestFromContext_Formats(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := base.WithContext(context.Background())

	FromContext(ctx).LogWarnf("upload", "host returned status %d", 503)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "host returned status 503", line["message"])
	assert.Equal(t, "warn", line["level"])
}

func TestNew_ParsesLevel(t *testing.T) {
	l := New("debug", "production")
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	l = New("nonsense", "production")
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
