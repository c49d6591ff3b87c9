package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsAreWrittenAsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "api", "debug")

	l.Info("order paid", Fields{OrderID: "o1", EventID: "evt_1", Status: "paid"}.Attrs()...)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api", line["service"])
	assert.Equal(t, "o1", line["order_id"])
	assert.Equal(t, "evt_1", line["event_id"])
	assert.Equal(t, "paid", line["status"])
	assert.NotContains(t, line, "user_id")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "api", "warn")

	l.Info("skipped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestFromContext(t *testing.T) {
	fallback := Discard()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	scoped := Discard()
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
