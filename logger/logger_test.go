package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxAttrsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")

	ctx := Ctx(context.Background(), slog.String("cycle_id", "c-1"))
	l.InfoContext(ctx, "cycle state", "to", "rendering")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "c-1", line["cycle_id"])
	assert.Equal(t, "rendering", line["to"])
}

func TestCtxSiblingsDontShare(t *testing.T) {
	parent := Ctx(context.Background(), slog.String("a", "1"))
	left := Ctx(parent, slog.String("b", "left"))
	right := Ctx(parent, slog.String("b", "right"))

	assert.Equal(t, []slog.Attr{slog.String("a", "1"), slog.String("b", "left")}, left.Value(attrKey))
	assert.Equal(t, []slog.Attr{slog.String("a", "1"), slog.String("b", "right")}, right.Value(attrKey))
}

func TestWithKeepsContextHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "text").With("component", "scheduler")

	l.InfoContext(Ctx(context.Background(), slog.String("cycle_id", "c-2")), "hello")
	assert.Contains(t, buf.String(), "component=scheduler")
	assert.Contains(t, buf.String(), "cycle_id=c-2")
}
