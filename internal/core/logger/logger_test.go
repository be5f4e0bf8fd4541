package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core).With(zap.String("request_id", "rid-1"))

	ctx := WithContext(context.Background(), l)
	FromContext(ctx, nil).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "rid-1", logs.All()[0].ContextMap()["request_id"])

	// 无 logger 时回退
	assert.NotNil(t, FromContext(context.Background(), nil))
	fb := zap.NewNop()
	assert.Same(t, fb, FromContext(context.Background(), fb))
}

func TestRedirectStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	undo := RedirectStdLog(zap.New(core), zapcore.InfoLevel)
	defer undo()

	log.Print("from std log")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "from std log", logs.All()[0].Message)
}

func TestNewWritesJSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	l, cleanup := New(Options{Service: "api", Level: "debug", Rotate: FileRotate{Enable: true, Filename: file, MaxSizeMB: 1}})
	l.Info("written")
	cleanup()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b), &entry))
	assert.Equal(t, "written", entry["msg"])
	assert.Equal(t, "api", entry["service"])
}
