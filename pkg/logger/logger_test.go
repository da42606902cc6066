package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/itsneelabh/gocart/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestNew_JSONOutputCarriesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Service: "gocart", Env: "test", Level: "info", Output: &buf})

	log.Info("Cart fetched", map[string]interface{}{
		"cart_id": "c1",
		"items":   2,
	})

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "Cart fetched", recs[0]["msg"])
	assert.Equal(t, "gocart", recs[0]["service"])
	assert.Equal(t, "test", recs[0]["env"])
	assert.Equal(t, "c1", recs[0]["cart_id"])
	assert.EqualValues(t, 2, recs[0]["items"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", "debug", true, true, true},
		{"info", "info", false, true, true},
		{"warn", "warn", false, false, true},
		{"warning alias", "WARNING", false, false, true},
		{"error", "error", false, false, false},
		{"unknown falls back to info", "verbose", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.Options{Level: tt.level, Output: &buf})

			log.Debug("d", nil)
			log.Info("i", nil)
			log.Warn("w", nil)

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, `"msg":"d"`))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, `"msg":"i"`))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, `"msg":"w"`))
		})
	}
}

func TestSetLevel_AppliesToChildren(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: "error", Output: &buf})
	child := log.WithComponent("cart/store")

	child.Info("hidden", nil)
	assert.Empty(t, buf.String())

	log.SetLevel("debug")
	child.Debug("visible", nil)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "visible", recs[0]["msg"])
	assert.Equal(t, "cart/store", recs[0]["component"])
}

func TestWithFields_AndErrorValues(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf}).
		WithFields(map[string]interface{}{"request_id": "r-1"}).
		WithField("op", "add_item")

	log.Error("Request failed", map[string]interface{}{"error": errors.New("out of stock")})

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "r-1", recs[0]["request_id"])
	assert.Equal(t, "add_item", recs[0]["op"])
	assert.Equal(t, "out of stock", recs[0]["error"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Format: "text", Output: &buf})

	log.Info("hello", map[string]interface{}{"k": "v"})

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, &logger.NoOpLogger{}, logger.OrNoOp(nil))

	l := logger.New(logger.Options{})
	assert.Same(t, l, logger.OrNoOp(l))
}
