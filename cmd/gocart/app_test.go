package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/gocart/internal/mockbackend"
)

type cliHarness struct {
	url     string
	storage string
	backend *mockbackend.Server
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	for _, key := range []string{"GOCART_API_URL", "GOCART_AUTH_TOKEN", "GOCART_STORAGE", "GOCART_STORAGE_PATH", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	srv := mockbackend.NewServer(mockbackend.NewBackend(mockbackend.SeedCatalog()), mockbackend.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &cliHarness{
		url:     ts.URL,
		storage: filepath.Join(t.TempDir(), "storage.json"),
		backend: srv,
	}
}

func (h *cliHarness) run(t *testing.T, args ...string) (output, error) {
	t.Helper()
	base := []string{"-api", h.url, "-storage", "file", "-storage-location", h.storage, "-log-level", "error"}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(base, args...), &stdout, &stderr)
	var out output
	if err == nil {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &out), stdout.String())
	}
	return out, err
}

func TestCLIGuestSession(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "add", "tee-s", "2")
	require.NoError(t, err)
	require.NotNil(t, out.Cart)
	cartID := out.Cart.ID

	out, err = h.run(t, "add", "socks-3pk")
	require.NoError(t, err)
	assert.Equal(t, cartID, out.Cart.ID, "guest id persisted between runs")
	assert.Equal(t, 3, out.Totals.ItemCount)

	out, err = h.run(t, "total")
	require.NoError(t, err)
	assert.Equal(t, "25000", out.Totals.Total.String())

	out, err = h.run(t, "update", out.Cart.Items[0].ID, "tee-m", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Totals.ItemCount)

	out, err = h.run(t, "remove", out.Cart.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Totals.ItemCount)

	out, err = h.run(t, "clear")
	require.NoError(t, err)
	assert.Zero(t, out.Totals.ItemCount)
}

func TestCLIMerge(t *testing.T) {
	h := newCLIHarness(t)

	guest, err := h.run(t, "add", "hoodie-navy", "1")
	require.NoError(t, err)

	_, err = h.run(t, "merge")
	require.EqualError(t, err, "You need to sign in first")

	out, err := h.run(t, "-token", "frank", "merge")
	require.NoError(t, err)
	assert.NotEqual(t, guest.Cart.ID, out.Cart.ID)
	assert.Equal(t, 1, out.Totals.ItemCount)
}

func TestCLIBackendError(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "add", "tee-l")
	require.EqualError(t, err, "Classic Tee (L) is out of stock")
}

func TestCLIVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "gocart development")
}

func TestCLIUsage(t *testing.T) {
	h := newCLIHarness(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"checkout"}},
		{"add without variant", []string{"add"}},
		{"update missing quantity", []string{"update", "item", "tee-s"}},
		{"fetch with args", []string{"fetch", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(t, tt.args...)
			assert.ErrorIs(t, err, errUsage)
			assert.Equal(t, 2, exitCode(err))
		})
	}

	_, err := h.run(t, "add", "tee-s", "many")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}
