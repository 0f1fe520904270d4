package blob_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/serroba/doclinks/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocalStore(t *testing.T) (*blob.LocalStore, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.pdf"), []byte("%PDF-1.7"), 0o600))

	s, err := blob.NewLocalStore(root, "http://localhost:8888/blobs", "secret", zap.NewNop())
	require.NoError(t, err)

	return s, root
}

func TestLocalStore_Exists(t *testing.T) {
	s, _ := newLocalStore(t)

	t.Run("existing file", func(t *testing.T) {
		ok, err := s.Exists(context.Background(), "docs/a.pdf")

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing file", func(t *testing.T) {
		ok, err := s.Exists(context.Background(), "docs/b.pdf")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("directory is not a blob", func(t *testing.T) {
		ok, err := s.Exists(context.Background(), "docs")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := s.Exists(context.Background(), "../etc/passwd")

		assert.ErrorIs(t, err, blob.ErrInvalidPath)
	})
}

func TestLocalStore_SignAndVerify(t *testing.T) {
	s, _ := newLocalStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return now })

	raw, err := s.SignReadURL(context.Background(), "docs/a.pdf", now.Add(time.Hour))
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/blobs/docs/a.pdf", u.Path)

	q := u.Query()

	t.Run("valid signature", func(t *testing.T) {
		assert.NoError(t, s.Verify("docs/a.pdf", q.Get("expires"), q.Get("sig")))
	})

	t.Run("signature is bound to the object", func(t *testing.T) {
		err := s.Verify("docs/other.pdf", q.Get("expires"), q.Get("sig"))

		assert.ErrorIs(t, err, blob.ErrInvalidSignature)
	})

	t.Run("signature is bound to the expiry", func(t *testing.T) {
		later := strconv.FormatInt(now.Add(2*time.Hour).UnixMilli(), 10)
		err := s.Verify("docs/a.pdf", later, q.Get("sig"))

		assert.ErrorIs(t, err, blob.ErrInvalidSignature)
	})

	t.Run("expired at the boundary", func(t *testing.T) {
		s.WithClock(func() time.Time { return now.Add(time.Hour) })
		defer s.WithClock(func() time.Time { return now })

		err := s.Verify("docs/a.pdf", q.Get("expires"), q.Get("sig"))

		assert.ErrorIs(t, err, blob.ErrURLExpired)
	})
}

func TestLocalStore_SubSecondExpiry(t *testing.T) {
	s, _ := newLocalStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour + 500*time.Millisecond)

	raw, err := s.SignReadURL(context.Background(), "docs/a.pdf", expiresAt)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()

	t.Run("valid just before the expiry", func(t *testing.T) {
		s.WithClock(func() time.Time { return expiresAt.Add(-100 * time.Millisecond) })

		assert.NoError(t, s.Verify("docs/a.pdf", q.Get("expires"), q.Get("sig")))
	})

	t.Run("expired at the exact expiry", func(t *testing.T) {
		s.WithClock(func() time.Time { return expiresAt })

		assert.ErrorIs(t, s.Verify("docs/a.pdf", q.Get("expires"), q.Get("sig")), blob.ErrURLExpired)
	})
}

func TestLocalStore_Handler(t *testing.T) {
	s, _ := newLocalStore(t)
	srv := httptest.NewServer(http.StripPrefix("/blobs", s.Handler()))
	t.Cleanup(srv.Close)

	signed, err := s.SignReadURL(context.Background(), "docs/a.pdf", time.Now().Add(time.Hour))
	require.NoError(t, err)

	u, _ := url.Parse(signed)

	t.Run("serves a signed request", func(t *testing.T) {
		resp, err := http.Get(srv.URL + u.RequestURI())
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejects an unsigned request", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/blobs/docs/a.pdf")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestNewLocalStore(t *testing.T) {
	t.Run("requires a signing key", func(t *testing.T) {
		_, err := blob.NewLocalStore(t.TempDir(), "http://localhost/blobs", "", zap.NewNop())

		assert.Error(t, err)
	})

	t.Run("requires an absolute base url", func(t *testing.T) {
		_, err := blob.NewLocalStore(t.TempDir(), "/blobs", "k", zap.NewNop())

		assert.Error(t, err)
	})
}
