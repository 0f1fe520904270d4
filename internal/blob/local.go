package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidPath      = errors.New("invalid blob path")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrURLExpired       = errors.New("signed url expired")
)

// LocalStore keeps blobs on the local filesystem and signs URLs with an
// HMAC over the object path and expiry. Handler serves those URLs.
type LocalStore struct {
	root    string
	baseURL *url.URL
	key     []byte
	now     func() time.Time
	logger  *zap.Logger
}

// NewLocalStore creates a filesystem store rooted at root. baseURL is the
// absolute URL Handler is mounted at.
func NewLocalStore(root, baseURL, signingKey string, logger *zap.Logger) (*LocalStore, error) {
	if signingKey == "" {
		return nil, errors.New("blob signing key is required")
	}

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("blob base url %q must be absolute", baseURL)
	}

	return &LocalStore{
		root:    root,
		baseURL: base,
		key:     []byte(signingKey),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// WithClock replaces the time source used to check expiry.
func (s *LocalStore) WithClock(now func() time.Time) *LocalStore {
	s.now = now

	return s
}

func (s *LocalStore) Exists(_ context.Context, p string) (bool, error) {
	file, err := s.filePath(p)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return !info.IsDir(), nil
}

func (s *LocalStore) SignReadURL(_ context.Context, p string, expiresAt time.Time) (string, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return "", err
	}

	// Milliseconds keep the URL expiry aligned with the link record's.
	expires := strconv.FormatInt(expiresAt.UnixMilli(), 10)

	u := *s.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + clean
	u.RawQuery = url.Values{
		"expires": {expires},
		"sig":     {s.sign(clean, expires)},
	}.Encode()

	return u.String(), nil
}

// Verify checks a signature produced by SignReadURL.
func (s *LocalStore) Verify(p, expires, sig string) error {
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}

	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.mac(clean, expires)) {
		return ErrInvalidSignature
	}

	ms, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}

	if !s.now().Before(time.UnixMilli(ms)) {
		return ErrURLExpired
	}

	return nil
}

// Handler serves signed GET requests for blobs. Mount it under the base URL path.
func (s *LocalStore) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/*", s.serve)

	return r
}

func (s *LocalStore) serve(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")
	q := r.URL.Query()

	if err := s.Verify(p, q.Get("expires"), q.Get("sig")); err != nil {
		s.logger.Debug("rejected blob request", zap.String("path", p), zap.Error(err))
		http.Error(w, err.Error(), http.StatusForbidden)

		return
	}

	file, err := s.filePath(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	f, err := os.Open(file)
	if err != nil {
		http.NotFound(w, r)

		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)

		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *LocalStore) filePath(p string) (string, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) sign(p, expires string) string {
	return hex.EncodeToString(s.mac(p, expires))
}

func (s *LocalStore) mac(p, expires string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(p + "\n" + expires))

	return h.Sum(nil)
}

// cleanPath normalizes an object path and rejects anything escaping the root.
func cleanPath(p string) (string, error) {
	if p == "" || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}

	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "", ErrInvalidPath
	}

	return clean, nil
}
