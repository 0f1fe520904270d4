package link

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Credential is a minted read capability for one blob.
type Credential struct {
	// Token is the signed query string. The blob store verifies it on access,
	// so deleting a record does not revoke it before ExpiresAt.
	Token     string
	ObjectURL string // unsigned URL of the object on the blob store's native host
	ExpiresAt time.Time
}

// Issuer mints credentials through a BlobStore.
type Issuer struct {
	blobs BlobStore
}

// NewIssuer creates a credential issuer backed by the given blob store.
func NewIssuer(blobs BlobStore) *Issuer {
	return &Issuer{blobs: blobs}
}

// Mint builds a read-only credential for blobPath valid from issuedAt until issuedAt+ttl.
func (i *Issuer) Mint(ctx context.Context, blobPath string, issuedAt time.Time, ttl time.Duration) (*Credential, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	if strings.TrimSpace(blobPath) == "" {
		return nil, fmt.Errorf("%w: empty blob path", ErrInvalidTarget)
	}

	exists, err := i.blobs.Exists(ctx, blobPath)
	if err != nil {
		return nil, fmt.Errorf("check blob %q: %w", blobPath, err)
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, blobPath)
	}

	expiresAt := issuedAt.Add(ttl)

	signed, err := i.blobs.SignReadURL(ctx, blobPath, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign blob %q: %w", blobPath, err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		return nil, fmt.Errorf("parse signed url: %w", err)
	}

	token := u.RawQuery
	u.RawQuery = ""
	u.Fragment = ""

	return &Credential{
		Token:     token,
		ObjectURL: u.String(),
		ExpiresAt: expiresAt,
	}, nil
}

// ComposeAccessURL moves objectURL onto publicEndpoint and appends the credential.
// Only the scheme and host of objectURL are replaced, so it works whatever the
// storage account's native hostname is. The endpoint's own path is kept as a prefix.
// An empty publicEndpoint keeps the native URL.
func ComposeAccessURL(objectURL, publicEndpoint, credential string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("parse object url: %w", err)
	}

	if publicEndpoint != "" {
		pub, err := url.Parse(publicEndpoint)
		if err != nil {
			return "", fmt.Errorf("parse public endpoint: %w", err)
		}

		if pub.Scheme == "" || pub.Host == "" {
			return "", fmt.Errorf("%w: public endpoint %q must be absolute", ErrInvalidInput, publicEndpoint)
		}

		u.Scheme = pub.Scheme
		u.Host = pub.Host
		u.User = pub.User
		u.Path = strings.TrimSuffix(pub.Path, "/") + "/" + strings.TrimPrefix(u.Path, "/")
		u.RawPath = ""
	}

	u.RawQuery = credential
	u.Fragment = ""

	return u.String(), nil
}
