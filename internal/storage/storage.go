// Package storage provides the key/value object storage behind the
// application state and uploaded site assets.
//
// Backends:
// - LocalStorage: files under a base directory (development default)
// - R2Storage: Cloudflare R2 through the S3 API
// - PostgresStorage: a kv_objects table
// - MemoryStorage: an in-process map for tests and throwaway runs
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Put stores data at key. It fails with ErrKeyExists if the key is taken
	// and opts.Overwrite is false, and with ErrTooLarge past opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns the object at key. The caller must close the reader.
	// Missing keys fail with ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link to the object. Backends that can sign URLs honour
	// expires; the others return a permanent URL.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // bytes, 0 means no limit
	Overwrite   bool
	Public      bool // R2 only
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration
// =============================================================================

const (
	ProviderLocal    = "local"
	ProviderR2       = "r2"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // optional custom domain; presigned URLs otherwise
	Region          string // defaults to "auto"
	Endpoint        string // overrides the account endpoint, mostly for tests
}

// =============================================================================
// Keys
// =============================================================================

// Well-known keys. Each is prefixed with the configured namespace.
const (
	stateKey = "streamtosite-storage"
	planKey  = "streamtosite_plan"
	usageKey = "streamtosite_usage"
)

// Keys names the objects that hold application state.
type Keys struct {
	State string // {user, sites, posts} JSON
	Plan  string // plan id override
	Usage string // usage override JSON
}

// NewKeys returns the state keys for a namespace. An empty namespace yields
// the bare keys.
func NewKeys(namespace string) Keys {
	prefix := ""
	if namespace != "" {
		prefix = namespace + "/"
	}
	return Keys{
		State: prefix + stateKey,
		Plan:  prefix + planKey,
		Usage: prefix + usageKey,
	}
}

// All returns every state key.
func (k Keys) All() []string {
	return []string{k.State, k.Plan, k.Usage}
}

// LogoKey generates a storage key for a site logo.
// Format: sites/{siteID}/logo-{uuid}{ext}
func LogoKey(siteID uuid.UUID, ext string) string {
	return fmt.Sprintf("sites/%s/logo-%s%s", siteID, uuid.New(), ext)
}

// =============================================================================
// Helpers
// =============================================================================

// ReadAll returns the full contents of the object at key.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, _, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &StorageError{Op: "Get", Key: key, Err: err}
	}
	return data, nil
}

// WriteAll replaces the object at key with data.
func WriteAll(ctx context.Context, s Storage, key string, data []byte, contentType string) error {
	return s.Put(ctx, key, bytes.NewReader(data), PutOptions{
		ContentType: contentType,
		Overwrite:   true,
	})
}
