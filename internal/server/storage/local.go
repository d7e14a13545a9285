package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avolkovs/taskkeeper/internal/common"
)

// LocalServePath is the authenticated endpoint that resolves a local signed
// URL back to file content. The endpoint re-verifies ownership before
// serving: the URL itself carries no credential.
const LocalServePath = "/api/files/serve"

// Local stores file content on the local filesystem under an owner-scoped
// directory: <root>/<ownerID>/<generatedName>. The storage key is the
// "<ownerID>/<generatedName>" relative path.
type Local struct {
	root string
}

// NewLocal constructs a filesystem backend rooted at root, creating the
// directory if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: local storage root is not configured", common.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return &Local{root: root}, nil
}

// keyPath maps a storage key to an absolute path under root, rejecting keys
// that would escape it.
func (l *Local) keyPath(key string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	rootAbs, err := filepath.Abs(l.root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) {
		return "", common.ErrNotFound
	}
	return path, nil
}

func (l *Local) Put(ctx context.Context, content []byte, originalName, mimeType, ownerID string) (*Object, error) {
	name := generateName(originalName)
	dir := filepath.Join(l.root, ownerID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o640); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return &Object{GeneratedName: name, Key: ownerID + "/" + name}, nil
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := l.keyPath(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return content, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	path, err := l.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return nil
}

// Sign returns a locally-servable URL for the stored object. The TTL is
// ignored: the URL grants nothing by itself, the serving endpoint requires
// authentication and re-verifies that the requester owns the file.
func (l *Local) Sign(ctx context.Context, key string, mode SignMode, ttl time.Duration) (string, error) {
	if mode != SignModeDownload {
		return "", fmt.Errorf("local storage: %s links are not supported", mode)
	}
	if _, err := l.keyPath(key); err != nil {
		return "", err
	}
	return LocalServePath + "?key=" + url.QueryEscape(key), nil
}
