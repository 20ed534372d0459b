// Package imagecache materializes sandbox rootfs images from object
// storage onto local disk, with a TTL'd in-memory index and a distributed
// lock so concurrent runs do not download the same image twice.
package imagecache

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"codearena/internal/common/cache"
	"codearena/internal/common/storage"
	appErr "codearena/pkg/errors"
)

const (
	readyFileName = ".ready"
	tempFileName  = "image.tar.zst.tmp"
	lockKeyPrefix = "judge:image:lock:"
)

type cacheEntry struct {
	path      string
	expiresAt time.Time
}

// Config wires an ImageCache.
type Config struct {
	RootDir  string
	Bucket   string
	TTL      time.Duration
	LockWait time.Duration
	Storage  storage.ObjectStorage
	Lock     cache.LockOps
}

// ImageCache resolves image refs to local rootfs directories. Images are
// immutable; a ref maps to exactly one archive object.
type ImageCache struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// New creates an ImageCache.
func New(cfg Config) (*ImageCache, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("image cache root dir is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 30 * time.Second
	}
	return &ImageCache{
		cfg:     cfg,
		entries: make(map[string]*cacheEntry),
	}, nil
}

// Rootfs returns the local rootfs directory for an image ref, downloading
// and unpacking the archive on a cold miss.
func (c *ImageCache) Rootfs(ctx context.Context, imageRef string) (string, error) {
	if imageRef == "" {
		return "", appErr.ValidationError("image_ref", "required")
	}
	path := filepath.Join(c.cfg.RootDir, sanitizeRef(imageRef))

	if c.hitEntry(imageRef) {
		return path, nil
	}
	if c.checkDisk(path, imageRef) {
		c.addEntry(imageRef, path)
		return path, nil
	}
	if err := c.fetchAndUnpack(ctx, imageRef, path); err != nil {
		return "", err
	}
	c.addEntry(imageRef, path)
	return path, nil
}

func (c *ImageCache) hitEntry(imageRef string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[imageRef]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, imageRef)
		return false
	}
	entry.expiresAt = time.Now().Add(c.cfg.TTL)
	return true
}

func (c *ImageCache) addEntry(imageRef, path string) {
	c.mu.Lock()
	c.entries[imageRef] = &cacheEntry{path: path, expiresAt: time.Now().Add(c.cfg.TTL)}
	c.mu.Unlock()
}

// checkDisk accepts a rootfs left by an earlier process, identified by its
// ready marker.
func (c *ImageCache) checkDisk(path, imageRef string) bool {
	data, err := os.ReadFile(filepath.Join(path, readyFileName))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == imageRef
}

func (c *ImageCache) fetchAndUnpack(ctx context.Context, imageRef, path string) error {
	objectKey := objectKeyFor(imageRef)

	if _, err := c.cfg.Storage.StatObject(ctx, c.cfg.Bucket, objectKey); err != nil {
		return appErr.Wrapf(err, appErr.SandboxImageMissing, "image %s not found in storage", imageRef)
	}

	if c.cfg.Lock != nil {
		lockKey := lockKeyPrefix + imageRef
		locked, err := c.cfg.Lock.TryLock(ctx, lockKey, 5*time.Minute)
		if err != nil {
			return appErr.Wrapf(err, appErr.LockFailed, "acquire image lock failed")
		}
		if !locked {
			return c.waitForUnpack(ctx, imageRef, path)
		}
		defer func() {
			_ = c.cfg.Lock.Unlock(ctx, lockKey)
		}()
	}

	if c.checkDisk(path, imageRef) {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "cleanup image dir failed")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create image dir failed")
	}

	tempPath := filepath.Join(path, tempFileName)
	if err := c.download(ctx, objectKey, tempPath); err != nil {
		return err
	}
	if err := unpackArchive(tempPath, path); err != nil {
		return err
	}
	_ = os.Remove(tempPath)

	if err := os.WriteFile(filepath.Join(path, readyFileName), []byte(imageRef), 0644); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "write ready marker failed")
	}
	return nil
}

func (c *ImageCache) waitForUnpack(ctx context.Context, imageRef, path string) error {
	deadline := time.Now().Add(c.cfg.LockWait)
	for {
		if c.checkDisk(path, imageRef) {
			return nil
		}
		if time.Now().After(deadline) {
			return appErr.New(appErr.Timeout).WithMessage("wait for image unpack timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (c *ImageCache) download(ctx context.Context, objectKey, dstPath string) error {
	reader, err := c.cfg.Storage.GetObject(ctx, c.cfg.Bucket, objectKey)
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxImageMissing, "download image failed")
	}
	defer reader.Close()

	file, err := os.Create(dstPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create image file failed")
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "write image file failed")
	}
	return nil
}

func unpackArchive(srcPath, dstDir string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "open image archive failed")
	}
	defer file.Close()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create zstd reader failed")
	}
	defer zstdReader.Close()

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "read tar entry failed")
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.New(appErr.CacheError).WithMessage("invalid tar entry path")
		}
		target := filepath.Join(dstDir, cleanName)
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(filepath.Separator)) {
			return appErr.New(appErr.CacheError).WithMessage("tar entry escape detected")
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create dir failed")
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create parent dir failed")
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !errors.Is(err, fs.ErrExist) {
				return appErr.Wrapf(err, appErr.CacheError, "create symlink failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create parent dir failed")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode))
			if err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create file failed")
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return appErr.Wrapf(err, appErr.CacheError, "write file failed")
			}
			_ = out.Close()
		default:
			// other entry types are not part of image archives
		}
	}
	return nil
}

// sanitizeRef turns an image ref into a directory name.
func sanitizeRef(imageRef string) string {
	return strings.NewReplacer("/", "_", ":", "-").Replace(imageRef)
}

// objectKeyFor maps an image ref to its archive object key.
func objectKeyFor(imageRef string) string {
	return "images/" + sanitizeRef(imageRef) + ".tar.zst"
}
