package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// ============================================================================
// Icon compositor + content-addressed cache
// ============================================================================
//
// A composite is a 144x144 transparent canvas with the current icon centered
// (100x100, nudged down) and the prev/next icons in the top-left/top-right
// corners (50x50, ~70% opacity).
//
// Composites are stored as icon_<fingerprint>.png where the fingerprint hashes
// the resolved asset file names. The directory is shared by every daemon on
// the host without locking: writes go to a unique temp file and are renamed
// into place, and a render is a pure function of its key, so racing writers
// produce the same file.
// ============================================================================

// IconFile resolves an icon id to its asset path. The white variant carries
// a "_w" suffix.
func IconFile(assetsDir string, id IconID, c IconColor) string {
	name := id.baseName()
	if c == IconColorWhite {
		name += "_w"
	}
	return filepath.Join(assetsDir, name+".png")
}

// Fingerprint is the cache key for a composite. Absent prev/next hash as
// "none". Only base file names take part, so the key does not depend on
// where the assets are installed.
func Fingerprint(current, prev, next string) string {
	token := func(p string) string {
		if p == "" {
			return "none"
		}
		return filepath.Base(p)
	}
	sum := sha256.Sum256([]byte(token(current) + "|" + token(prev) + "|" + token(next)))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

func cacheFileName(fp string) string { return iconCachePrefix + fp + iconCacheExt }

func isCacheFileName(name string) bool {
	return strings.HasPrefix(name, iconCachePrefix) && strings.HasSuffix(name, iconCacheExt)
}

func isCacheTempName(name string) bool {
	return strings.HasPrefix(name, "."+iconCachePrefix) && strings.HasSuffix(name, ".tmp")
}

// IconCacheStats counts cache activity since startup.
type IconCacheStats struct {
	Hits       int `json:"hits"`
	Renders    int `json:"renders"`
	Removed    int `json:"removed"`
	Referenced int `json:"referenced"`
}

// IconCache renders composites on demand and reclaims old ones.
type IconCache struct {
	dir       string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	refs  map[string]struct{}
	stats IconCacheStats
}

// NewIconCache creates dir if needed.
func NewIconCache(dir string, retention time.Duration, logger *slog.Logger) (*IconCache, error) {
	if dir == "" {
		return nil, errors.New("icon cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create icon cache dir: %w", err)
	}
	if retention <= 0 {
		retention = defaultRetentionHours * time.Hour
	}
	return &IconCache{
		dir:       dir,
		retention: retention,
		logger:    logger,
		now:       time.Now,
		refs:      make(map[string]struct{}),
	}, nil
}

func (c *IconCache) Dir() string { return c.dir }

// Render returns the path of the composite for the given asset files,
// composing and storing it on a miss. prev and next may be empty.
func (c *IconCache) Render(current, prev, next string) (string, error) {
	name := cacheFileName(Fingerprint(current, prev, next))
	path := filepath.Join(c.dir, name)

	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		c.mu.Lock()
		c.refs[name] = struct{}{}
		c.stats.Hits++
		c.mu.Unlock()
		return path, nil
	}

	img := composeIcon(current, prev, next, c.logger)
	if err := writePNGAtomic(c.dir, name, img); err != nil {
		return "", fmt.Errorf("store composite %s: %w", name, err)
	}

	c.mu.Lock()
	c.refs[name] = struct{}{}
	c.stats.Renders++
	c.mu.Unlock()

	c.logger.Debug("icon composed", "file", name, "current", filepath.Base(current), "prev", filepath.Base(prev), "next", filepath.Base(next))
	return path, nil
}

func (c *IconCache) referenced(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.refs[name]
	return ok
}

// Stats returns a copy of the counters.
func (c *IconCache) Stats() IconCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Referenced = len(c.refs)
	return s
}

// Sweep deletes composites older than the retention window that this
// instance has not referenced, plus abandoned temp files. Failures are
// logged and skipped. It returns the number of files removed.
func (c *IconCache) Sweep() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("icon cache scan failed", "dir", c.dir, "error", err)
		return 0
	}

	cutoff := c.now().Add(-c.retention)
	removed := 0

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(isCacheFileName(name) || isCacheTempName(name)) {
			continue
		}
		if c.referenced(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn("icon cache stat failed", "file", name, "error", err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn("icon cache delete failed", "file", name, "error", err)
			}
			continue
		}
		removed++
	}

	c.mu.Lock()
	c.stats.Removed += removed
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Info("icon cache swept", "removed", removed)
	}
	return removed
}

func writePNGAtomic(dir, name string, img image.Image) error {
	tmp := filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ============================================================================
// Compositing
// ============================================================================

func composeIcon(current, prev, next string, logger *slog.Logger) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, canvasSize, canvasSize))

	mainOff := (canvasSize - mainIconSize) / 2
	pasteIcon(canvas, loadIcon(current, mainIconSize, logger), image.Pt(mainOff, mainOff+mainIconOffset), mainIconSize, 0xff)

	if prev != "" {
		pasteIcon(canvas, loadIcon(prev, sideIconSize, logger), image.Pt(sideIconMargin, sideIconMargin), sideIconSize, sideIconAlpha)
	}
	if next != "" {
		pasteIcon(canvas, loadIcon(next, sideIconSize, logger), image.Pt(canvasSize-sideIconSize-sideIconMargin, sideIconMargin), sideIconSize, sideIconAlpha)
	}
	return canvas
}

// loadIcon decodes an asset. A missing file becomes a filled circle so the
// slot stays visible; an unreadable one becomes nil (drawn as transparent).
func loadIcon(path string, size int, logger *slog.Logger) image.Image {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("icon asset missing, using placeholder", "path", path)
			return placeholderCircle(size)
		}
		logger.Warn("icon asset unreadable", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		logger.Warn("icon asset decode failed", "path", path, "error", err)
		return nil
	}
	return img
}

func placeholderCircle(size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - r
			dy := float64(y) + 0.5 - r
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
			}
		}
	}
	return img
}

// pasteIcon scales src to size x size and draws it at at with the given
// opacity.
func pasteIcon(dst draw.Image, src image.Image, at image.Point, size int, alpha uint8) {
	if src == nil {
		return
	}
	scaled := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	r := image.Rectangle{Min: at, Max: at.Add(image.Pt(size, size))}
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(dst, r, scaled, image.Point{}, mask, image.Point{}, draw.Over)
}
