package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAsset stores a solid size x size PNG.
func writeAsset(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range knownIcons {
		writeAsset(t, IconFile(dir, id, IconColorWhite), color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		writeAsset(t, IconFile(dir, id, IconColorBlack), color.NRGBA{A: 0xff})
	}
	return dir
}

func newTestCache(t *testing.T, dir string) *IconCache {
	t.Helper()
	c, err := NewIconCache(dir, 7*24*time.Hour, discardLogger())
	require.NoError(t, err)
	return c
}

func TestIconFile(t *testing.T) {
	assert.Equal(t, "/a/headphones_w.png", IconFile("/a", IconHeadphones, IconColorWhite))
	assert.Equal(t, "/a/airpods.png", IconFile("/a", IconAirPods, IconColorBlack))
	assert.Equal(t, "/a/speaker_w.png", IconFile("/a", IconID("bogus"), IconColorWhite))
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("/x/speaker_w.png", "", "/x/headphones_w.png")
	assert.Len(t, fp, fingerprintLen)
	assert.Equal(t, fp, Fingerprint("/other/speaker_w.png", "", "/other/headphones_w.png"), "directory is not part of the key")
	assert.NotEqual(t, fp, Fingerprint("/x/speaker_w.png", "/x/headphones_w.png", ""), "prev and next are distinct positions")
	assert.NotEqual(t, fp, Fingerprint("/x/speaker.png", "", "/x/headphones.png"), "color variant changes the key")
}

func TestIconCache_HitReusesFile(t *testing.T) {
	assets := newTestAssets(t)
	c := newTestCache(t, t.TempDir())

	cur := IconFile(assets, IconSpeaker, IconColorWhite)
	next := IconFile(assets, IconHeadphones, IconColorWhite)

	p1, err := c.Render(cur, "", next)
	require.NoError(t, err)
	info1, err := os.Stat(p1)
	require.NoError(t, err)

	// Make a rewrite observable through the modification time.
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(p1, old, old))

	p2, err := c.Render(cur, "", next)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	info2, err := os.Stat(p2)
	require.NoError(t, err)
	assert.True(t, info2.ModTime().Equal(old), "cache hit must not rewrite the file")
	assert.Equal(t, info1.Size(), info2.Size())

	st := c.Stats()
	assert.Equal(t, 1, st.Renders)
	assert.Equal(t, 1, st.Hits)
	assert.Equal(t, 1, st.Referenced)

	entries, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestIconCache_ColorVariantChangesPath(t *testing.T) {
	assets := newTestAssets(t)
	c := newTestCache(t, t.TempDir())

	white, err := c.Render(IconFile(assets, IconSpeaker, IconColorWhite), "", "")
	require.NoError(t, err)
	black, err := c.Render(IconFile(assets, IconSpeaker, IconColorBlack), "", "")
	require.NoError(t, err)
	assert.NotEqual(t, white, black)
}

func TestIconCache_SharedAcrossInstances(t *testing.T) {
	assets := newTestAssets(t)
	dir := t.TempDir()
	a := newTestCache(t, dir)
	b := newTestCache(t, dir)

	cur := IconFile(assets, IconAirPods, IconColorBlack)
	pa, err := a.Render(cur, "", "")
	require.NoError(t, err)
	pb, err := b.Render(cur, "", "")
	require.NoError(t, err)

	assert.Equal(t, pa, pb)
	assert.Equal(t, 1, b.Stats().Hits)
}

func TestIconCache_Sweep(t *testing.T) {
	assets := newTestAssets(t)
	dir := t.TempDir()
	c := newTestCache(t, dir)

	referenced, err := c.Render(IconFile(assets, IconSpeaker, IconColorWhite), "", "")
	require.NoError(t, err)

	touch := func(name string, age time.Duration) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		ts := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(p, ts, ts))
		return p
	}

	week := 7 * 24 * time.Hour
	oldEntry := touch("icon_aaaaaaaaaaaa.png", week+time.Hour)
	youngEntry := touch("icon_bbbbbbbbbbbb.png", time.Hour)
	oldTemp := touch(".icon_cccccccccccc.png.1234.tmp", week+time.Hour)
	unrelated := touch("notes.txt", week+time.Hour)

	old := time.Now().Add(-week - time.Hour)
	require.NoError(t, os.Chtimes(referenced, old, old))

	assert.Equal(t, 2, c.Sweep())

	assert.NoFileExists(t, oldEntry)
	assert.NoFileExists(t, oldTemp)
	assert.FileExists(t, youngEntry)
	assert.FileExists(t, unrelated)
	assert.FileExists(t, referenced, "referenced entries survive regardless of age")
	assert.Equal(t, 2, c.Stats().Removed)
}

func TestIconCache_MissingAssetUsesPlaceholder(t *testing.T) {
	c := newTestCache(t, t.TempDir())

	p, err := c.Render(filepath.Join(t.TempDir(), "speaker_w.png"), "", "")
	require.NoError(t, err)

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, canvasSize, canvasSize), img.Bounds())

	// Center of the main icon is opaque; the corners are empty.
	_, _, _, a := img.At(canvasSize/2, canvasSize/2+mainIconOffset).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = img.At(0, 0).RGBA()
	assert.Zero(t, a)
}

func TestComposeIcon_SideIconsTranslucent(t *testing.T) {
	assets := newTestAssets(t)
	img := composeIcon(
		IconFile(assets, IconSpeaker, IconColorBlack),
		IconFile(assets, IconHeadphones, IconColorBlack),
		IconFile(assets, IconAirPods, IconColorBlack),
		discardLogger(),
	)

	prev := img.NRGBAAt(sideIconMargin+sideIconSize/2, sideIconMargin+2)
	next := img.NRGBAAt(canvasSize-sideIconMargin-sideIconSize/2, sideIconMargin+2)
	assert.InDelta(t, sideIconAlpha, int(prev.A), 2)
	assert.InDelta(t, sideIconAlpha, int(next.A), 2)
}
