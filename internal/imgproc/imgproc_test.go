package imgproc

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videoprobe/internal/config"
)

func writePNG(t *testing.T, path string, w, h int, fill func(x, y int) color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func solid(c color.Color) func(int, int) color.Color {
	return func(int, int) color.Color { return c }
}

func quadrants(x, y int) color.Color {
	switch {
	case x < 50 && y < 50:
		return color.NRGBA{R: 255, A: 255}
	case x >= 50 && y < 50:
		return color.NRGBA{G: 255, A: 255}
	case x < 50:
		return color.NRGBA{B: 255, A: 255}
	default:
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
}

func TestCropRectPresets(t *testing.T) {
	c := config.CropperConfig{Rectangle: "top-left"}
	assert.Equal(t, image.Rect(0, 0, 70, 30), CropRect(1000, 1000, c))

	c.Rectangle = "bottom-right"
	assert.Equal(t, image.Rect(930, 970, 1000, 1000), CropRect(1000, 1000, c))

	c.Rectangle = "bottom-left"
	assert.Equal(t, image.Rect(0, 970, 70, 1000), CropRect(1000, 1000, c))

	c = config.CropperConfig{Rectangle: "top-right", Width: 100, Height: 40}
	assert.Equal(t, image.Rect(900, 0, 1000, 40), CropRect(1000, 1000, c))
}

func TestCropRectExplicitIsClamped(t *testing.T) {
	c := config.CropperConfig{Left: 90, Top: 90, Width: 50, Height: 50}
	assert.Equal(t, image.Rect(90, 90, 100, 100), CropRect(100, 100, c))
}

func TestCropForOCRExtendsCanvas(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, filepath.Join(dir, "frame_0001.png"), 200, 100, quadrants)
	out := filepath.Join(dir, "ocr")
	require.NoError(t, os.Mkdir(out, 0755))

	dst, err := CropForOCR(src, out, config.CropperConfig{Width: 20, Height: 10, Threshold: 128})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "frame_0001.png"), dst)

	md, err := MetaData(dst)
	require.NoError(t, err)
	assert.Equal(t, 80, md.Width)
	assert.Equal(t, 40, md.Height)
}

func TestCropForOCROutsideFrame(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, filepath.Join(dir, "f.png"), 10, 10, solid(color.White))
	_, err := CropForOCR(src, dir, config.CropperConfig{Left: 50, Top: 50, Width: 5, Height: 5})
	assert.Error(t, err)
}

func TestDiffIdentical(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, filepath.Join(dir, "a.png"), 100, 100, quadrants)
	b := writePNG(t, filepath.Join(dir, "b.png"), 100, 100, quadrants)

	res, err := Diff(a, b, DiffOptions{Tolerance: 0.01})
	require.NoError(t, err)
	assert.Zero(t, res.Equality)
	assert.True(t, res.IsEqual)
	assert.Contains(t, res.Raw, "Total: 0.0000000000")
	assert.Empty(t, res.DifferenceImage)
}

func TestDiffOpposite(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, filepath.Join(dir, "black.png"), 20, 20, solid(color.Black))
	b := writePNG(t, filepath.Join(dir, "frame_0003.png"), 40, 40, solid(color.White))

	res, err := Diff(a, b, DiffOptions{Tolerance: 0.4, DifferenceImage: filepath.Join(dir, "diff.png")})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Equality, 1e-9)
	assert.False(t, res.IsEqual)
	assert.Equal(t, filepath.Join(dir, "frame_0003_diff.png"), res.DifferenceImage)
	assert.FileExists(t, res.DifferenceImage)
}

func TestEntropy(t *testing.T) {
	dir := t.TempDir()
	flat := writePNG(t, filepath.Join(dir, "flat.png"), 32, 32, solid(color.Gray{Y: 90}))
	e, err := Entropy(flat)
	require.NoError(t, err)
	assert.Zero(t, e)

	// alternating columns give two equally likely differences: one bit
	stripes := writePNG(t, filepath.Join(dir, "stripes.png"), 33, 8, func(x, _ int) color.Color {
		if x%2 == 0 {
			return color.Black
		}
		return color.White
	})
	e, err = Entropy(stripes)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e, 1e-9)
	assert.False(t, math.IsNaN(e))
}

func TestDominantColours(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, filepath.Join(dir, "q.png"), 100, 100, quadrants)
	colours, err := DominantColours(src, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, colours)
	assert.LessOrEqual(t, len(colours), 3)
	for _, c := range colours {
		assert.Len(t, c.Hex, 7)
	}
}

func TestMetaData(t *testing.T) {
	src := writePNG(t, filepath.Join(t.TempDir(), "m.png"), 64, 48, solid(color.White))
	md, err := MetaData(src)
	require.NoError(t, err)
	assert.Equal(t, "png", md.Format)
	assert.Equal(t, 64, md.Width)
	assert.Equal(t, 48, md.Height)
	assert.Positive(t, md.Size)
}
