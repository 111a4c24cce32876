// Package imgproc holds the image primitives used by per-frame analysis.
package imgproc

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/bdougie/videoprobe/internal/config"
)

// CropRect resolves the OCR region for a frame of the given size. With a
// rectangle preset, width and height default to 7% and 3% of the frame and
// the region is anchored to the named corner unless Left or Top are set.
func CropRect(frameW, frameH int, c config.CropperConfig) image.Rectangle {
	w, h := c.Width, c.Height
	left, top := c.Left, c.Top
	if c.Rectangle != "" {
		if w == 0 {
			w = frameW * 7 / 100
		}
		if h == 0 {
			h = frameH * 3 / 100
		}
		switch c.Rectangle {
		case "bottom-left":
			if top == 0 {
				top = frameH - h
			}
		case "bottom-right":
			if left == 0 {
				left = frameW - w
			}
			if top == 0 {
				top = frameH - h
			}
		case "top-right":
			if left == 0 {
				left = frameW - w
			}
		}
	}
	return image.Rect(left, top, left+w, top+h).Intersect(image.Rect(0, 0, frameW, frameH))
}

// CropForOCR crops the frame-number region of src, turns it into a sharpened
// black and white image and pads it with white above and to the right, which
// helps tesseract with single-line input. The result is written to dstDir
// under the source's base name and its path is returned.
func CropForOCR(src, dstDir string, c config.CropperConfig) (string, error) {
	img, err := imaging.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	b := img.Bounds()
	rect := CropRect(b.Dx(), b.Dy(), c).Add(b.Min)
	if rect.Empty() {
		return "", fmt.Errorf("crop region %v is outside %dx%d frame", rect, b.Dx(), b.Dy())
	}

	region := imaging.Grayscale(imaging.Crop(img, rect))
	region = imaging.Sharpen(normalize(region), 1.0)
	if c.Threshold > 0 {
		region = threshold(region, uint8(c.Threshold))
	}

	w, h := region.Bounds().Dx(), region.Bounds().Dy()
	canvas := imaging.New(w*4, h*4, color.White)
	canvas = imaging.Paste(canvas, region, image.Pt(0, h*3))

	dst := filepath.Join(dstDir, filepath.Base(src))
	if err := imaging.Save(canvas, dst); err != nil {
		return "", fmt.Errorf("save %s: %w", dst, err)
	}
	return dst, nil
}

// normalize stretches the luminance of a grayscale image to the full range.
func normalize(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(float64(c.R-lo) * scale)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func threshold(img *image.NRGBA, t uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(0)
		if c.R >= t {
			v = 255
		}
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}
