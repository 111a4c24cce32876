package imgproc

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/bdougie/videoprobe/internal/models"
)

// DiffOptions controls Diff
type DiffOptions struct {
	// Tolerance is the largest equality value still reported as equal.
	Tolerance float64
	// DifferenceImage, when set, is a path template for a highlighted
	// difference image; the frame's base name is prefixed to the file name.
	DifferenceImage string
}

// Diff compares frame against reference. Equality is the normalised mean
// squared error over the RGB channels, 0 for identical images and 1 for
// maximally different ones. A frame of a different size is resized to the
// reference first.
func Diff(reference, frame string, opts DiffOptions) (models.DiffResult, error) {
	ref, err := imaging.Open(reference)
	if err != nil {
		return models.DiffResult{}, fmt.Errorf("open reference %s: %w", reference, err)
	}
	img, err := imaging.Open(frame)
	if err != nil {
		return models.DiffResult{}, fmt.Errorf("open frame %s: %w", frame, err)
	}

	a := imaging.Clone(ref)
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	var b *image.NRGBA
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		b = imaging.Resize(img, w, h, imaging.Linear)
	} else {
		b = imaging.Clone(img)
	}

	var sum float64
	var changed int
	for i := 0; i < len(a.Pix); i += 4 {
		px := 0.0
		for c := 0; c < 3; c++ {
			d := float64(a.Pix[i+c]) - float64(b.Pix[i+c])
			px += d * d
		}
		if px > 0 {
			changed++
		}
		sum += px
	}
	pixels := w * h
	equality := 0.0
	if pixels > 0 {
		equality = sum / (float64(pixels) * 3 * 255 * 255)
	}

	res := models.DiffResult{
		ReferenceImage: reference,
		Frame:          frame,
		Equality:       equality,
		IsEqual:        equality <= opts.Tolerance,
		Raw: fmt.Sprintf("Image Difference (MeanSquaredError):\n  Size: %dx%d\n  Changed pixels: %d\n  Total: %.10f",
			w, h, changed, equality),
	}

	if opts.DifferenceImage != "" {
		dst := differencePath(frame, opts.DifferenceImage)
		if err := imaging.Save(highlight(a, b), dst); err != nil {
			return models.DiffResult{}, fmt.Errorf("save difference image %s: %w", dst, err)
		}
		res.DifferenceImage = dst
	}
	return res, nil
}

func differencePath(frame, template string) string {
	base := strings.TrimSuffix(filepath.Base(frame), filepath.Ext(frame))
	return filepath.Join(filepath.Dir(template), base+"_"+filepath.Base(template))
}

// highlight renders a faded reference with differing pixels in red.
func highlight(a, b *image.NRGBA) *image.NRGBA {
	out := imaging.AdjustFunc(imaging.Grayscale(a), func(c color.NRGBA) color.NRGBA {
		v := uint8(191 + int(c.R)/4)
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})
	red := color.NRGBA{R: 241, G: 0, B: 30, A: 255}
	for i := 0; i < len(a.Pix); i += 4 {
		if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] || a.Pix[i+2] != b.Pix[i+2] {
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = red.R, red.G, red.B, red.A
		}
	}
	return out
}
