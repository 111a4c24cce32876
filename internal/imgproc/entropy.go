package imgproc

import (
	"fmt"
	"math"

	"github.com/disintegration/imaging"
)

// Entropy returns the Shannon entropy, in bits, of the differences between
// horizontally adjacent pixels of the grayscale image.
func Entropy(path string) (float64, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	// differences range over -255..255
	var hist [511]uint64
	var total uint64
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		for x := 0; x < w-1; x++ {
			d := int(row[(x+1)*4]) - int(row[x*4])
			hist[d+255]++
			total++
		}
	}
	if total == 0 {
		return 0, nil
	}

	var e float64
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		e -= p * math.Log2(p)
	}
	return e, nil
}
