package imgproc

import (
	"fmt"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/disintegration/imaging"

	"github.com/bdougie/videoprobe/internal/models"
)

// DominantColours returns up to k dominant colours found by k-means.
func DominantColours(path string, k int) ([]models.Colour, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	items, err := prominentcolor.KmeansWithAll(k, img, prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, nil)
	if err != nil {
		return nil, fmt.Errorf("kmeans %s: %w", path, err)
	}
	colours := make([]models.Colour, 0, len(items))
	for _, it := range items {
		colours = append(colours, models.Colour{
			Hex:   "#" + it.AsString(),
			R:     it.Color.R,
			G:     it.Color.G,
			B:     it.Color.B,
			Count: it.Cnt,
		})
	}
	return colours, nil
}
