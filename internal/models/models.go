package models

import "encoding/json"

// WorkItem represents a frame queued for per-frame analysis
type WorkItem struct {
	FramePath string
	FrameNum  int
	Total     int
}

// FrameRecord is the aggregated result of all enabled per-frame sub-analyses.
// Fields for disabled sub-analyses stay nil and are omitted from JSON.
type FrameRecord struct {
	FrameIndex      int            `json:"frameIndex"`
	Frame           string         `json:"frame"`
	OCRNumber       *string        `json:"ocrNumber,omitempty"`
	Classification  []Prediction   `json:"classification,omitempty"`
	Diff            *DiffOutcome   `json:"diffResult,omitempty"`
	ImageMetaData   *ImageMetaData `json:"imageMetaData,omitempty"`
	DominantColours []Colour       `json:"dominantColours,omitempty"`
	Entropy         *float64       `json:"entropy,omitempty"`
	// Features is the colour feature vector computed while the frame file
	// still exists. It is persisted by the database store, not reported.
	Features []float32 `json:"-"`
}

// Prediction is a single label returned by the classification capability
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// DiffResult describes the pixel difference between a reference image and a frame
type DiffResult struct {
	ReferenceImage  string  `json:"referenceImage"`
	Frame           string  `json:"frame"`
	OCRNumberImage  string  `json:"ocrNumberImage,omitempty"`
	Equality        float64 `json:"equality"`
	IsEqual         bool    `json:"isEqual"`
	Raw             string  `json:"raw"`
	DifferenceImage string  `json:"differenceImage,omitempty"`
}

// DiffOutcome wraps a DiffResult so that "enabled but no reference image"
// serialises as null while "not enabled" is omitted entirely.
type DiffOutcome struct {
	Result *DiffResult
}

// MarshalJSON encodes the wrapped result or null.
func (d DiffOutcome) MarshalJSON() ([]byte, error) {
	if d.Result == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Result)
}

// UnmarshalJSON decodes a result or null.
func (d *DiffOutcome) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		d.Result = nil
		return nil
	}
	var r DiffResult
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	d.Result = &r
	return nil
}

// ImageMetaData holds basic facts about an image file
type ImageMetaData struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// Colour is one dominant colour of an image
type Colour struct {
	Hex   string `json:"hex"`
	R     uint32 `json:"r"`
	G     uint32 `json:"g"`
	B     uint32 `json:"b"`
	Count int    `json:"count"`
}
