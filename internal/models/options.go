package models

import (
	"bytes"
	"encoding/json"

	"github.com/bdougie/videoprobe/internal/errdefs"
)

// Options selects which analyses run for a request.
// A nil or zero Options is a metadata-only request.
type Options struct {
	MetaData             bool          `json:"metaData,omitempty"`
	VmafMotionAvg        bool          `json:"vmafMotionAvg,omitempty"`
	DetectBlackness      bool          `json:"detectBlackness,omitempty"`
	DetectFreezes        bool          `json:"detectFreezes,omitempty"`
	DetectSilentParts    bool          `json:"detectSilentParts,omitempty"`
	MeasureBitplaneNoise bool          `json:"measureBitplaneNoise,omitempty"`
	MeasureEntropy       bool          `json:"measureEntropy,omitempty"`
	ExtractFrames        *FrameOptions `json:"extractFrames,omitempty"`
	RecordVideo          bool          `json:"recordVideo,omitempty"`
}

// FrameOptions selects the per-frame sub-analyses
type FrameOptions struct {
	ClassifyObjects    bool `json:"classifyObjects,omitempty"`
	ImgNumberOCR       bool `json:"imgNumberOcr,omitempty"`
	DiffImg            bool `json:"diffImg,omitempty"`
	ImgMetaData        bool `json:"imgMetaData,omitempty"`
	ImgDominantColours bool `json:"imgDominantColours,omitempty"`
	ImgEntropy         bool `json:"imgEntropy,omitempty"`
}

// NeedsOCR reports whether any enabled sub-analysis needs the OCR identity.
func (f *FrameOptions) NeedsOCR() bool {
	return f != nil && (f.ImgNumberOCR || f.DiffImg)
}

// Enabled reports whether the given analysis is selected.
func (o *Options) Enabled(a Analysis) bool {
	if o == nil {
		return false
	}
	switch a {
	case MetaDataAnalysis:
		return o.MetaData
	case VmafMotionAvgAnalysis:
		return o.VmafMotionAvg
	case DetectBlacknessAnalysis:
		return o.DetectBlackness
	case DetectFreezesAnalysis:
		return o.DetectFreezes
	case DetectSilentPartsAnalysis:
		return o.DetectSilentParts
	case MeasureBitplaneNoiseAnalysis:
		return o.MeasureBitplaneNoise
	case MeasureEntropyAnalysis:
		return o.MeasureEntropy
	case ExtractFramesAnalysis:
		return o.ExtractFrames != nil
	case RecordVideoAnalysis:
		return o.RecordVideo
	}
	return false
}

// IsEmpty reports whether no analysis is selected.
func (o *Options) IsEmpty() bool {
	for _, a := range AllAnalyses {
		if o.Enabled(a) {
			return false
		}
	}
	return true
}

// ParseOptions decodes options JSON, rejecting unknown fields.
func ParseOptions(data []byte) (*Options, error) {
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var opts Options
	if err := dec.Decode(&opts); err != nil {
		return nil, &errdefs.ValidationError{Field: "options", Reason: err.Error()}
	}
	return &opts, nil
}
