package models

import "time"

// Report is the sparse result of one analysis request. A field is set iff
// its analysis was requested and the request succeeded.
type Report struct {
	MetaData      *MetaData      `json:"metaData,omitempty"`
	VmafMotionAvg *float64       `json:"vmafMotionAvg,omitempty"`
	BlackParts    *EventResult   `json:"blackParts,omitempty"`
	FreezeParts   *EventResult   `json:"freezeParts,omitempty"`
	SilentParts   *EventResult   `json:"silentParts,omitempty"`
	BitplaneNoise *MetricSeries  `json:"bitplaneNoise,omitempty"`
	Entropy       *MetricSeries  `json:"entropy,omitempty"`
	Frames        []FrameRecord  `json:"frames,omitempty"`
	RecordedVideo *RecordedVideo `json:"recordedVideo,omitempty"`
}

// Keys returns the report keys that are present.
func (r *Report) Keys() []string {
	var keys []string
	for _, a := range AllAnalyses {
		if r.has(a) {
			keys = append(keys, a.ReportKey())
		}
	}
	return keys
}

func (r *Report) has(a Analysis) bool {
	switch a {
	case MetaDataAnalysis:
		return r.MetaData != nil
	case VmafMotionAvgAnalysis:
		return r.VmafMotionAvg != nil
	case DetectBlacknessAnalysis:
		return r.BlackParts != nil
	case DetectFreezesAnalysis:
		return r.FreezeParts != nil
	case DetectSilentPartsAnalysis:
		return r.SilentParts != nil
	case MeasureBitplaneNoiseAnalysis:
		return r.BitplaneNoise != nil
	case MeasureEntropyAnalysis:
		return r.Entropy != nil
	case ExtractFramesAnalysis:
		return r.Frames != nil
	case RecordVideoAnalysis:
		return r.RecordedVideo != nil
	}
	return false
}

// MetaData is the probe result for a video source
type MetaData struct {
	Filename   string       `json:"filename"`
	FormatName string       `json:"formatName"`
	Duration   float64      `json:"duration"`
	Size       string       `json:"size,omitempty"`
	BitRate    string       `json:"bitRate,omitempty"`
	Streams    []StreamInfo `json:"streams"`
}

// StreamInfo summarises one stream of the probed source
type StreamInfo struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codecType"`
	CodecName  string `json:"codecName"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FrameRate  string `json:"frameRate,omitempty"`
	SampleRate string `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// RecordedVideo points at a copy of the source saved to disk
type RecordedVideo struct {
	Source     string    `json:"source"`
	SavedVideo string    `json:"savedVideo"`
	RecordedAt time.Time `json:"recordedAt"`
}
