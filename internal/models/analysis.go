package models

// Analysis names one top-level analysis
type Analysis string

const (
	MetaDataAnalysis             Analysis = "metaData"
	VmafMotionAvgAnalysis        Analysis = "vmafMotionAvg"
	DetectBlacknessAnalysis      Analysis = "detectBlackness"
	DetectFreezesAnalysis        Analysis = "detectFreezes"
	DetectSilentPartsAnalysis    Analysis = "detectSilentParts"
	MeasureBitplaneNoiseAnalysis Analysis = "measureBitplaneNoise"
	MeasureEntropyAnalysis       Analysis = "measureEntropy"
	ExtractFramesAnalysis        Analysis = "extractFrames"
	RecordVideoAnalysis          Analysis = "recordVideo"
)

// AllAnalyses lists every analysis in a fixed order.
var AllAnalyses = []Analysis{
	MetaDataAnalysis,
	VmafMotionAvgAnalysis,
	DetectBlacknessAnalysis,
	DetectFreezesAnalysis,
	DetectSilentPartsAnalysis,
	MeasureBitplaneNoiseAnalysis,
	MeasureEntropyAnalysis,
	ExtractFramesAnalysis,
	RecordVideoAnalysis,
}

var reportKeys = map[Analysis]string{
	MetaDataAnalysis:             "metaData",
	VmafMotionAvgAnalysis:        "vmafMotionAvg",
	DetectBlacknessAnalysis:      "blackParts",
	DetectFreezesAnalysis:        "freezeParts",
	DetectSilentPartsAnalysis:    "silentParts",
	MeasureBitplaneNoiseAnalysis: "bitplaneNoise",
	MeasureEntropyAnalysis:       "entropy",
	ExtractFramesAnalysis:        "frames",
	RecordVideoAnalysis:          "recordedVideo",
}

// ReportKey returns the key the analysis result is stored under.
func (a Analysis) ReportKey() string {
	return reportKeys[a]
}
