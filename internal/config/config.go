// Package config resolves the effective configuration of an analysis request.
package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultMaxOutput caps each captured stream of an external process.
	DefaultMaxOutput = 10 * 1024 * 1024
	DefaultModel     = "llama3.2-vision:11b"
)

// Config is the resolved configuration for a single request. It holds only
// value fields, so copies never share state.
type Config struct {
	FFmpeg             FFmpegConfig        `json:"ffmpeg" mapstructure:"ffmpeg"`
	VmafMotionAvg      TimedConfig         `json:"vmafMotionAvg" mapstructure:"vmafMotionAvg"`
	DetectBlackness    TimedConfig         `json:"detectBlackness" mapstructure:"detectBlackness"`
	DetectFreezes      TimedConfig         `json:"detectFreezes" mapstructure:"detectFreezes"`
	DetectSilentParts  TimedConfig         `json:"detectSilentParts" mapstructure:"detectSilentParts"`
	BitplaneNoise      SampledConfig       `json:"bitplaneNoise" mapstructure:"bitplaneNoise"`
	Entropy            SampledConfig       `json:"entropy" mapstructure:"entropy"`
	ExtractFrames      ExtractFramesConfig `json:"extractFrames" mapstructure:"extractFrames"`
	ImgCropper         CropperConfig       `json:"imgCropper" mapstructure:"imgCropper"`
	ImgNumberOCR       OCRConfig           `json:"imgNumberOcr" mapstructure:"imgNumberOcr"`
	DiffImg            DiffConfig          `json:"diffImg" mapstructure:"diffImg"`
	ClassifyObjects    ClassifierConfig    `json:"classifyObjects" mapstructure:"classifyObjects"`
	ImgDominantColours ColoursConfig       `json:"imgDominantColours" mapstructure:"imgDominantColours"`
	RecordVideo        RecordConfig        `json:"recordVideo" mapstructure:"recordVideo"`
	KeepWorkspaces     bool                `json:"keepWorkspaces" mapstructure:"keepWorkspaces"`
}

// FFmpegConfig describes how external multimedia processes are invoked
type FFmpegConfig struct {
	FFmpegPath  string        `json:"ffmpegPath" mapstructure:"ffmpegPath" validate:"required"`
	FFprobePath string        `json:"ffprobePath" mapstructure:"ffprobePath" validate:"required"`
	MaxOutput   int           `json:"maxOutput" mapstructure:"maxOutput" validate:"min=1024"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout" validate:"min=0"`
}

// TimedConfig limits an analysis to the first TimeLength seconds; zero means the whole source.
type TimedConfig struct {
	TimeLength int `json:"timeLength" mapstructure:"timeLength" validate:"min=0"`
}

// SampledConfig is a TimedConfig with a sampling frame rate
type SampledConfig struct {
	TimeLength int    `json:"timeLength" mapstructure:"timeLength" validate:"min=0"`
	FrameRate  string `json:"frameRate" mapstructure:"frameRate" validate:"framerate"`
}

// ExtractFramesConfig drives frame splitting
type ExtractFramesConfig struct {
	TimeLength  int    `json:"timeLength" mapstructure:"timeLength" validate:"min=0"`
	FrameRate   string `json:"frameRate" mapstructure:"frameRate" validate:"framerate"`
	ImgFormat   string `json:"imgFormat" mapstructure:"imgFormat" validate:"oneof=jpg png"`
	Quality     int    `json:"quality" mapstructure:"quality" validate:"min=0,max=31"`
	Workspace   string `json:"workspace" mapstructure:"workspace" validate:"required"`
	Parallelism int    `json:"parallelism" mapstructure:"parallelism" validate:"min=1"`
}

// CropperConfig locates the frame-number region used for OCR.
// Explicit Width and Height win over the Rectangle preset.
type CropperConfig struct {
	Rectangle string `json:"rectangle" mapstructure:"rectangle" validate:"omitempty,oneof=top-left bottom-left bottom-right top-right"`
	Left      int    `json:"left" mapstructure:"left" validate:"min=0"`
	Top       int    `json:"top" mapstructure:"top" validate:"min=0"`
	Width     int    `json:"width" mapstructure:"width" validate:"min=0"`
	Height    int    `json:"height" mapstructure:"height" validate:"min=0"`
	Threshold int    `json:"threshold" mapstructure:"threshold" validate:"min=0,max=255"`
	Workspace string `json:"workspace" mapstructure:"workspace" validate:"required"`
}

// HasGeometry reports whether a crop region is defined.
func (c CropperConfig) HasGeometry() bool {
	return c.Rectangle != "" || (c.Width > 0 && c.Height > 0)
}

// OCRConfig holds tesseract parameters
type OCRConfig struct {
	Binary         string `json:"binary" mapstructure:"binary" validate:"required"`
	Lang           string `json:"lang" mapstructure:"lang" validate:"required"`
	OEM            int    `json:"oem" mapstructure:"oem" validate:"min=0,max=3"`
	PSM            int    `json:"psm" mapstructure:"psm" validate:"min=0,max=13"`
	StripNonDigits bool   `json:"stripNonDigits" mapstructure:"stripNonDigits"`
}

// DiffConfig controls reference-image diffing. DifferenceImage is a file
// path template; the frame name is prefixed to its base name. Empty disables it.
type DiffConfig struct {
	ReferenceDir    string  `json:"referenceDir" mapstructure:"referenceDir"`
	Tolerance       float64 `json:"tolerance" mapstructure:"tolerance" validate:"min=0,max=1"`
	DifferenceImage string  `json:"differenceImage" mapstructure:"differenceImage"`
}

// ClassifierConfig selects the vision model
type ClassifierConfig struct {
	Model          string `json:"model" mapstructure:"model" validate:"required"`
	Prompt         string `json:"prompt" mapstructure:"prompt"`
	MaxPredictions int    `json:"maxPredictions" mapstructure:"maxPredictions" validate:"min=1"`
}

// ColoursConfig sets the number of dominant colours to extract
type ColoursConfig struct {
	K int `json:"k" mapstructure:"k" validate:"min=1,max=16"`
}

// RecordConfig controls saving a copy of the source
type RecordConfig struct {
	TimeLength int    `json:"timeLength" mapstructure:"timeLength" validate:"min=0"`
	OutputDir  string `json:"outputDir" mapstructure:"outputDir" validate:"required"`
}

// Defaults returns a fresh copy of the built-in configuration.
func Defaults() Config {
	root := filepath.Join(os.TempDir(), "videoprobe")
	return Config{
		FFmpeg: FFmpegConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			MaxOutput:   DefaultMaxOutput,
			Timeout:     10 * time.Minute,
		},
		VmafMotionAvg:     TimedConfig{TimeLength: 5},
		DetectBlackness:   TimedConfig{TimeLength: 5},
		DetectFreezes:     TimedConfig{TimeLength: 5},
		DetectSilentParts: TimedConfig{TimeLength: 5},
		BitplaneNoise:     SampledConfig{TimeLength: 5, FrameRate: "1"},
		Entropy:           SampledConfig{TimeLength: 5, FrameRate: "1"},
		ExtractFrames: ExtractFramesConfig{
			TimeLength:  5,
			FrameRate:   "1",
			ImgFormat:   "jpg",
			Quality:     2,
			Workspace:   filepath.Join(root, "frames"),
			Parallelism: 4,
		},
		ImgCropper: CropperConfig{
			Workspace: filepath.Join(root, "ocr"),
		},
		ImgNumberOCR: OCRConfig{
			Binary:         "tesseract",
			Lang:           "eng",
			OEM:            1,
			PSM:            7,
			StripNonDigits: true,
		},
		DiffImg: DiffConfig{Tolerance: 0.4},
		ClassifyObjects: ClassifierConfig{
			Model:          DefaultModel,
			MaxPredictions: 5,
		},
		ImgDominantColours: ColoursConfig{K: 3},
		RecordVideo: RecordConfig{
			TimeLength: 5,
			OutputDir:  filepath.Join(root, "recordings"),
		},
	}
}

// Overrides carries caller-supplied configuration blocks. A nil block keeps the default.
type Overrides struct {
	FFmpeg             *FFmpegConfig        `json:"ffmpeg,omitempty" mapstructure:"ffmpeg"`
	VmafMotionAvg      *TimedConfig         `json:"vmafMotionAvg,omitempty" mapstructure:"vmafMotionAvg"`
	DetectBlackness    *TimedConfig         `json:"detectBlackness,omitempty" mapstructure:"detectBlackness"`
	DetectFreezes      *TimedConfig         `json:"detectFreezes,omitempty" mapstructure:"detectFreezes"`
	DetectSilentParts  *TimedConfig         `json:"detectSilentParts,omitempty" mapstructure:"detectSilentParts"`
	BitplaneNoise      *SampledConfig       `json:"bitplaneNoise,omitempty" mapstructure:"bitplaneNoise"`
	Entropy            *SampledConfig       `json:"entropy,omitempty" mapstructure:"entropy"`
	ExtractFrames      *ExtractFramesConfig `json:"extractFrames,omitempty" mapstructure:"extractFrames"`
	ImgCropper         *CropperConfig       `json:"imgCropper,omitempty" mapstructure:"imgCropper"`
	ImgNumberOCR       *OCRConfig           `json:"imgNumberOcr,omitempty" mapstructure:"imgNumberOcr"`
	DiffImg            *DiffConfig          `json:"diffImg,omitempty" mapstructure:"diffImg"`
	ClassifyObjects    *ClassifierConfig    `json:"classifyObjects,omitempty" mapstructure:"classifyObjects"`
	ImgDominantColours *ColoursConfig       `json:"imgDominantColours,omitempty" mapstructure:"imgDominantColours"`
	RecordVideo        *RecordConfig        `json:"recordVideo,omitempty" mapstructure:"recordVideo"`
	KeepWorkspaces     *bool                `json:"keepWorkspaces,omitempty" mapstructure:"keepWorkspaces"`
}

// Resolve merges overrides onto defaults one level deep: every supplied
// block replaces the matching default block as a whole. Neither argument
// is modified.
func Resolve(defaults Config, o *Overrides) Config {
	cfg := defaults
	if o == nil {
		return cfg
	}
	setBlock(&cfg.FFmpeg, o.FFmpeg)
	setBlock(&cfg.VmafMotionAvg, o.VmafMotionAvg)
	setBlock(&cfg.DetectBlackness, o.DetectBlackness)
	setBlock(&cfg.DetectFreezes, o.DetectFreezes)
	setBlock(&cfg.DetectSilentParts, o.DetectSilentParts)
	setBlock(&cfg.BitplaneNoise, o.BitplaneNoise)
	setBlock(&cfg.Entropy, o.Entropy)
	setBlock(&cfg.ExtractFrames, o.ExtractFrames)
	setBlock(&cfg.ImgCropper, o.ImgCropper)
	setBlock(&cfg.ImgNumberOCR, o.ImgNumberOCR)
	setBlock(&cfg.DiffImg, o.DiffImg)
	setBlock(&cfg.ClassifyObjects, o.ClassifyObjects)
	setBlock(&cfg.ImgDominantColours, o.ImgDominantColours)
	setBlock(&cfg.RecordVideo, o.RecordVideo)
	setBlock(&cfg.KeepWorkspaces, o.KeepWorkspaces)
	return cfg
}

func setBlock[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
