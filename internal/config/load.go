package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/bdougie/videoprobe/internal/errdefs"
)

// Settings are process-level settings read from the environment
type Settings struct {
	FFmpegPath    string `env:"FFMPEG_PATH"    envDefault:"ffmpeg"`
	FFprobePath   string `env:"FFPROBE_PATH"   envDefault:"ffprobe"`
	TesseractPath string `env:"TESSERACT_PATH" envDefault:"tesseract"`
	OllamaModel   string `env:"OLLAMA_MODEL"   envDefault:"llama3.2-vision:11b"`
	Classifier    bool   `env:"CLASSIFIER"     envDefault:"false"`
	WorkRoot      string `env:"WORK_ROOT"`

	ConfigFile  string `env:"CONFIG_FILE"`
	MonitorFile string `env:"MONITOR_FILE"`
	ReportDir   string `env:"REPORT_DIR"   envDefault:"reports"`
	DatabaseURL string `env:"DATABASE_URL"`

	ListenAddr   string `env:"LISTEN_ADDR"   envDefault:":8080"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
}

// LoadEnv parses VIDEOPROBE_-prefixed environment variables.
func LoadEnv() (*Settings, error) {
	s := &Settings{}
	if err := env.ParseWithOptions(s, env.Options{Prefix: "VIDEOPROBE_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return s, nil
}

// Defaults returns the built-in configuration adjusted for these settings.
func (s *Settings) Defaults() Config {
	cfg := Defaults()
	cfg.FFmpeg.FFmpegPath = s.FFmpegPath
	cfg.FFmpeg.FFprobePath = s.FFprobePath
	cfg.ImgNumberOCR.Binary = s.TesseractPath
	cfg.ClassifyObjects.Model = s.OllamaModel
	if s.WorkRoot != "" {
		cfg.ExtractFrames.Workspace = s.WorkRoot + "/frames"
		cfg.ImgCropper.Workspace = s.WorkRoot + "/ocr"
		cfg.RecordVideo.OutputDir = s.WorkRoot + "/recordings"
	}
	return cfg
}

// LoadOverrides reads an overrides file (YAML, JSON or TOML) with viper.
// Values can be overridden by VIDEOPROBE_<BLOCK>_<KEY> variables.
func LoadOverrides(path string) (*Overrides, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("VIDEOPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, &errdefs.ValidationError{Field: "config", Reason: fmt.Sprintf("read %s: %v", path, err)}
	}
	var o Overrides
	if err := v.Unmarshal(&o); err != nil {
		return nil, &errdefs.ValidationError{Field: "config", Reason: fmt.Sprintf("decode %s: %v", path, err)}
	}
	return &o, nil
}

// ParseOverrides decodes overrides JSON, rejecting unknown blocks and keys.
func ParseOverrides(data []byte) (*Overrides, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var o Overrides
	if err := dec.Decode(&o); err != nil {
		return nil, &errdefs.ValidationError{Field: "config", Reason: err.Error()}
	}
	return &o, nil
}
