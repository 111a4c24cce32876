package analyzer

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/ffmpeg"
)

// OCR recognises the text in an image
type OCR interface {
	Recognize(ctx context.Context, imagePath string, cfg config.OCRConfig) (string, error)
}

// TesseractOCR runs the tesseract command line tool
type TesseractOCR struct {
	runner ffmpeg.Runner
}

// NewTesseractOCR uses runner to invoke tesseract.
func NewTesseractOCR(runner ffmpeg.Runner) *TesseractOCR {
	return &TesseractOCR{runner: runner}
}

// Recognize returns the recognised text, reduced to digits when configured.
func (t *TesseractOCR) Recognize(ctx context.Context, imagePath string, cfg config.OCRConfig) (string, error) {
	args := []string{
		imagePath, "stdout",
		"-l", cfg.Lang,
		"--oem", strconv.Itoa(cfg.OEM),
		"--psm", strconv.Itoa(cfg.PSM),
	}
	out, err := t.runner.Run(ctx, args)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(out.Stdout))
	if cfg.StripNonDigits {
		text = digitsOnly(text)
	}
	return text, nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
}
