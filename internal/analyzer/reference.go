package analyzer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bdougie/videoprobe/internal/errdefs"
)

var numericToken = regexp.MustCompile(`\d+`)

// FindReferenceImage returns the file in dir whose name contains a numeric
// token equal to number, ignoring leading zeros. When several files match,
// the lexicographically first wins. An empty number or no match returns
// ErrMissingReferenceImage.
func FindReferenceImage(dir, number string, logger *slog.Logger) (string, error) {
	want := normalizeNumber(number)
	if want == "" {
		return "", fmt.Errorf("empty frame number: %w", errdefs.ErrMissingReferenceImage)
	}

	// os.ReadDir returns entries sorted by name
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read reference dir %s: %w", dir, err)
	}

	var matches []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		for _, tok := range numericToken.FindAllString(stem, -1) {
			if normalizeNumber(tok) == want {
				matches = append(matches, e.Name())
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("frame number %s in %s: %w", number, dir, errdefs.ErrMissingReferenceImage)
	case 1:
	default:
		logger.Warn("several reference images match frame number, using the first",
			"number", number, "matches", matches)
	}
	return filepath.Join(dir, matches[0]), nil
}

func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
