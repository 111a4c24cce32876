// Package errdefs defines the error taxonomy shared by the analysis pipeline.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingReferenceImage means no reference image matched a frame's OCR number.
// It is absorbed per frame and becomes a null diff result.
var ErrMissingReferenceImage = errors.New("missing reference image")

// ValidationError reports malformed options or configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err contains a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// InputError reports an unreachable or unsupported source.
type InputError struct {
	Input string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %q: %v", e.Input, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInput reports whether err contains an InputError.
func IsInput(err error) bool {
	var e *InputError
	return errors.As(err, &e)
}

// ExternalToolError reports a failed external process. Stderr holds the
// captured diagnostic text.
type ExternalToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nOutput: " + tail(s, 2048)
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// IsExternalTool reports whether err contains an ExternalToolError.
func IsExternalTool(err error) bool {
	var e *ExternalToolError
	return errors.As(err, &e)
}

// WorkspaceError reports a failed directory operation.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// IsWorkspace reports whether err contains a WorkspaceError.
func IsWorkspace(err error) bool {
	var e *WorkspaceError
	return errors.As(err, &e)
}

// AnalysisError wraps the first failing top-level analysis of a request.
type AnalysisError struct {
	Analysis string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis %s failed: %v", e.Analysis, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// IsAnalysis reports whether err contains an AnalysisError.
func IsAnalysis(err error) bool {
	var e *AnalysisError
	return errors.As(err, &e)
}

// IsMissingReferenceImage reports whether err is ErrMissingReferenceImage.
func IsMissingReferenceImage(err error) bool {
	return errors.Is(err, ErrMissingReferenceImage)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
