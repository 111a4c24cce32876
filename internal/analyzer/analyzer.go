// Package analyzer runs the per-frame sub-analyses of an extracted frame.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/imgproc"
	"github.com/bdougie/videoprobe/internal/models"
)

// ErrClassifierNotPrepared is returned when classification is requested
// without a prepared classifier.
var ErrClassifierNotPrepared = errors.New("classifier not prepared")

// FrameAnalyzer assembles a FrameRecord for one frame
type FrameAnalyzer struct {
	ocr        OCR
	classifier Classifier
	logger     *slog.Logger
}

// NewFrameAnalyzer creates a FrameAnalyzer. classifier may be nil when
// classification is never enabled.
func NewFrameAnalyzer(ocr OCR, classifier Classifier, logger *slog.Logger) *FrameAnalyzer {
	return &FrameAnalyzer{
		ocr:        ocr,
		classifier: classifier,
		logger:     logger,
	}
}

// AnalyzeFrame runs the enabled sub-analyses concurrently. OCR labeling and
// diffing share one goroutine because diffing needs the OCR number. Only the
// fields of enabled sub-analyses are set on the returned record.
func (a *FrameAnalyzer) AnalyzeFrame(ctx context.Context, framePath string, index int, opts *models.FrameOptions, cfg config.Config) (models.FrameRecord, error) {
	rec := models.FrameRecord{
		FrameIndex: index,
		Frame:      framePath,
	}
	if opts == nil {
		return rec, nil
	}
	logger := a.logger.With("frame", filepath.Base(framePath))

	var g errgroup.Group

	if opts.NeedsOCR() {
		g.Go(func() error {
			number, cropped, err := a.labelFrame(ctx, framePath, cfg)
			if err != nil {
				return fmt.Errorf("ocr: %w", err)
			}
			rec.OCRNumber = &number
			if !opts.DiffImg {
				return nil
			}
			diff, err := a.diffFrame(framePath, number, cropped, cfg, logger)
			if err != nil {
				return fmt.Errorf("diff: %w", err)
			}
			rec.Diff = diff
			return nil
		})
	}

	if opts.ClassifyObjects {
		g.Go(func() error {
			if a.classifier == nil {
				return ErrClassifierNotPrepared
			}
			preds, err := a.classifier.Classify(ctx, framePath)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}
			rec.Classification = preds
			return nil
		})
	}

	if opts.ImgMetaData {
		g.Go(func() error {
			md, err := imgproc.MetaData(framePath)
			if err != nil {
				return fmt.Errorf("image metadata: %w", err)
			}
			rec.ImageMetaData = md
			return nil
		})
	}

	if opts.ImgDominantColours {
		g.Go(func() error {
			colours, err := imgproc.DominantColours(framePath, cfg.ImgDominantColours.K)
			if err != nil {
				return fmt.Errorf("dominant colours: %w", err)
			}
			rec.DominantColours = colours
			return nil
		})
	}

	if opts.ImgEntropy {
		g.Go(func() error {
			e, err := imgproc.Entropy(framePath)
			if err != nil {
				return fmt.Errorf("image entropy: %w", err)
			}
			rec.Entropy = &e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.FrameRecord{}, fmt.Errorf("frame %d: %w", index, err)
	}
	logger.Debug("frame analyzed", "index", index)
	return rec, nil
}

// labelFrame crops the number region into the OCR workspace and reads it.
func (a *FrameAnalyzer) labelFrame(ctx context.Context, framePath string, cfg config.Config) (string, string, error) {
	cropped, err := imgproc.CropForOCR(framePath, cfg.ImgCropper.Workspace, cfg.ImgCropper)
	if err != nil {
		return "", "", err
	}
	number, err := a.ocr.Recognize(ctx, cropped, cfg.ImgNumberOCR)
	if err != nil {
		return "", "", err
	}
	return number, cropped, nil
}

// diffFrame compares the frame with the reference image carrying the same
// number. A missing reference yields a null diff, not an error.
func (a *FrameAnalyzer) diffFrame(framePath, number, cropped string, cfg config.Config, logger *slog.Logger) (*models.DiffOutcome, error) {
	ref, err := FindReferenceImage(cfg.DiffImg.ReferenceDir, number, logger)
	if errdefs.IsMissingReferenceImage(err) {
		logger.Info("no reference image for frame", "number", number)
		return &models.DiffOutcome{}, nil
	}
	if err != nil {
		return nil, err
	}
	res, err := imgproc.Diff(ref, framePath, imgproc.DiffOptions{
		Tolerance:       cfg.DiffImg.Tolerance,
		DifferenceImage: cfg.DiffImg.DifferenceImage,
	})
	if err != nil {
		return nil, err
	}
	res.OCRNumberImage = cropped
	return &models.DiffOutcome{Result: &res}, nil
}
