package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/models"
)

var frameRatePattern = regexp.MustCompile(`^\d{1,4}/\d{1,4}$|^\d{1,4}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("framerate", func(fl validator.FieldLevel) bool {
			return frameRatePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks the field-level constraints of a resolved configuration.
func Validate(cfg Config) error {
	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &errdefs.ValidationError{Reason: err.Error()}
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		errs = append(errs, &errdefs.ValidationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %q check (value %v)", reason, fe.Value()),
		})
	}
	return errors.Join(errs...)
}

// ValidateOptions checks rules that span options and configuration.
func ValidateOptions(opts *models.Options, cfg Config) error {
	if opts == nil {
		return nil
	}
	var errs []error
	if f := opts.ExtractFrames; f != nil {
		if f.NeedsOCR() && !cfg.ImgCropper.HasGeometry() {
			errs = append(errs, &errdefs.ValidationError{
				Field:  "extractFrames.imgNumberOcr",
				Reason: "requires imgCropper rectangle or width and height",
			})
		}
		if f.DiffImg {
			if err := checkReferenceDir(cfg.DiffImg.ReferenceDir); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func checkReferenceDir(dir string) error {
	if dir == "" {
		return &errdefs.ValidationError{Field: "diffImg.referenceDir", Reason: "is required when diffImg is enabled"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &errdefs.ValidationError{Field: "diffImg.referenceDir", Reason: err.Error()}
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return nil
		}
	}
	return &errdefs.ValidationError{Field: "diffImg.referenceDir", Reason: fmt.Sprintf("%q contains no reference images", dir)}
}
