// Package validate checks settings against their struct tags.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

// Ensure Validator implements the interface.
var _ driven.SettingsValidator = (*Validator)(nil)

// Validator is a driven.SettingsValidator backed by go-playground/validator.
type Validator struct {
	v *validator.Validate
}

// New creates a settings validator.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(canvasRules, domain.CanvasSettings{})
	return &Validator{v: v}
}

// ValidateCanvas returns ErrInvalidInput listing every invalid field.
func (val *Validator) ValidateCanvas(settings *domain.CanvasSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: no settings", domain.ErrInvalidInput)
	}
	err := val.v.Struct(settings)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

// canvasRules holds the checks that span fields or need slice inspection.
func canvasRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(domain.CanvasSettings)

	if s.MaxHistory > 0 && s.CompactionRetention > s.MaxHistory {
		sl.ReportError(s.CompactionRetention, "CompactionRetention", "CompactionRetention", "ltefield", "MaxHistory")
	}

	seen := make(map[string]bool, len(s.SizeAffectingFields))
	for _, f := range s.SizeAffectingFields {
		if strings.TrimSpace(f) == "" {
			sl.ReportError(s.SizeAffectingFields, "SizeAffectingFields", "SizeAffectingFields", "required", "")
			return
		}
		if seen[f] {
			sl.ReportError(s.SizeAffectingFields, "SizeAffectingFields", "SizeAffectingFields", "unique", "")
			return
		}
		seen[f] = true
	}
}

func formatFieldError(e validator.FieldError) string {
	field := toSnake(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s must not contain empty entries", field)
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, toSnake(e.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// toSnake maps a Go field name to its config key spelling ("ZMax" -> "z_max").
func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
