package canvas

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate  = validator.New()
	sanitizer = bluemonday.StrictPolicy()
)

// SanitizeElement strips markup from every user-authored string field.
// IDs are left alone; they are validated separately and never rendered.
func SanitizeElement(e *Element) {
	e.Text = sanitizeString(e.Text)
	e.Color = sanitizeString(e.Color)
	e.FontFamily = sanitizeString(e.FontFamily)
	e.FontWeight = sanitizeString(e.FontWeight)
	e.FontStyle = sanitizeString(e.FontStyle)
	e.TextDecoration = sanitizeString(e.TextDecoration)
	e.OriginalName = sanitizeString(e.OriginalName)
}

// SanitizePatch strips markup from patch fields that carry free text.
func SanitizePatch(p *ElementPatch) {
	if p.Text != nil {
		s := sanitizeString(*p.Text)
		p.Text = &s
	}
	if p.Color != nil {
		s := sanitizeString(*p.Color)
		p.Color = &s
	}
	if p.FontFamily != nil {
		s := sanitizeString(*p.FontFamily)
		p.FontFamily = &s
	}
	if p.OriginalName != nil {
		s := sanitizeString(*p.OriginalName)
		p.OriginalName = &s
	}
}

func sanitizeString(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(s))
}

// SanitizeName strips markup from a display name and truncates it.
func SanitizeName(s string, max int) string {
	s = sanitizeString(s)
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// ValidateElement checks a complete element against the schema limits.
// Filenames are additionally screened for path traversal because they are
// later joined into upload paths.
func ValidateElement(e *Element) error {
	if err := validate.Struct(e); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("element %s: %s", e.ID, formatValidationErrors(verrs))
		}
		return err
	}
	if !safeFilename(e.Filename) {
		return fmt.Errorf("element %s: invalid filename", e.ID)
	}
	return nil
}

// ValidateLayer checks a layer against the schema limits.
func ValidateLayer(l *Layer) error {
	if err := validate.Struct(l); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("layer %s: %s", l.ID, formatValidationErrors(verrs))
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds maximum of %s", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s below minimum of %s", fe.Field(), fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

func safeFilename(name string) bool {
	if name == "" {
		return true
	}
	return !strings.ContainsAny(name, "/\\") && !strings.Contains(name, "..")
}
