package rewrite

import (
	"regexp"
	"strings"
	"time"

	"github.com/amirbrooks/focuslist/internal/classify"
)

// MaxDueYear is the latest year a model-supplied due date may fall in.
const MaxDueYear = 2030

var dueFormatRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDue reports whether v is a usable due date from model output.
func ValidDue(v any, now time.Time) bool {
	return ValidateDue(v, now) == nil
}

// ValidateDue checks a candidate due value: it must be a YYYY-MM-DD string,
// not the prompt's placeholder, a real calendar date, within
// [now.Year(), MaxDueYear], and not before today.
func ValidateDue(v any, now time.Time) error {
	if v == nil {
		return validationf("due is absent")
	}
	s, ok := v.(string)
	if !ok {
		return validationf("due is %T, not a string", v)
	}
	for _, placeholder := range []string{"YYYY", "MM", "DD"} {
		if strings.Contains(s, placeholder) {
			return validationf("due %q is a template placeholder", s)
		}
	}
	if !dueFormatRe.MatchString(s) {
		return validationf("due %q is not YYYY-MM-DD", s)
	}
	d, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return validationf("due %q is not a calendar date", s)
	}
	if d.Year() < now.Year() || d.Year() > MaxDueYear {
		return validationf("due %q is outside %d-%d", s, now.Year(), MaxDueYear)
	}
	if d.Year() == now.Year() && d.Before(classify.StartOfDay(now)) {
		return validationf("due %q is in the past", s)
	}
	return nil
}
