package api

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
)

// Limits enforced by the backend; checking them locally saves a round trip.
const (
	QuestionMinLen = 3
	QuestionMaxLen = 2000

	YearsPlayedMin = 0
	YearsPlayedMax = 80
	HandicapMin    = 0.0
	HandicapMax    = 54.0
	PlanTextMinLen = 3
	PlanTextMaxLen = 500
)

// FieldError is a single failed constraint.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every failed constraint of one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidRequest
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateQuestion checks a question before it is sent.
func ValidateQuestion(question string) error {
	v := &ValidationError{}
	checkLength(v, "question", "Question", normaliseText(question), QuestionMinLen, QuestionMaxLen)
	return v.orNil()
}

func (r PlanRequest) Validate() error {
	v := &ValidationError{}
	if r.YearsPlayed < YearsPlayedMin || r.YearsPlayed > YearsPlayedMax {
		v.add("years_played", "Years played must be between %d and %d", YearsPlayedMin, YearsPlayedMax)
	}
	if r.Handicap < HandicapMin || r.Handicap > HandicapMax {
		v.add("handicap", "Handicap must be between %s and %s", formatFloat(HandicapMin), formatFloat(HandicapMax))
	}
	checkLength(v, "strengths", "Strengths", normaliseText(r.Strengths), PlanTextMinLen, PlanTextMaxLen)
	checkLength(v, "weaknesses", "Weaknesses", normaliseText(r.Weaknesses), PlanTextMinLen, PlanTextMaxLen)
	checkLength(v, "goals", "Goals", normaliseText(r.Goals), PlanTextMinLen, PlanTextMaxLen)
	return v.orNil()
}

func checkLength(v *ValidationError, field, label, value string, minLen, maxLen int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n < minLen:
		v.add(field, "%s must be at least %d characters", label, minLen)
	case n > maxLen:
		v.add(field, "%s must be at most %d characters", label, maxLen)
	}
}
