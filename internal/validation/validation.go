package validation

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rule checks a single raw field value and returns a human-readable message,
// or an empty string when the value is acceptable.
type Rule func(value string) string

// Rules maps a field name to its ordered rules. The first failing rule wins.
type Rules map[string][]Rule

// Errors maps a field name to the message of its first failing rule.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}

	slices.Sort(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f, e[f])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the given field failed validation.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Validate runs every rule in the table against the matching field value.
// Fields absent from the map are treated as empty. Returns nil when all pass.
func Validate(fields map[string]string, rules Rules) Errors {
	var errs Errors

	for field, fieldRules := range rules {
		if msg := first(fieldRules, fields[field]); msg != "" {
			if errs == nil {
				errs = make(Errors)
			}

			errs[field] = msg
		}
	}

	return errs
}

// Check runs a single field's rules, for interactive forms that validate per input.
func Check(rules []Rule, value string) error {
	if msg := first(rules, value); msg != "" {
		return errors.New(msg)
	}

	return nil
}

func first(rules []Rule, value string) string {
	for _, rule := range rules {
		if msg := rule(value); msg != "" {
			return msg
		}
	}

	return ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func Required() Rule {
	return func(v string) string {
		if blank(v) {
			return "is required"
		}

		return ""
	}
}

// Number accepts any decimal number greater than or equal to floor.
func Number(floor int64) Rule {
	return func(v string) string {
		if blank(v) {
			return ""
		}

		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return "must be a number"
		}

		if d.LessThan(decimal.NewFromInt(floor)) {
			return fmt.Sprintf("must be at least %d", floor)
		}

		return ""
	}
}

func IntRange(lo, hi int) Rule {
	return func(v string) string {
		if blank(v) {
			return ""
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return "must be a whole number"
		}

		if n < lo || n > hi {
			return fmt.Sprintf("must be between %d and %d", lo, hi)
		}

		return ""
	}
}

func Date(layout string) Rule {
	return func(v string) string {
		if blank(v) {
			return ""
		}

		if _, err := time.Parse(layout, strings.TrimSpace(v)); err != nil {
			return fmt.Sprintf("must be a date (%s)", layout)
		}

		return ""
	}
}

func OneOf(values ...string) Rule {
	return func(v string) string {
		if blank(v) || slices.Contains(values, strings.TrimSpace(v)) {
			return ""
		}

		return "must be one of " + strings.Join(values, ", ")
	}
}

func MaxLength(n int) Rule {
	return func(v string) string {
		if len([]rune(v)) > n {
			return fmt.Sprintf("must be at most %d characters", n)
		}

		return ""
	}
}
