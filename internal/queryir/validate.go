package queryir

import "fmt"

// ValidationResult describes how a query builder will treat a selection.
//
// Builders never reject a selection. Combinations they cannot realise are
// documented no-ops that silently narrow what is searched; Validate reports
// them so callers can log or surface them.
type ValidationResult struct {
	// IsSupported indicates the selection contributes to the built query.
	IsSupported bool

	// Warnings lists every reason the selection is ignored or narrowed.
	// Empty when IsSupported is true and nothing was narrowed.
	Warnings []string
}

// Validate checks a selection against the builder rules.
//
// Rules:
//  1. None and RegExp selections are ignored
//  2. Comparisons only apply to Integer and Date values
//  3. A selection needs at least one value (Category excepted)
//  4. Only InSet, Proximity and Type carry several values
//  5. Category needs a content or source class list
//
// Validate is a pure function with no side effects.
func Validate(sel Selection) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateSelection(sel)

	return ValidationResult{
		IsSupported: !v.unsupported,
		Warnings:    v.warnings,
	}
}

// validator accumulates warnings during the checks.
type validator struct {
	warnings    []string
	unsupported bool
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// reject marks the selection unsupported and records why.
func (v *validator) reject(format string, args ...any) {
	v.unsupported = true
	v.addWarning(format, args...)
}

func (v *validator) validateSelection(sel Selection) {
	switch sel.Kind {
	case None, RegExp:
		// Rule 1
		v.reject("%s selections are ignored", sel.Kind)
		return
	case Category:
		// Rule 5
		if sel.Modifiers.Content == "" && sel.Modifiers.Source == "" {
			v.reject("category selection without content or source classes")
		}
		return
	}

	// Rule 2
	if sel.Kind.IsComparison() && sel.ValueType != Integer && sel.ValueType != Date {
		v.reject("%s on %s values is not supported - comparisons need integer or date values", sel.Kind, sel.ValueType)
	}

	// Rule 3
	if len(sel.FieldValues) == 0 {
		v.reject("%s selection has no values", sel.Kind)
		return
	}

	// Rule 4
	if len(sel.FieldValues) > 1 {
		switch sel.Kind {
		case InSet, Proximity, Type:
		default:
			v.addWarning("%s selection carries %d values - they are ORed together", sel.Kind, len(sel.FieldValues))
		}
	}

	for i, val := range sel.FieldValues {
		if val == "" {
			v.addWarning("value %d is empty", i)
		}
	}
}
