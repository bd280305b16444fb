package model

import (
	"fmt"
	"strings"

	"github.com/acceslibre/erp-cli/internal/schema"
)

// Violation is one broken conditional-nullability rule: the dependent field
// carries a value while its governing field is not in the required state.
type Violation struct {
	Field         string `json:"field"`
	Governing     string `json:"governing"`
	RequiredState bool   `json:"required_state"`
}

func (v Violation) String() string {
	state := "true"
	if !v.RequiredState {
		state = "false"
	}
	return fmt.Sprintf("field %s must be empty unless %s is %s", v.Field, v.Governing, state)
}

// ValidationError rejects a save that would persist an inconsistent record.
// Interactive writes surface it to the caller; the bulk importer avoids it by
// normalizing first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "accessibilite: " + strings.Join(msgs, "; ")
}

// Validate checks every conditional rule of the registry against the record.
// Returns nil when the record is consistent.
func (a *Accessibilite) Validate() *ValidationError {
	var violations []Violation
	for _, rule := range schema.ConditionalRules() {
		gov, ok := AccessorFor(rule.Governing)
		if !ok {
			continue
		}
		if schema.GovernorSatisfied(gov.Get(a), rule.RequiredState) {
			continue
		}
		for _, dep := range rule.Dependents {
			acc, ok := AccessorFor(dep)
			if !ok {
				continue
			}
			if !ValueEmpty(acc.Kind, acc.Get(a)) {
				violations = append(violations, Violation{
					Field:         dep,
					Governing:     rule.Governing,
					RequiredState: rule.RequiredState,
				})
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// Normalize nulls out every dependent field whose governing condition is not
// met and returns the number of fields coerced. Used by bulk importers that
// tolerate inconsistent upstream data; interactive paths reject instead.
func (a *Accessibilite) Normalize() int {
	coerced := 0
	// A pass can re-break an earlier rule only if a governor is also a
	// dependent; the registry keeps rule order topological, one pass suffices.
	for _, rule := range schema.ConditionalRules() {
		gov, ok := AccessorFor(rule.Governing)
		if !ok {
			continue
		}
		if schema.GovernorSatisfied(gov.Get(a), rule.RequiredState) {
			continue
		}
		for _, dep := range rule.Dependents {
			acc, ok := AccessorFor(dep)
			if !ok {
				continue
			}
			if !ValueEmpty(acc.Kind, acc.Get(a)) {
				acc.Set(a, nil)
				coerced++
			}
		}
	}
	return coerced
}
