package dedupe

import (
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

// trustEdge compares the provenance trust of two establishments: positive
// when a outranks b, negative when b outranks a. Order: human source, then
// business owner, then administration, then most recent update; a final id
// comparison keeps the result symmetric when everything else ties.
func trustEdge(a, b *model.Erp) int {
	flags := []func(*model.Erp) bool{
		func(e *model.Erp) bool { return e.IsHumanSource() },
		func(e *model.Erp) bool { return e.BusinessOwner },
		func(e *model.Erp) bool { return e.Administration },
	}
	for _, flag := range flags {
		av, bv := flag(a), flag(b)
		if av && !bv {
			return 1
		}
		if bv && !av {
			return -1
		}
	}

	if a.UpdatedAt.After(b.UpdatedAt) {
		return 1
	}
	if b.UpdatedAt.After(a.UpdatedAt) {
		return -1
	}

	if a.ID < b.ID {
		return 1
	}
	if b.ID < a.ID {
		return -1
	}
	return 0
}

// MostReliableValue resolves one field between two records:
//
//  1. equal values: keep as is
//  2. only one side has a value: keep it
//  3. both differ: prefer the side with the provenance-trust edge
//  4. still tied: prefer the most recently updated record
//
// The resolution is symmetric in its arguments.
func MostReliableValue(a, b Candidate, field string) any {
	acc, ok := model.AccessorFor(field)
	if !ok {
		return nil
	}
	av, bv := acc.Get(a.Access), acc.Get(b.Access)

	if model.ValueEqual(acc.Kind, av, bv) {
		return av
	}
	if model.ValueEmpty(acc.Kind, bv) {
		return av
	}
	if model.ValueEmpty(acc.Kind, av) {
		return bv
	}

	if trustEdge(a.Erp, b.Erp) >= 0 {
		return av
	}
	return bv
}

// MergeAccessibility folds the duplicate's accessibility data into the
// canonical record, field by field in registry order, and returns the number
// of fields that actually changed on the canonical side. The caller persists
// only when at least one field changed.
func MergeAccessibility(main, dup Candidate) int {
	changed := 0
	for _, name := range schema.FieldNames() {
		acc, ok := model.AccessorFor(name)
		if !ok {
			continue
		}
		resolved := MostReliableValue(main, dup, name)
		if !model.ValueEqual(acc.Kind, acc.Get(main.Access), resolved) {
			acc.Set(main.Access, resolved)
			changed++
		}
	}
	return changed
}
