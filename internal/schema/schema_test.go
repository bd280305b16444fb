package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestRegistryIndexes(t *testing.T) {
	names := FieldNames()
	require.NotEmpty(t, names)

	// Every name resolves and the registry order is stable.
	seen := map[string]bool{}
	for _, n := range names {
		f := Get(n)
		require.NotNil(t, f, n)
		assert.Equal(t, n, f.Name)
		assert.False(t, seen[n], "duplicate field name %s", n)
		seen[n] = true
	}

	// Sections cover every field exactly once.
	total := 0
	for _, s := range Sections() {
		total += len(FieldsBySection(s))
	}
	assert.Equal(t, len(names), total)
}

func TestPermissiveLookups(t *testing.T) {
	assert.Nil(t, Get("no_such_field"))
	assert.Equal(t, "fallback", Label("no_such_field", "fallback"))
	assert.Equal(t, "fallback", HelpText("no_such_field", "fallback"))
	assert.Empty(t, FieldsBySection("no_such_section"))

	assert.Equal(t, "Rampe", Label("cheminement_ext_rampe", "x"))
}

func TestAccessibilityFieldNames(t *testing.T) {
	access := AccessibilityFieldNames()
	assert.NotEmpty(t, access)

	for _, n := range access {
		assert.True(t, Get(n).IsAccessibility)
	}

	// Metadata fields are excluded.
	assert.NotContains(t, access, "commentaire")
	assert.NotContains(t, access, "registre_url")
	assert.NotContains(t, access, "conformite")
}

func TestNullableBoolFieldNames(t *testing.T) {
	for _, n := range NullableBoolFieldNames() {
		f := Get(n)
		assert.Equal(t, KindBool, f.Kind, n)
		assert.True(t, f.NullableBool, n)
	}
	assert.Contains(t, NullableBoolFieldNames(), "entree_plain_pied")
}

func TestConditionalRulesReferenceKnownFields(t *testing.T) {
	for _, r := range ConditionalRules() {
		require.NotNil(t, Get(r.Governing), r.Governing)
		require.NotEmpty(t, r.Dependents)
		for _, d := range r.Dependents {
			require.NotNil(t, Get(d), d)
			assert.NotEqual(t, r.Governing, d)
		}
	}
}

func TestGovernorSatisfied(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		required bool
		want     bool
	}{
		{"nil bool counts as false", (*bool)(nil), true, false},
		{"nil bool satisfies inverted rule", (*bool)(nil), false, true},
		{"true bool", boolPtr(true), true, true},
		{"false bool", boolPtr(false), true, false},
		{"false bool satisfies inverted rule", boolPtr(false), false, true},
		{"true bool violates inverted rule", boolPtr(true), false, false},
		{"empty multi", []string{}, true, false},
		{"populated multi", []string{"th"}, true, true},
		{"empty text", "", true, false},
		{"populated text", "info", true, true},
		{"nil number", (*int)(nil), true, false},
		{"populated number", intPtr(2), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GovernorSatisfied(tt.value, tt.required))
		})
	}
}

func TestWarnPredicates(t *testing.T) {
	rampe := Get("cheminement_ext_rampe")
	require.NotNil(t, rampe.WarnIf)
	assert.True(t, rampe.WarnIf(RampeAucune, nil))
	assert.False(t, rampe.WarnIf(RampeFixe, nil))

	pmr := Get("stationnement_pmr")
	require.NotNil(t, pmr.WarnIf)
	assert.True(t, pmr.WarnIf(boolPtr(false), nil))
	assert.False(t, pmr.WarnIf(boolPtr(true), nil))
	assert.False(t, pmr.WarnIf((*bool)(nil), nil))

	largeur := Get("entree_largeur_mini")
	require.NotNil(t, largeur.WarnIf)
	assert.True(t, largeur.WarnIf(intPtr(70), nil))
	assert.False(t, largeur.WarnIf(intPtr(90), nil))
}

type fakeRecord map[string]any

func (r fakeRecord) FieldValue(name string) any { return r[name] }

func TestWarnStepsConsultsRamp(t *testing.T) {
	marches := Get("entree_marches")
	require.NotNil(t, marches.WarnIf)

	// Steps with no ramp are a problem.
	rec := fakeRecord{"entree_marches_rampe": ""}
	assert.True(t, marches.WarnIf(intPtr(3), rec))

	// A fixed ramp compensates.
	rec = fakeRecord{"entree_marches_rampe": RampeFixe}
	assert.False(t, marches.WarnIf(intPtr(3), rec))

	assert.False(t, marches.WarnIf(intPtr(0), rec))
	assert.False(t, marches.WarnIf((*int)(nil), rec))
}
