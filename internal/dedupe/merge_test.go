package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

func TestMostReliableValue_EqualAndEmptySides(t *testing.T) {
	a := cand(testErp("a"))
	b := cand(testErp("b"))

	// Equal values stay.
	a.Access.EntreePlainPied = boolPtr(true)
	b.Access.EntreePlainPied = boolPtr(true)
	v := MostReliableValue(a, b, "entree_plain_pied")
	require.NotNil(t, v)
	assert.True(t, *v.(*bool))

	// Only one side has a value: keep it, regardless of provenance.
	a.Access.EntreeMarchesRampe = ""
	b.Access.EntreeMarchesRampe = schema.RampeFixe
	assert.Equal(t, schema.RampeFixe, MostReliableValue(a, b, "entree_marches_rampe"))
	assert.Equal(t, schema.RampeFixe, MostReliableValue(b, a, "entree_marches_rampe"))
}

func TestMostReliableValue_AdministrationTrust(t *testing.T) {
	// A is canonical, created by an administration, says "aucune"; B says
	// "fixe" without any trust flag. A's value wins.
	a := cand(testErp("a", func(e *model.Erp) { e.Administration = true }))
	b := cand(testErp("b"))
	a.Access.EntreeMarchesRampe = schema.RampeAucune
	b.Access.EntreeMarchesRampe = schema.RampeFixe

	assert.Equal(t, schema.RampeAucune, MostReliableValue(a, b, "entree_marches_rampe"))
	// Symmetric: same winner with swapped arguments.
	assert.Equal(t, schema.RampeAucune, MostReliableValue(b, a, "entree_marches_rampe"))
}

func TestMostReliableValue_HumanBeatsOwner(t *testing.T) {
	human := cand(testErp("h", func(e *model.Erp) { e.Source = model.SourcePublic }))
	owner := cand(testErp("o", func(e *model.Erp) { e.BusinessOwner = true }))
	human.Access.AccueilPersonnels = schema.PersonnelFormes
	owner.Access.AccueilPersonnels = schema.PersonnelAucun

	assert.Equal(t, schema.PersonnelFormes, MostReliableValue(human, owner, "accueil_personnels"))
	assert.Equal(t, schema.PersonnelFormes, MostReliableValue(owner, human, "accueil_personnels"))
}

func TestMostReliableValue_RecencyBreaksTrustTie(t *testing.T) {
	older := cand(testErp("old", func(e *model.Erp) {
		e.UpdatedAt = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	}))
	newer := cand(testErp("new", func(e *model.Erp) {
		e.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}))
	older.Access.SanitairesAdaptes = intPtr(1)
	newer.Access.SanitairesAdaptes = intPtr(2)
	older.Access.SanitairesPresence = boolPtr(true)
	newer.Access.SanitairesPresence = boolPtr(true)

	assert.Equal(t, 2, *MostReliableValue(older, newer, "sanitaires_adaptes").(*int))
	assert.Equal(t, 2, *MostReliableValue(newer, older, "sanitaires_adaptes").(*int))
}

func TestMostReliableValue_SymmetryOnFullTie(t *testing.T) {
	// No trust edge, identical timestamps: the id comparison keeps the
	// result independent of argument order.
	a := cand(testErp("aaa"))
	b := cand(testErp("bbb"))
	a.Access.EntreePorteType = schema.PorteManuelle
	b.Access.EntreePorteType = schema.PorteAutomatique

	v1 := MostReliableValue(a, b, "entree_porte_type")
	v2 := MostReliableValue(b, a, "entree_porte_type")
	assert.Equal(t, v1, v2)
}

func TestMostReliableValue_UnknownField(t *testing.T) {
	a, b := cand(testErp("a")), cand(testErp("b"))
	assert.Nil(t, MostReliableValue(a, b, "no_such_field"))
}

func TestMergeAccessibility(t *testing.T) {
	main := cand(testErp("main", func(e *model.Erp) { e.Source = model.SourcePublic }))
	dup := cand(testErp("dup"))

	main.Access = &model.Accessibilite{
		ErpID:              "main",
		SanitairesPresence: boolPtr(true),
	}
	dup.Access = &model.Accessibilite{
		ErpID:                    "dup",
		SanitairesPresence:       boolPtr(false), // conflicts, main is human-sourced
		TransportStationPresence: boolPtr(true),  // fills a gap
		Labels:                   []string{"th"}, // fills a gap
	}

	changed := MergeAccessibility(main, dup)
	assert.Equal(t, 2, changed)
	assert.True(t, *main.Access.SanitairesPresence, "human-sourced value kept on conflict")
	assert.True(t, *main.Access.TransportStationPresence)
	assert.Equal(t, []string{"th"}, main.Access.Labels)
}

func TestMergeAccessibility_NoChanges(t *testing.T) {
	main := cand(testErp("main"))
	dup := cand(testErp("dup"))
	main.Access.EntreePlainPied = boolPtr(true)
	dup.Access.EntreePlainPied = boolPtr(true)
	dup.Access.SanitairesPresence = main.Access.SanitairesPresence

	assert.Zero(t, MergeAccessibility(main, dup))
}

func TestMergeAccessibility_CompletionNeverDecreases(t *testing.T) {
	main := cand(testErp("main"))
	dup := Candidate{Erp: testErp("dup"), Access: richAccess("dup")}

	before := main.Access.ComputeCompletionRate()
	MergeAccessibility(main, dup)
	assert.GreaterOrEqual(t, main.Access.ComputeCompletionRate(), before)
}
