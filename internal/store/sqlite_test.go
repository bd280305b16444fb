package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedErp(t *testing.T, s *SQLiteStore, id, nom, commune string, published bool) *model.Erp {
	t.Helper()
	e := &model.Erp{
		ID:        id,
		Nom:       nom,
		Commune:   commune,
		Voie:      "rue de la République",
		Latitude:  45.76,
		Longitude: 4.84,
		Source:    model.SourceGendarmerie,
		Published: published,
	}
	require.NoError(t, s.CreateErp(context.Background(), e))
	return e
}

func validAccess(erpID string) *model.Accessibilite {
	return &model.Accessibilite{
		ErpID:                    erpID,
		SanitairesPresence:       boolPtr(true),
		SanitairesAdaptes:        intPtr(2),
		EntreePlainPied:          boolPtr(false),
		EntreeMarchesRampe:       schema.RampeFixe,
		TransportStationPresence: boolPtr(true),
		TransportInformation:     "Métro ligne D, arrêt Bellecour",
		Labels:                   []string{"th", "tourisme_handicap"},
	}
}

func TestSQLite_CreateAndGetErp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Boulangerie de l'Île", "Lyon", true)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "boulangerie de l ile", e.NomNormalise)
	assert.Len(t, e.Geohash, 7)

	got, err := s.GetErpByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Nom, got.Nom)
	assert.Equal(t, e.Slug, got.Slug)
	assert.Equal(t, model.SourceGendarmerie, got.Source)
	assert.InDelta(t, 45.76, got.Latitude, 1e-9)
	assert.True(t, got.Published)

	bySlug, err := s.GetErpBySlug(ctx, e.Slug)
	require.NoError(t, err)
	assert.Equal(t, e.ID, bySlug.ID)

	_, err = s.GetErpByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateErp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Café du Centre", "Lyon", true)
	e.Nom = "Café du Marché"
	e.PermanentlyClosed = true
	require.NoError(t, s.UpdateErp(ctx, e))

	got, err := s.GetErpByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Café du Marché", got.Nom)
	assert.Equal(t, "cafe du marche", got.NomNormalise)
	assert.True(t, got.PermanentlyClosed)

	missing := &model.Erp{ID: "missing", Nom: "X", Commune: "Lyon"}
	assert.ErrorIs(t, s.UpdateErp(ctx, missing), ErrNotFound)
}

func TestSQLite_SaveAndGetAccessibilite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Boulangerie Dupont", "Lyon", true)
	a := validAccess(e.ID)
	require.NoError(t, s.SaveAccessibilite(ctx, a))
	assert.Greater(t, a.CompletionRate, 0.0)

	got, err := s.GetAccessibilite(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ErpID)
	require.NotNil(t, got.SanitairesPresence)
	assert.True(t, *got.SanitairesPresence)
	require.NotNil(t, got.SanitairesAdaptes)
	assert.Equal(t, 2, *got.SanitairesAdaptes)
	require.NotNil(t, got.EntreePlainPied)
	assert.False(t, *got.EntreePlainPied)
	assert.Equal(t, schema.RampeFixe, got.EntreeMarchesRampe)
	assert.Equal(t, "Métro ligne D, arrêt Bellecour", got.TransportInformation)
	assert.Equal(t, []string{"th", "tourisme_handicap"}, got.Labels)
	assert.InDelta(t, a.CompletionRate, got.CompletionRate, 1e-9)

	// Unanswered fields stay nil.
	assert.Nil(t, got.AccueilVisibilite)
	assert.Empty(t, got.EntreePorteType)
}

func TestSQLite_SaveAccessibilite_UpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Boulangerie Dupont", "Lyon", true)
	a := validAccess(e.ID)
	require.NoError(t, s.SaveAccessibilite(ctx, a))

	a.SanitairesAdaptes = intPtr(3)
	require.NoError(t, s.SaveAccessibilite(ctx, a))

	got, err := s.GetAccessibilite(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *got.SanitairesAdaptes)
}

func TestSQLite_SaveAccessibilite_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Boulangerie Dupont", "Lyon", true)
	a := &model.Accessibilite{
		ErpID:                  e.ID,
		CheminementExtPresence: boolPtr(false),
		CheminementExtRampe:    schema.RampeFixe,
	}
	err := s.SaveAccessibilite(ctx, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cheminement_ext_rampe")

	_, err = s.GetAccessibilite(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound, "rejected record is not persisted")
}

func TestSQLite_Subscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Boulangerie Dupont", "Lyon", true)

	require.NoError(t, s.Subscribe(ctx, e.ID, "u-1"))
	require.NoError(t, s.Subscribe(ctx, e.ID, "u-1"), "double subscribe is idempotent")
	require.NoError(t, s.Subscribe(ctx, e.ID, "u-2"))

	subs, err := s.ListSubscriptions(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	require.NoError(t, s.Unsubscribe(ctx, e.ID, "u-1"))
	require.NoError(t, s.Unsubscribe(ctx, e.ID, "u-1"), "double unsubscribe is idempotent")

	subs, err = s.ListSubscriptions(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "u-2", subs[0].UserID)
}

func TestSQLite_CountPublished(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedErp(t, s, "", "Boulangerie Dupont", "Lyon", true)
	seedErp(t, s, "", "Café du Centre", "Lyon", true)
	seedErp(t, s, "", "Brouillon", "Lyon", false)

	n, err := s.CountPublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_NextDedupePage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a1 := seedErp(t, s, "a1", "Boulangerie Dupont", "Lyon", true)
	a2 := seedErp(t, s, "a2", "Boulangerie Dupont", "Lyon", true)
	b1 := seedErp(t, s, "b1", "Café du Centre", "Lyon", true)
	draft := seedErp(t, s, "d1", "Brouillon", "Lyon", false)
	for _, e := range []*model.Erp{a1, a2, b1, draft} {
		require.NoError(t, s.SaveAccessibilite(ctx, validAccess(e.ID)))
	}

	page1, cursor, err := s.NextDedupePage(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "a1", page1[0].Erp.ID)
	assert.Equal(t, "a2", page1[1].Erp.ID)
	assert.NotNil(t, page1[0].Access)
	require.NotEmpty(t, cursor)

	page2, cursor, err := s.NextDedupePage(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "b1", page2[0].Erp.ID, "unpublished rows never appear")
	assert.Empty(t, cursor)
}

func TestSQLite_ApplyMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	canonical := seedErp(t, s, "a1", "Boulangerie Dupont", "Lyon", true)
	dup := seedErp(t, s, "a2", "Boulangerie Dupont", "Lyon", true)
	require.NoError(t, s.SaveAccessibilite(ctx, validAccess(canonical.ID)))
	require.NoError(t, s.SaveAccessibilite(ctx, validAccess(dup.ID)))

	require.NoError(t, s.Subscribe(ctx, canonical.ID, "u-shared"))
	require.NoError(t, s.Subscribe(ctx, dup.ID, "u-shared"))
	require.NoError(t, s.Subscribe(ctx, dup.ID, "u-only-dup"))

	merged := validAccess(canonical.ID)
	merged.AccueilVisibilite = boolPtr(true)

	stats, err := s.ApplyMerge(ctx, canonical.ID, []string{dup.ID}, merged, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SubscriptionsMoved, "shared subscriber is not duplicated")
	assert.Equal(t, 1, stats.Deleted)

	_, err = s.GetErpByID(ctx, dup.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetAccessibilite(ctx, dup.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetAccessibilite(ctx, canonical.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AccueilVisibilite)
	assert.True(t, *got.AccueilVisibilite)

	subs, err := s.ListSubscriptions(ctx, canonical.ID)
	require.NoError(t, err)
	users := []string{subs[0].UserID, subs[1].UserID}
	assert.ElementsMatch(t, []string{"u-shared", "u-only-dup"}, users)
}

func TestSQLite_UpsertBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(nom string) []dedupe.Candidate {
		return []dedupe.Candidate{{
			Erp: &model.Erp{
				ID:        "import-1",
				Nom:       nom,
				Commune:   "Lyon",
				Latitude:  45.76,
				Longitude: 4.84,
				Source:    model.SourceSirene,
				SourceID:  "siret-123",
				Published: true,
			},
			Access: validAccess("import-1"),
		}}
	}

	n, err := s.UpsertBatch(ctx, mk("Boulangerie Dupont"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Re-import updates in place instead of duplicating.
	_, err = s.UpsertBatch(ctx, mk("Boulangerie Dupont et Fils"))
	require.NoError(t, err)

	count, err := s.CountPublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetErpByID(ctx, "import-1")
	require.NoError(t, err)
	assert.Equal(t, "Boulangerie Dupont et Fils", got.Nom)

	access, err := s.GetAccessibilite(ctx, "import-1")
	require.NoError(t, err)
	assert.Greater(t, access.CompletionRate, 0.0)
}

func TestSQLite_RecomputeCompletionRates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedErp(t, s, "", "Boulangerie Dupont", "Lyon", true)
	a := validAccess(e.ID)
	require.NoError(t, s.SaveAccessibilite(ctx, a))

	// Corrupt the stored rate; the batch pass restores it.
	_, err := s.db.ExecContext(ctx, `UPDATE accessibilite SET completion_rate = 0`)
	require.NoError(t, err)

	n, err := s.RecomputeCompletionRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetAccessibilite(ctx, e.ID)
	require.NoError(t, err)
	assert.InDelta(t, a.CompletionRate, got.CompletionRate, 1e-9)

	// Second pass is a no-op.
	n, err = s.RecomputeCompletionRates(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCursorRoundTrip(t *testing.T) {
	e := &model.Erp{ID: "a1", Commune: "Lyon", NomNormalise: "boulangerie dupont"}
	cursor := encodeCursor(e)

	commune, nom, id, ok := decodeCursor(cursor)
	require.True(t, ok)
	assert.Equal(t, "Lyon", commune)
	assert.Equal(t, "boulangerie dupont", nom)
	assert.Equal(t, "a1", id)

	_, _, _, ok = decodeCursor("garbage")
	assert.False(t, ok)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
