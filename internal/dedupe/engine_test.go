package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erp-cli/internal/geo"
	"github.com/acceslibre/erp-cli/internal/model"
)

// fakeStore serves candidates in fixed pages and records merge writes.
type fakeStore struct {
	rows     []Candidate
	pageSize int
	merges   []fakeMerge
	failNext bool
}

type fakeMerge struct {
	canonicalID  string
	duplicateIDs []string
	access       *model.Accessibilite
	changed      bool
}

func (f *fakeStore) NextDedupePage(_ context.Context, cursor string, limit int) ([]Candidate, string, error) {
	start := 0
	if cursor != "" {
		for i, r := range f.rows {
			if r.Erp.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(f.rows) {
		return nil, "", nil
	}
	end := start + limit
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	if end >= len(f.rows) {
		return f.rows[start:], "", nil
	}
	return f.rows[start:end], f.rows[end-1].Erp.ID, nil
}

func (f *fakeStore) ApplyMerge(_ context.Context, canonicalID string, duplicateIDs []string, merged *model.Accessibilite, changed bool) (MergeStats, error) {
	if f.failNext {
		f.failNext = false
		return MergeStats{}, assert.AnError
	}
	f.merges = append(f.merges, fakeMerge{canonicalID: canonicalID, duplicateIDs: duplicateIDs, access: merged, changed: changed})
	return MergeStats{SubscriptionsMoved: 1, Deleted: len(duplicateIDs)}, nil
}

func groupedErp(id, commune, nom string, opts ...erpOpt) Candidate {
	e := testErp(id, opts...)
	e.Commune = commune
	e.Nom = nom
	e.NomNormalise = model.NormalizeName(nom)
	return cand(e)
}

func TestEngine_MergesAdjacentDuplicates(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(50)),
		groupedErp("b1", "Lyon", "Café du Centre"),
		groupedErp("c1", "Paris", "Café du Centre"),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.SubscriptionsMoved)

	require.Len(t, st.merges, 1)
	// Full tie: the lexically first id is canonical.
	assert.Equal(t, "a1", st.merges[0].canonicalID)
	assert.Equal(t, []string{"a2"}, st.merges[0].duplicateIDs)
}

func TestEngine_ClusterSpansPageBoundary(t *testing.T) {
	st := &fakeStore{
		pageSize: 1,
		rows: []Candidate{
			groupedErp("a1", "Lyon", "Boulangerie Dupont"),
			groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(50)),
		},
	}

	eng := New(st, Config{Write: true, PageSize: 1})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
}

func TestEngine_DryRunWritesNothing(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(50)),
	}}

	eng := New(st, Config{Write: false})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, st.merges)
}

func TestEngine_NeedsReviewNeverDeletes(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont", withActivite("Boulangerie")),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(200), withActivite("Fleuriste")),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Merged)
	assert.Equal(t, 1, report.NeedsReview)
	require.Len(t, report.Review, 1)
	assert.Contains(t, report.Review[0].Reason, "activity")
	assert.Empty(t, st.merges)
}

func TestEngine_DistinctFarApart(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(600)),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Distinct)
	assert.Zero(t, report.Merged)
}

func TestEngine_MultiDuplicateGoesToReview(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(20)),
		groupedErp("a3", "Lyon", "Boulangerie Dupont", withDistanceM(40)),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.UnhandledMulti)
	assert.Zero(t, report.Merged)
	assert.Empty(t, st.merges)
}

func TestEngine_MixedClosedOpenGoesToReview(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont", func(e *model.Erp) { e.PermanentlyClosed = true }),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(10)),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.NeedsReview)
	assert.Zero(t, report.Merged)
	assert.Empty(t, st.merges)
}

func TestEngine_AllClosedStillMerges(t *testing.T) {
	closed := func(e *model.Erp) { e.PermanentlyClosed = true }
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont", closed),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", closed, withDistanceM(10)),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
}

func TestEngine_FailedMergeSkipsClusterOnly(t *testing.T) {
	st := &fakeStore{
		failNext: true,
		rows: []Candidate{
			groupedErp("a1", "Lyon", "Boulangerie Dupont"),
			groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(50)),
			groupedErp("b1", "Paris", "Café du Centre"),
			groupedErp("b2", "Paris", "Café du Centre", withDistanceM(30)),
		},
	}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Merged)
	require.Len(t, st.merges, 1)
	assert.Equal(t, "b1", st.merges[0].canonicalID)
}

func TestEngine_CancelledBetweenClusters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(50)),
	}}

	eng := New(st, Config{Write: true})
	_, err := eng.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, st.merges, "no half-processed cluster after cancellation")
}

func TestEngine_MergedRecordStaysConsistent(t *testing.T) {
	// The canonical side answered "no toilets" and wins that field on trust;
	// the duplicate contributed an adapted-toilets count. The persisted record
	// must not keep the count under the losing governing answer.
	a1 := groupedErp("a1", "Lyon", "Boulangerie Dupont")
	a1.Erp.Source = model.SourcePublic
	a1.Access.SanitairesPresence = boolPtr(false)
	a2 := groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(10))
	a2.Access.SanitairesAdaptes = intPtr(2)

	st := &fakeStore{rows: []Candidate{a1, a2}}
	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Merged)

	require.Len(t, st.merges, 1)
	m := st.merges[0]
	assert.Equal(t, "a1", m.canonicalID)
	require.NotNil(t, m.access)
	require.NotNil(t, m.access.SanitairesPresence)
	assert.False(t, *m.access.SanitairesPresence)
	assert.Nil(t, m.access.SanitairesAdaptes)
}

func TestEngine_ReportsGeohashDensity(t *testing.T) {
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont"),
		groupedErp("c1", "Paris", "Café du Centre", withDistanceM(600)),
	}}

	eng := New(st, Config{})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.GeohashBuckets)
	assert.Equal(t, 2, report.DensestBucketSize)
	want := geo.Bucket(st.rows[0].Erp.Latitude, st.rows[0].Erp.Longitude)
	assert.Equal(t, want, report.DensestBucket)
}

func TestDensestBucket(t *testing.T) {
	b, n := densestBucket(map[string]int{"u05kq1w": 2, "u05kq1b": 2, "u05kq1z": 1})
	assert.Equal(t, "u05kq1b", b, "count ties break on the lexically smaller cell")
	assert.Equal(t, 2, n)

	b, n = densestBucket(nil)
	assert.Empty(t, b)
	assert.Zero(t, n)
}

func TestEngine_MergeIdempotence(t *testing.T) {
	// After a merge the surviving record forms no further duplicate cluster.
	st := &fakeStore{rows: []Candidate{
		groupedErp("a1", "Lyon", "Boulangerie Dupont"),
		groupedErp("a2", "Lyon", "Boulangerie Dupont", withDistanceM(50)),
	}}

	eng := New(st, Config{Write: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Merged)

	// Re-run on the surviving set.
	st2 := &fakeStore{rows: []Candidate{groupedErp("a1", "Lyon", "Boulangerie Dupont")}}
	eng2 := New(st2, Config{Write: true})
	report2, err := eng2.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report2.Clusters)
	assert.Zero(t, report2.Merged)
	assert.Empty(t, st2.merges)
}
