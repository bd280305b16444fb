package importer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/model"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]dedupe.Candidate
	failAll bool
}

func (f *fakeSink) UpsertBatch(_ context.Context, batch []dedupe.Candidate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, assert.AnError
	}
	f.batches = append(f.batches, batch)
	return int64(len(batch)), nil
}

func (f *fakeSink) all() []dedupe.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dedupe.Candidate
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

const sampleCSV = `source_id,nom,activite,commune,code_postal,latitude,longitude,sanitaires_presence,sanitaires_adaptes,labels,commentaire
gd-001,Gendarmerie de Rennes,Gendarmerie,Rennes,35000,48.1173,-1.6778,oui,2,th|mobalib,Accès par la cour
gd-002,Gendarmerie de Brest,Gendarmerie,Brest,29200,48.3904,-4.4861,non,,,
`

func TestImportCSV(t *testing.T) {
	sink := &fakeSink{}

	res, err := ImportCSV(context.Background(), sink, strings.NewReader(sampleCSV), Options{
		Source: model.SourceGendarmerie,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, int64(2), res.Upserted)

	rows := sink.all()
	require.Len(t, rows, 2)

	byID := map[string]dedupe.Candidate{}
	for _, c := range rows {
		byID[c.Erp.SourceID] = c
	}
	rennes := byID["gd-001"]
	require.NotNil(t, rennes.Erp)
	assert.Equal(t, "Gendarmerie de Rennes", rennes.Erp.Nom)
	assert.Equal(t, model.SourceGendarmerie, rennes.Erp.Source)
	assert.True(t, rennes.Erp.Published)
	assert.NotEmpty(t, rennes.Erp.ID)

	require.NotNil(t, rennes.Access.SanitairesPresence)
	assert.True(t, *rennes.Access.SanitairesPresence)
	require.NotNil(t, rennes.Access.SanitairesAdaptes)
	assert.Equal(t, 2, *rennes.Access.SanitairesAdaptes)
	assert.Equal(t, []string{"th", "mobalib"}, rennes.Access.Labels)
	assert.Equal(t, "Accès par la cour", rennes.Access.Commentaire)

	brest := byID["gd-002"]
	require.NotNil(t, brest.Access.SanitairesPresence)
	assert.False(t, *brest.Access.SanitairesPresence)
	assert.Nil(t, brest.Access.SanitairesAdaptes)
}

func TestImportCSV_DeterministicIDs(t *testing.T) {
	run := func() []dedupe.Candidate {
		sink := &fakeSink{}
		_, err := ImportCSV(context.Background(), sink, strings.NewReader(sampleCSV), Options{
			Source: model.SourceGendarmerie,
		})
		require.NoError(t, err)
		return sink.all()
	}

	first, second := run(), run()
	require.Len(t, second, len(first))
	ids := map[string]bool{}
	for _, c := range first {
		ids[c.Erp.ID] = true
	}
	for _, c := range second {
		assert.True(t, ids[c.Erp.ID], "re-import must produce the same IDs")
	}
}

func TestImportCSV_SkipsBadRows(t *testing.T) {
	csv := `nom,commune,latitude,longitude
,Paris,48.85,2.35
Mairie,Paris,not-a-number,2.35
Mairie,Paris,95.0,2.35
Bibliothèque,Paris,48.85,2.35
`
	sink := &fakeSink{}
	res, err := ImportCSV(context.Background(), sink, strings.NewReader(csv), Options{
		Source: model.SourceServicePublic,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, int64(1), res.Upserted)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "Bibliothèque", sink.all()[0].Erp.Nom)
}

func TestImportCSV_NormalizesContradictions(t *testing.T) {
	// A ramp answer on an exterior path declared absent is cleared, not
	// rejected: bulk files are best-effort.
	csv := `nom,commune,latitude,longitude,cheminement_ext_presence,cheminement_ext_rampe
Poste,Nantes,47.21,-1.55,non,fixe
`
	sink := &fakeSink{}
	res, err := ImportCSV(context.Background(), sink, strings.NewReader(csv), Options{
		Source: model.SourceServicePublic,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Upserted)
	assert.GreaterOrEqual(t, res.Normalized, int64(1))

	rows := sink.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Access.CheminementExtRampe)
}

func TestImportCSV_Batching(t *testing.T) {
	var b strings.Builder
	b.WriteString("source_id,nom,commune,latitude,longitude\n")
	for i := 0; i < 5; i++ {
		b.WriteString("id-")
		b.WriteByte(byte('0' + i))
		b.WriteString(",Mairie,Lille,50.63,3.06\n")
	}

	sink := &fakeSink{}
	res, err := ImportCSV(context.Background(), sink, strings.NewReader(b.String()), Options{
		Source:    model.SourceServicePublic,
		BatchSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Upserted)
	assert.Len(t, sink.batches, 3)
}

func TestImportCSV_DryRunWritesNothing(t *testing.T) {
	sink := &fakeSink{failAll: true}
	res, err := ImportCSV(context.Background(), sink, strings.NewReader(sampleCSV), Options{
		Source: model.SourceGendarmerie,
		DryRun: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, int64(0), res.Upserted)
	assert.Empty(t, sink.batches)
}

func TestImportCSV_MissingRequiredColumn(t *testing.T) {
	_, err := ImportCSV(context.Background(), &fakeSink{}, strings.NewReader("nom,commune\nA,B\n"), Options{
		Source: model.SourcePublic,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestImportCSV_RequiresSource(t *testing.T) {
	_, err := ImportCSV(context.Background(), &fakeSink{}, strings.NewReader(sampleCSV), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source is required")
}

func TestImportCSV_FailedBatchAborts(t *testing.T) {
	sink := &fakeSink{failAll: true}
	_, err := ImportCSV(context.Background(), sink, strings.NewReader(sampleCSV), Options{
		Source: model.SourceGendarmerie,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write batch")
}
