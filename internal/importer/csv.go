// Package importer loads bulk establishment datasets from CSV into the
// store. Rows carry identity columns plus any accessibility fields named in
// the registry; unknown columns are ignored so partner files can carry
// extras. Re-running an import is idempotent: row identifiers are derived
// from the source and the provider's row key.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

// Sink is the subset of the store an import writes through.
type Sink interface {
	UpsertBatch(ctx context.Context, batch []dedupe.Candidate) (int64, error)
}

// Options tunes one import run.
type Options struct {
	// Source tags every imported record; required.
	Source model.Source
	// Concurrency bounds in-flight batch writes.
	Concurrency int
	// BatchSize is the number of rows per store write.
	BatchSize int
	// DryRun parses and validates but writes nothing.
	DryRun bool
}

// Result summarizes an import run.
type Result struct {
	// Rows is the number of data rows read from the file.
	Rows int
	// Skipped counts rows rejected for missing identity or bad coordinates.
	Skipped int
	// Upserted is the number of rows written to the store.
	Upserted int64
	// Normalized counts accessibility answers cleared because a governing
	// answer made them unreachable.
	Normalized int64
}

const (
	defaultConcurrency = 5
	defaultBatchSize   = 500
)

// identity columns an import file may carry; nom, commune, latitude and
// longitude are required.
var identityFields = map[string]bool{
	"source_id": true, "nom": true, "activite": true,
	"numero": true, "voie": true, "commune": true,
	"code_postal": true, "code_insee": true,
	"latitude": true, "longitude": true,
	"permanently_closed": true,
}

// ImportCSV reads r and upserts its rows through sink in bounded-concurrency
// batches. Malformed rows are skipped and counted, never fatal; a failed
// batch write aborts the run.
func ImportCSV(ctx context.Context, sink Sink, r io.Reader, opts Options) (*Result, error) {
	if opts.Source == "" {
		return nil, eris.New("importer: source is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "importer: read header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	log := zap.L().Named("importer").With(zap.String("source", string(opts.Source)))

	var (
		upserted   atomic.Int64
		normalized atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	flush := func(batch []dedupe.Candidate) {
		if len(batch) == 0 || opts.DryRun {
			return
		}
		g.Go(func() error {
			n, err := sink.UpsertBatch(gctx, batch)
			if err != nil {
				return eris.Wrap(err, "importer: write batch")
			}
			upserted.Add(n)
			return nil
		})
	}

	res := &Result{}
	batch := make([]dedupe.Candidate, 0, opts.BatchSize)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Skipped++
			log.Warn("unreadable row", zap.Int("line", line), zap.Error(err))
			continue
		}
		res.Rows++

		cand, err := parseRow(record, cols, opts.Source)
		if err != nil {
			res.Skipped++
			log.Warn("skipping row", zap.Int("line", line), zap.Error(err))
			continue
		}
		normalized.Add(int64(cand.Access.Normalize()))

		batch = append(batch, cand)
		if len(batch) == opts.BatchSize {
			flush(batch)
			batch = make([]dedupe.Candidate, 0, opts.BatchSize)
		}
	}
	flush(batch)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Upserted = upserted.Load()
	res.Normalized = normalized.Load()

	log.Info("import complete",
		zap.Int("rows", res.Rows),
		zap.Int("skipped", res.Skipped),
		zap.Int64("upserted", res.Upserted),
		zap.Int64("normalized", res.Normalized),
		zap.Bool("dry_run", opts.DryRun))
	return res, nil
}

// columnMap resolves header names to record indexes, split between identity
// columns and registry fields.
type columnMap struct {
	identity map[string]int
	access   map[string]int
}

func mapHeader(header []string) (*columnMap, error) {
	cm := &columnMap{
		identity: make(map[string]int),
		access:   make(map[string]int),
	}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case identityFields[name]:
			cm.identity[name] = i
		case schema.Get(name) != nil:
			cm.access[name] = i
		}
	}
	for _, required := range []string{"nom", "commune", "latitude", "longitude"} {
		if _, ok := cm.identity[required]; !ok {
			return nil, eris.Errorf("importer: missing required column %q", required)
		}
	}
	return cm, nil
}

func (cm *columnMap) get(record []string, name string) string {
	i, ok := cm.identity[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseRow(record []string, cm *columnMap, source model.Source) (dedupe.Candidate, error) {
	nom := cm.get(record, "nom")
	commune := cm.get(record, "commune")
	if nom == "" || commune == "" {
		return dedupe.Candidate{}, eris.New("empty nom or commune")
	}
	lat, err := strconv.ParseFloat(cm.get(record, "latitude"), 64)
	if err != nil {
		return dedupe.Candidate{}, eris.Wrap(err, "bad latitude")
	}
	lng, err := strconv.ParseFloat(cm.get(record, "longitude"), 64)
	if err != nil {
		return dedupe.Candidate{}, eris.Wrap(err, "bad longitude")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return dedupe.Candidate{}, eris.Errorf("coordinates out of range: %f, %f", lat, lng)
	}

	sourceID := cm.get(record, "source_id")
	closed := parseBool(cm.get(record, "permanently_closed"))
	e := &model.Erp{
		ID:                rowID(source, sourceID, nom, commune, lat, lng),
		Nom:               nom,
		Activite:          cm.get(record, "activite"),
		Numero:            cm.get(record, "numero"),
		Voie:              cm.get(record, "voie"),
		Commune:           commune,
		CodePostal:        cm.get(record, "code_postal"),
		CodeInsee:         cm.get(record, "code_insee"),
		Latitude:          lat,
		Longitude:         lng,
		Source:            source,
		SourceID:          sourceID,
		Published:         true,
		PermanentlyClosed: closed != nil && *closed,
	}

	a := &model.Accessibilite{ErpID: e.ID}
	for name, i := range cm.access {
		if i >= len(record) {
			continue
		}
		setField(a, name, strings.TrimSpace(record[i]))
	}
	return dedupe.Candidate{Erp: e, Access: a}, nil
}

// rowID derives a stable identifier so re-importing a dataset updates rows in
// place. Providers without a row key fall back to the name and location.
func rowID(source model.Source, sourceID, nom, commune string, lat, lng float64) string {
	key := string(source) + "/" + sourceID
	if sourceID == "" {
		key = strings.Join([]string{
			string(source), nom, commune,
			strconv.FormatFloat(lat, 'f', 6, 64),
			strconv.FormatFloat(lng, 'f', 6, 64),
		}, "/")
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("acceslibre/"+key)).String()
}

func setField(a *model.Accessibilite, name, raw string) {
	if raw == "" {
		return
	}
	acc, ok := model.AccessorFor(name)
	if !ok {
		return
	}
	switch acc.Kind {
	case schema.KindBool:
		if b := parseBool(raw); b != nil {
			acc.Set(a, b)
		}
	case schema.KindNumber:
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			acc.Set(a, &n)
		}
	case schema.KindMulti:
		parts := strings.Split(raw, "|")
		vals := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				vals = append(vals, p)
			}
		}
		acc.Set(a, vals)
	default:
		acc.Set(a, raw)
	}
}

// parseBool accepts the spellings seen across partner files.
func parseBool(raw string) *bool {
	t, f := true, false
	switch strings.ToLower(raw) {
	case "true", "1", "oui", "vrai", "yes":
		return &t
	case "false", "0", "non", "faux", "no":
		return &f
	}
	return nil
}
