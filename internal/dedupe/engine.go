package dedupe

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/acceslibre/erp-cli/internal/geo"
	"github.com/acceslibre/erp-cli/internal/model"
)

// Store is the persistence surface the engine needs: a cursor over published,
// accessibility-bearing establishments ordered by (commune, normalized name,
// id), and the transactional merge write.
type Store interface {
	// NextDedupePage returns the next page after cursor, the cursor to
	// resume from, and an empty next cursor when the scan is done.
	NextDedupePage(ctx context.Context, cursor string, limit int) ([]Candidate, string, error)

	// ApplyMerge atomically updates the canonical accessibility record (when
	// accessChanged), re-points subscriptions from the duplicates to the
	// canonical establishment and deletes the duplicates.
	ApplyMerge(ctx context.Context, canonicalID string, duplicateIDs []string, merged *model.Accessibilite, accessChanged bool) (MergeStats, error)
}

// MergeStats reports what a merge write touched.
type MergeStats struct {
	SubscriptionsMoved int
	Deleted            int
}

// Config tunes the batch scan.
type Config struct {
	Thresholds Thresholds
	// PageSize is the cursor page size of the store scan.
	PageSize int
	// ClustersPerSecond throttles processing; zero or negative disables.
	ClustersPerSecond float64
	// Write enables merges; otherwise the run is a dry run that only
	// classifies and reports.
	Write bool
}

// ReviewRow is one cluster flagged for manual inspection.
type ReviewRow struct {
	Commune      string
	Nom          string
	Reason       string
	MaxDistanceM float64
	Slugs        []string
	ErpIDs       []string
}

// Report accumulates per-cluster outcomes over a run. Failures are
// per-cluster and never abort the batch.
type Report struct {
	Scanned            int
	Clusters           int
	Merged             int
	Deleted            int
	SubscriptionsMoved int
	NeedsReview        int
	Distinct           int
	UnhandledMulti     int
	Skipped            int
	Review             []ReviewRow

	// Geohash density of the scanned set. One oversized cell means a single
	// area dominates the duplicate surface.
	GeohashBuckets    int
	DensestBucket     string
	DensestBucketSize int
}

// Engine runs the duplicate scan. One cluster is the atomic unit: the run is
// interruptible between clusters and a partial run leaves no half-merged
// state.
type Engine struct {
	store   Store
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates an engine. A zero Thresholds falls back to the defaults.
func New(st Store, cfg Config) *Engine {
	if cfg.Thresholds.AutoMergeM <= 0 {
		cfg.Thresholds = DefaultThresholds
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	limit := rate.Inf
	if cfg.ClustersPerSecond > 0 {
		limit = rate.Limit(cfg.ClustersPerSecond)
	}
	return &Engine{
		store:   st,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     zap.L().Named("dedupe"),
	}
}

type clusterKey struct {
	commune string
	nom     string
}

// Run streams the published establishment set, cuts clusters at
// (commune, normalized name) boundaries and processes each one.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	var (
		group  []Candidate
		key    clusterKey
		cursor string
	)
	buckets := map[string]int{}

	for {
		rows, next, err := e.store.NextDedupePage(ctx, cursor, e.cfg.PageSize)
		if err != nil {
			return report, eris.Wrap(err, "dedupe: scan page")
		}

		for _, row := range rows {
			report.Scanned++
			bucket := row.Erp.Geohash
			if bucket == "" {
				bucket = geo.Bucket(row.Erp.Latitude, row.Erp.Longitude)
			}
			buckets[bucket]++
			k := clusterKey{commune: row.Erp.Commune, nom: row.Erp.NomNormalise}
			if len(group) > 0 && k != key {
				if err := e.processCluster(ctx, group, report); err != nil {
					return report, err
				}
				group = group[:0]
			}
			key = k
			group = append(group, row)
		}

		if next == "" || len(rows) == 0 {
			break
		}
		cursor = next
	}

	if err := e.processCluster(ctx, group, report); err != nil {
		return report, err
	}

	report.GeohashBuckets = len(buckets)
	report.DensestBucket, report.DensestBucketSize = densestBucket(buckets)

	e.log.Info("scan complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("clusters", report.Clusters),
		zap.Int("merged", report.Merged),
		zap.Int("needs_review", report.NeedsReview),
		zap.Int("unhandled_multi", report.UnhandledMulti),
		zap.Int("geohash_buckets", report.GeohashBuckets),
		zap.String("densest_bucket", report.DensestBucket),
		zap.Int("densest_bucket_size", report.DensestBucketSize),
		zap.Bool("write", e.cfg.Write),
	)
	return report, nil
}

// densestBucket returns the fullest geohash cell, breaking count ties on the
// lexically smaller cell so reruns report the same bucket.
func densestBucket(counts map[string]int) (string, int) {
	best, n := "", 0
	for b, c := range counts {
		if c > n || (c == n && n > 0 && b < best) {
			best, n = b, c
		}
	}
	return best, n
}

// processCluster handles one same-name group. Only context errors propagate;
// everything else is recorded in the report and the scan moves on.
func (e *Engine) processCluster(ctx context.Context, cluster []Candidate, report *Report) error {
	if len(cluster) < 2 {
		return nil
	}
	report.Clusters++

	if err := e.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "dedupe: interrupted")
	}

	if mixedClosedOpen(cluster) {
		report.NeedsReview++
		report.Review = append(report.Review, reviewRow(cluster, "cluster mixes open and permanently closed records", 0))
		return nil
	}

	cl, err := Classify(cluster, e.cfg.Thresholds)
	if err != nil {
		report.Skipped++
		e.log.Warn("cluster skipped", zap.String("commune", cluster[0].Erp.Commune),
			zap.String("nom", cluster[0].Erp.Nom), zap.Error(err))
		return nil
	}

	switch cl.Outcome {
	case OutcomeDistinct:
		report.Distinct++
		return nil

	case OutcomeNeedsReview:
		report.NeedsReview++
		report.Review = append(report.Review, reviewRow(cluster, cl.Reason, cl.MaxDistanceM))
		return nil
	}

	if len(cluster) > 2 {
		report.UnhandledMulti++
		report.Review = append(report.Review, reviewRow(cluster, "cluster larger than two records", cl.MaxDistanceM))
		return nil
	}

	main, dups, err := FindMainErp(cluster)
	if err != nil {
		report.Skipped++
		return nil
	}

	merged := Candidate{Erp: main.Erp, Access: main.Access.Clone()}
	changed := 0
	for _, dup := range dups {
		changed += MergeAccessibility(merged, dup)
	}
	// Field-wise resolution can adopt a dependent answer from the side whose
	// governor lost; clear those before the record is persisted.
	changed += merged.Access.Normalize()

	dupIDs := make([]string, len(dups))
	for i, d := range dups {
		dupIDs[i] = d.Erp.ID
	}

	e.log.Info("duplicate cluster",
		zap.String("canonical", main.Erp.Slug),
		zap.Strings("duplicates", dupIDs),
		zap.Float64("max_distance_m", cl.MaxDistanceM),
		zap.Int("fields_changed", changed),
		zap.Bool("write", e.cfg.Write),
	)

	if !e.cfg.Write {
		report.Merged++
		report.Deleted += len(dups)
		return nil
	}

	stats, err := e.store.ApplyMerge(ctx, main.Erp.ID, dupIDs, merged.Access, changed > 0)
	if err != nil {
		// A failed write rolls back that cluster only.
		report.Skipped++
		e.log.Error("merge failed", zap.String("canonical", main.Erp.ID), zap.Error(err))
		return nil
	}
	report.Merged++
	report.Deleted += stats.Deleted
	report.SubscriptionsMoved += stats.SubscriptionsMoved
	return nil
}

// mixedClosedOpen reports whether the cluster has both permanently closed and
// open members. Such clusters never merge automatically: a closed record must
// not be deleted ahead of an open one.
func mixedClosedOpen(cluster []Candidate) bool {
	closed := 0
	for _, c := range cluster {
		if c.Erp.PermanentlyClosed {
			closed++
		}
	}
	return closed > 0 && closed < len(cluster)
}

func reviewRow(cluster []Candidate, reason string, maxD float64) ReviewRow {
	row := ReviewRow{
		Commune:      cluster[0].Erp.Commune,
		Nom:          cluster[0].Erp.Nom,
		Reason:       reason,
		MaxDistanceM: maxD,
	}
	for _, c := range cluster {
		row.Slugs = append(row.Slugs, c.Erp.Slug)
		row.ErpIDs = append(row.ErpIDs, c.Erp.ID)
	}
	return row
}
