// Package dedupe detects and merges duplicate establishment records:
// geographic classification of candidate clusters, canonical record
// selection, provenance-trusted field merge and the batch engine driving
// the whole scan.
package dedupe

import (
	"github.com/rotisserie/eris"

	"github.com/acceslibre/erp-cli/internal/geo"
	"github.com/acceslibre/erp-cli/internal/model"
)

// Identification failures: the cluster cannot be resolved at all, as opposed
// to a classification outcome.
var (
	ErrClusterTooSmall      = eris.New("dedupe: cluster needs at least two establishments")
	ErrMissingAccessibility = eris.New("dedupe: every cluster member needs an accessibility record")
)

// Candidate pairs an establishment with its accessibility record for
// classification and merge.
type Candidate struct {
	Erp    *model.Erp
	Access *model.Accessibilite
}

// Outcome is the classification of a candidate cluster.
type Outcome int

const (
	// OutcomeDuplicate means the cluster can be merged automatically.
	OutcomeDuplicate Outcome = iota
	// OutcomeNeedsReview means a human must look at the cluster.
	OutcomeNeedsReview
	// OutcomeDistinct means the records are separate establishments.
	OutcomeDistinct
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNeedsReview:
		return "needs_review"
	case OutcomeDistinct:
		return "distinct"
	}
	return "unknown"
}

// Classification is the result of examining one cluster. Classification is a
// value, not an error: only identification failures surface as errors.
type Classification struct {
	Outcome      Outcome
	Reason       string
	MaxDistanceM float64
}

// Thresholds are the distance cutoffs of the detection policy.
type Thresholds struct {
	// AutoMergeM is the distance under which same-name records merge
	// without further checks.
	AutoMergeM float64
	// ReviewM is the distance beyond which same-name records are distinct.
	ReviewM float64
}

// DefaultThresholds matches the production policy.
var DefaultThresholds = Thresholds{AutoMergeM: 75, ReviewM: 500}

// validateCluster enforces merge eligibility: two or more members, all
// carrying an accessibility record.
func validateCluster(cluster []Candidate) error {
	if len(cluster) < 2 {
		return eris.Wrapf(ErrClusterTooSmall, "got %d", len(cluster))
	}
	for _, c := range cluster {
		if c.Access == nil {
			return eris.Wrapf(ErrMissingAccessibility, "erp %s", c.Erp.ID)
		}
	}
	return nil
}

// Classify decides whether a cluster of published establishments sharing a
// normalized name and municipality are duplicates, need manual review, or
// are distinct places.
func Classify(cluster []Candidate, t Thresholds) (Classification, error) {
	if err := validateCluster(cluster); err != nil {
		return Classification{}, err
	}

	maxD := 0.0
	for i := range cluster {
		for j := i + 1; j < len(cluster); j++ {
			a, b := cluster[i].Erp, cluster[j].Erp
			d := geo.DistanceM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
			if d > maxD {
				maxD = d
			}
		}
	}

	switch {
	case maxD <= t.AutoMergeM:
		return Classification{Outcome: OutcomeDuplicate, MaxDistanceM: maxD}, nil
	case maxD > t.ReviewM:
		return Classification{
			Outcome:      OutcomeDistinct,
			Reason:       "distance above review threshold",
			MaxDistanceM: maxD,
		}, nil
	}

	c := checkForAutomaticMerge(cluster)
	c.MaxDistanceM = maxD
	return c, nil
}

// checkForAutomaticMerge applies the mid-range (75m–500m) heuristic: merge
// only when every member shares the activity category and the street numbers
// are compatible.
func checkForAutomaticMerge(cluster []Candidate) Classification {
	first := cluster[0].Erp
	for _, c := range cluster[1:] {
		if model.NormalizeName(c.Erp.Activite) != model.NormalizeName(first.Activite) {
			return Classification{Outcome: OutcomeNeedsReview, Reason: "differing activity categories"}
		}
	}

	for _, c := range cluster[1:] {
		if model.NormalizeName(c.Erp.Voie) != model.NormalizeName(first.Voie) {
			return Classification{Outcome: OutcomeDistinct, Reason: "differing street names"}
		}
	}

	numeros := map[string]bool{}
	nonEmpty := 0
	for _, c := range cluster {
		if c.Erp.Numero == "" {
			continue
		}
		nonEmpty++
		numeros[c.Erp.Numero] = true
	}
	if nonEmpty <= 1 || len(numeros) == 1 {
		return Classification{Outcome: OutcomeDuplicate}
	}
	return Classification{Outcome: OutcomeNeedsReview, Reason: "ambiguous street numbers"}
}
