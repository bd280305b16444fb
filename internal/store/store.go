// Package store persists establishments, accessibility records and
// subscriptions behind a backend-neutral interface, with PostgreSQL for
// production and SQLite for local use.
package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the accessibility directory.
type Store interface {
	// Establishments
	CreateErp(ctx context.Context, e *model.Erp) error
	UpdateErp(ctx context.Context, e *model.Erp) error
	GetErpByID(ctx context.Context, id string) (*model.Erp, error)
	GetErpBySlug(ctx context.Context, slug string) (*model.Erp, error)
	CountPublished(ctx context.Context) (int, error)

	// Accessibility records
	SaveAccessibilite(ctx context.Context, a *model.Accessibilite) error
	GetAccessibilite(ctx context.Context, erpID string) (*model.Accessibilite, error)
	RecomputeCompletionRates(ctx context.Context) (int, error)

	// Subscriptions
	Subscribe(ctx context.Context, erpID, userID string) error
	Unsubscribe(ctx context.Context, erpID, userID string) error
	ListSubscriptions(ctx context.Context, erpID string) ([]model.Subscription, error)

	// Bulk import
	UpsertBatch(ctx context.Context, batch []dedupe.Candidate) (int64, error)

	// Duplicate scan
	NextDedupePage(ctx context.Context, cursor string, limit int) ([]dedupe.Candidate, string, error)
	ApplyMerge(ctx context.Context, canonicalID string, duplicateIDs []string, merged *model.Accessibilite, accessChanged bool) (dedupe.MergeStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// erpColumns is the establishment table's column list, in scan order.
var erpColumns = []string{
	"id", "slug", "nom", "nom_normalise", "activite",
	"numero", "voie", "commune", "code_postal", "code_insee",
	"latitude", "longitude", "geohash",
	"source", "source_id", "user_id", "business_owner", "administration",
	"published", "permanently_closed", "created_at", "updated_at",
}

// cursorSep joins the (commune, nom_normalise, id) scan cursor. Unit separator
// cannot appear in any of the three parts.
const cursorSep = "\x1f"

func encodeCursor(e *model.Erp) string {
	return strings.Join([]string{e.Commune, e.NomNormalise, e.ID}, cursorSep)
}

func decodeCursor(cursor string) (commune, nom, id string, ok bool) {
	parts := strings.SplitN(cursor, cursorSep, 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func placeholders(n int, numbered bool) []string {
	out := make([]string, n)
	for i := range out {
		if numbered {
			out[i] = "$" + strconv.Itoa(i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}
