// Package export renders the published directory to CSV for the open-data
// feed. Columns come from the field registry so the file tracks schema
// changes without exporter edits.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erp-cli/internal/dedupe"
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

// Source streams published establishments with their accessibility records.
// The store's duplicate-scan cursor doubles as the export iterator.
type Source interface {
	NextDedupePage(ctx context.Context, cursor string, limit int) ([]dedupe.Candidate, string, error)
}

// multiSep joins multi-valued answers inside one CSV cell.
const multiSep = "|"

const pageSize = 500

// identityColumns precede the registry fields in every export row.
var identityColumns = []string{
	"id", "slug", "nom", "activite",
	"numero", "voie", "commune", "code_postal", "code_insee",
	"latitude", "longitude", "source", "completion_rate",
}

// Header returns the export column list.
func Header() []string {
	return append(append([]string{}, identityColumns...), schema.FieldNames()...)
}

// WriteCSV streams every published establishment to w. Returns the number of
// data rows written.
func WriteCSV(ctx context.Context, src Source, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return 0, eris.Wrap(err, "export: write header")
	}

	log := zap.L().Named("export")
	rows := 0
	cursor := ""
	for {
		page, next, err := src.NextDedupePage(ctx, cursor, pageSize)
		if err != nil {
			return rows, eris.Wrap(err, "export: read page")
		}
		for _, c := range page {
			if err := cw.Write(row(c)); err != nil {
				return rows, eris.Wrapf(err, "export: write %s", c.Erp.Slug)
			}
			rows++
		}
		if next == "" || len(page) == 0 {
			break
		}
		cursor = next
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, eris.Wrap(err, "export: flush")
	}
	log.Info("export complete", zap.Int("rows", rows))
	return rows, nil
}

func row(c dedupe.Candidate) []string {
	e, a := c.Erp, c.Access
	out := []string{
		e.ID, e.Slug, e.Nom, e.Activite,
		e.Numero, e.Voie, e.Commune, e.CodePostal, e.CodeInsee,
		strconv.FormatFloat(e.Latitude, 'f', -1, 64),
		strconv.FormatFloat(e.Longitude, 'f', -1, 64),
		string(e.Source),
		strconv.FormatFloat(a.CompletionRate, 'f', 2, 64),
	}
	for _, name := range schema.FieldNames() {
		out = append(out, Cell(a, name))
	}
	return out
}

// Cell formats one accessibility answer for a CSV cell; empty answers render
// as the empty string.
func Cell(a *model.Accessibilite, name string) string {
	acc, ok := model.AccessorFor(name)
	if !ok {
		return ""
	}
	v := acc.Get(a)
	if model.ValueEmpty(acc.Kind, v) {
		return ""
	}
	switch acc.Kind {
	case schema.KindBool:
		return strconv.FormatBool(*v.(*bool))
	case schema.KindNumber:
		return strconv.Itoa(*v.(*int))
	case schema.KindMulti:
		return strings.Join(v.([]string), multiSep)
	default:
		return v.(string)
	}
}
