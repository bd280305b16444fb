package store

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erp-cli/internal/geo"
	"github.com/acceslibre/erp-cli/internal/model"
	"github.com/acceslibre/erp-cli/internal/schema"
)

// erpInsertColumns extends erpColumns with the EWKB geometry, which is written
// on every save but never scanned back (latitude/longitude are authoritative).
var erpInsertColumns = append(append([]string{}, erpColumns...), "geom")

// accessColumns is the accessibility table's column list: erp_id, the registry
// fields in registry order, then the computed rate and timestamp.
func accessColumns() []string {
	cols := []string{"erp_id"}
	cols = append(cols, schema.FieldNames()...)
	return append(cols, "completion_rate", "updated_at")
}

// accessColumnType maps a registry field to its PostgreSQL column type.
func accessColumnType(name string, sqlite bool) string {
	acc, _ := model.AccessorFor(name)
	switch acc.Kind {
	case schema.KindBool:
		if sqlite {
			return "INTEGER"
		}
		return "BOOLEAN"
	case schema.KindNumber:
		return "INTEGER"
	case schema.KindMulti:
		if sqlite {
			return "TEXT" // JSON array
		}
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

// accessColumnDDL renders the per-field column definitions for the migration.
func accessColumnDDL(sqlite bool) string {
	var b strings.Builder
	for _, name := range schema.FieldNames() {
		b.WriteString("\t")
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(accessColumnType(name, sqlite))
		b.WriteString(",\n")
	}
	return b.String()
}

// erpWriteArgs renders an establishment in erpInsertColumns order.
func erpWriteArgs(e *model.Erp) ([]any, error) {
	geom, err := geo.EncodePoint(e.Longitude, e.Latitude)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode location for %s", e.ID)
	}
	return []any{
		e.ID, e.Slug, e.Nom, e.NomNormalise, e.Activite,
		e.Numero, e.Voie, e.Commune, e.CodePostal, e.CodeInsee,
		e.Latitude, e.Longitude, e.Geohash,
		string(e.Source), e.SourceID, e.UserID, e.BusinessOwner, e.Administration,
		e.Published, e.PermanentlyClosed, e.CreatedAt, e.UpdatedAt,
		geom,
	}, nil
}

// erpScanDests returns scan destinations matching erpColumns order.
func erpScanDests(e *model.Erp) []any {
	return []any{
		&e.ID, &e.Slug, &e.Nom, &e.NomNormalise, &e.Activite,
		&e.Numero, &e.Voie, &e.Commune, &e.CodePostal, &e.CodeInsee,
		&e.Latitude, &e.Longitude, &e.Geohash,
		&e.Source, &e.SourceID, &e.UserID, &e.BusinessOwner, &e.Administration,
		&e.Published, &e.PermanentlyClosed, &e.CreatedAt, &e.UpdatedAt,
	}
}

// accessWriteArgs renders an accessibility record in accessColumns order.
// Empty carriers become NULL so both backends store absent answers uniformly.
func accessWriteArgs(a *model.Accessibilite, sqlite bool) ([]any, error) {
	args := make([]any, 0, len(schema.FieldNames())+3)
	args = append(args, a.ErpID)
	for _, name := range schema.FieldNames() {
		acc, _ := model.AccessorFor(name)
		v := acc.Get(a)
		if model.ValueEmpty(acc.Kind, v) {
			args = append(args, nil)
			continue
		}
		if acc.Kind == schema.KindMulti && sqlite {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, eris.Wrapf(err, "store: marshal %s", name)
			}
			args = append(args, string(data))
			continue
		}
		args = append(args, v)
	}
	return append(args, a.CompletionRate, a.UpdatedAt), nil
}
