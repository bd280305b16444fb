package dedupe

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteReviewXLSX writes the manual-review clusters to an xlsx worksheet for
// the moderation team.
func WriteReviewXLSX(path string, rows []ReviewRow) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("manual review")
	if err != nil {
		return eris.Wrap(err, "dedupe: add review sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"commune", "nom", "reason", "max_distance_m", "slugs", "erp_ids"} {
		header.AddCell().Value = h
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().Value = r.Commune
		row.AddCell().Value = r.Nom
		row.AddCell().Value = r.Reason
		row.AddCell().Value = fmt.Sprintf("%.0f", r.MaxDistanceM)
		row.AddCell().Value = strings.Join(r.Slugs, ", ")
		row.AddCell().Value = strings.Join(r.ErpIDs, ", ")
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "dedupe: save review file %s", path)
	}
	return nil
}
