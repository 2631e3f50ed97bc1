// Package export writes analysis results to spreadsheets.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lca-gsa/internal/model"
)

// Sheet names of the workbook.
const (
	SheetRanking    = "Ranking"
	SheetLinearity  = "Linearity"
	SheetValidation = "Validation"
)

var rankingHeader = []string{
	"GSA rank", "Input name", "Input location", "Input categories",
	"Output name", "Output location", "Exchange type", "Exchange amount",
	"GSA index", "Contribution", "GSA method",
}

// WriteXLSX saves the ranking, the linearity curve and the validation curve to
// path. A nil report or empty curve yields a sheet with only its header.
func WriteXLSX(path string, report *model.SensitivityReport, curve []model.ValidationPoint) error {
	f := xlsx.NewFile()

	ranking, err := f.AddSheet(SheetRanking)
	if err != nil {
		return eris.Wrap(err, "export: add ranking sheet")
	}
	addHeader(ranking, rankingHeader)

	linearity, err := f.AddSheet(SheetLinearity)
	if err != nil {
		return eris.Wrap(err, "export: add linearity sheet")
	}
	addHeader(linearity, []string{"Iterations", "Sum of squared SRC"})

	if report != nil {
		for _, r := range report.Rows {
			row := ranking.AddRow()
			row.AddCell().SetInt(r.Rank)
			for _, s := range []string{
				r.Provenance.InputName, r.Provenance.InputLocation, r.Provenance.InputCategories,
				r.Provenance.OutputName, r.Provenance.OutputLocation, r.Provenance.ExchangeType,
				r.AmountDisplay(),
			} {
				row.AddCell().SetString(s)
			}
			row.AddCell().SetFloat(r.Index)
			row.AddCell().SetFloat(r.Contribution)
			row.AddCell().SetString(r.Method)
		}
		for _, p := range report.Linearity {
			row := linearity.AddRow()
			row.AddCell().SetInt(p.Iterations)
			row.AddCell().SetFloat(p.Statistic)
		}
	}

	validation, err := f.AddSheet(SheetValidation)
	if err != nil {
		return eris.Wrap(err, "export: add validation sheet")
	}
	addHeader(validation, []string{"Influential", "Spearman correlation"})
	for _, p := range curve {
		row := validation.AddRow()
		row.AddCell().SetInt(p.Influential)
		row.AddCell().SetFloat(p.Correlation)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}
