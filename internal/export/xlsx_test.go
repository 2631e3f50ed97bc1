package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lca-gsa/internal/model"
)

func sheetRows(t *testing.T, f *xlsx.File, name string) [][]string {
	t.Helper()
	sheet, ok := f.Sheet[name]
	require.True(t, ok, "sheet %s", name)
	var out [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		out = append(out, cells)
	}
	return out
}

func TestWriteXLSX(t *testing.T) {
	report := &model.SensitivityReport{
		Method:    model.MethodSpearman,
		Linearity: []model.LinearityPoint{{Iterations: 50, Statistic: 0.5}, {Iterations: 100, Statistic: 0.75}},
		Rows: []model.SensitivityRow{{
			Rank:      1,
			Parameter: model.ParameterIndex{Row: 2, Col: 1},
			Provenance: model.Provenance{
				InputName: "steel production", InputLocation: "GLO", OutputName: "electricity production",
				OutputLocation: "CH", ExchangeType: "technosphere", ExchangeAmount: 0.5, ExchangeUnit: "kg",
			},
			Index:        0.25,
			Contribution: 0.8,
			Method:       model.MethodSpearman,
		}},
	}
	curve := []model.ValidationPoint{{Influential: 10, Correlation: 0.5}}

	path := filepath.Join(t.TempDir(), "gsa.xlsx")
	require.NoError(t, WriteXLSX(path, report, curve))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{SheetRanking, SheetLinearity, SheetValidation},
		[]string{f.Sheets[0].Name, f.Sheets[1].Name, f.Sheets[2].Name})

	ranking := sheetRows(t, f, SheetRanking)
	require.Len(t, ranking, 2)
	assert.Equal(t, rankingHeader, ranking[0])
	assert.Equal(t, []string{
		"1", "steel production", "GLO", "", "electricity production", "CH", "technosphere",
		"5.00e-01 kg", "0.25", "0.8", model.MethodSpearman,
	}, ranking[1])

	linearity := sheetRows(t, f, SheetLinearity)
	require.Len(t, linearity, 3)
	assert.Equal(t, []string{"100", "0.75"}, linearity[2])

	validation := sheetRows(t, f, SheetValidation)
	require.Len(t, validation, 2)
	assert.Equal(t, []string{"10", "0.5"}, validation[1])
}

func TestWriteXLSX_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteXLSX(path, nil, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, sheetRows(t, f, SheetRanking), 1)
	assert.Len(t, sheetRows(t, f, SheetValidation), 1)
}
