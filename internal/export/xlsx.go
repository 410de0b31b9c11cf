// Package export writes comparison results as XLSX workbooks.
package export

import (
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-recon/internal/compare"
	"github.com/sells-group/listing-recon/internal/model"
)

// Sheet names.
const (
	SheetSummary = "Summary"
	SheetFields  = "Fields"
	SheetSources = "Sources"
)

var (
	summaryHeader = []string{"Property ID", "Address", "Consistency", "Band", "Critical Issues", "Issues", "Suggestions", "Compared At"}
	sourcesHeader = []string{"Property ID", "Source", "Status", "Candidate ID", "Candidates", "Match Score", "Last Sync", "Error"}
)

// Workbook builds a three-sheet workbook: one summary row per property, one
// row per compared field with a display column per source, and one row per
// source connection.
func Workbook(results []*model.PropertyComparison) (*xlsx.File, error) {
	f := xlsx.NewFile()
	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "export: add summary sheet")
	}
	fields, err := f.AddSheet(SheetFields)
	if err != nil {
		return nil, eris.Wrap(err, "export: add fields sheet")
	}
	sources, err := f.AddSheet(SheetSources)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sources sheet")
	}

	sourceNames := sourceColumns(results)
	header(summary, summaryHeader)
	header(fields, append([]string{"Property ID", "Field", "Confidence", "Differs", "Significant"}, sourceNames...))
	header(sources, sourcesHeader)

	for _, pc := range results {
		if pc == nil {
			continue
		}
		row := summary.AddRow()
		text(row, pc.Property.ID)
		text(row, pc.Property.FullAddress())
		row.AddCell().SetInt(pc.OverallConsistency)
		text(row, compare.Band(pc.OverallConsistency))
		row.AddCell().SetInt(len(pc.CriticalIssues))
		text(row, strings.Join(pc.CriticalIssues, "; "))
		text(row, strings.Join(pc.Suggestions, "; "))
		text(row, pc.ComparedAt.UTC().Format(time.RFC3339))

		for _, cf := range pc.Fields {
			row := fields.AddRow()
			text(row, pc.Property.ID)
			text(row, cf.Label)
			row.AddCell().SetInt(cf.ConfidenceScore)
			text(row, yesNo(cf.HasDifferences))
			text(row, yesNo(cf.SignificantDifference))
			for _, name := range sourceNames {
				v, ok := cf.Sources[name]
				switch {
				case !ok:
					text(row, "")
				case v == nil:
					text(row, compare.Missing)
				default:
					text(row, v.Display)
				}
			}
		}

		for _, si := range pc.Sources {
			row := sources.AddRow()
			text(row, pc.Property.ID)
			text(row, si.Label)
			text(row, string(si.Status))
			text(row, si.CandidateID)
			row.AddCell().SetInt(si.Candidates)
			row.AddCell().SetFloat(si.MatchScore)
			if si.LastSync != nil {
				text(row, si.LastSync.UTC().Format(time.RFC3339))
			} else {
				text(row, "")
			}
			text(row, si.Error)
		}
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, results []*model.PropertyComparison) error {
	f, err := Workbook(results)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write workbook")
}

// WriteFile saves the workbook at path.
func WriteFile(path string, results []*model.PropertyComparison) error {
	f, err := Workbook(results)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// sourceColumns lists source names in first-seen order across results.
func sourceColumns(results []*model.PropertyComparison) []string {
	seen := make(map[string]bool)
	var names []string
	for _, pc := range results {
		if pc == nil {
			continue
		}
		for _, si := range pc.Sources {
			if !seen[si.Name] {
				seen[si.Name] = true
				names = append(names, si.Name)
			}
		}
	}
	return names
}

func header(sheet *xlsx.Sheet, cols []string) {
	style := xlsx.NewStyle()
	style.Font.Bold = true
	style.ApplyFont = true
	row := sheet.AddRow()
	for _, c := range cols {
		cell := row.AddCell()
		cell.SetString(c)
		cell.SetStyle(style)
	}
}

func text(row *xlsx.Row, s string) {
	row.AddCell().SetString(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
