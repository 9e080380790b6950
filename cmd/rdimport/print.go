package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/reconcile"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/store"
)

func printReview(w io.Writer, rv reconcile.Review, target int, threshold float64) {
	fmt.Fprintf(w, "%s\n\n", rv.Analysis.Filename)

	for i, sheet := range rv.Analysis.Sheets {
		marker := ""
		if i == target {
			marker = "  [import]"
		}
		fmt.Fprintf(w, "%s  %s (%.0f%%)  %d rows%s\n",
			sheet.SheetName, sheet.DetectedCategory, sheet.CategoryConfidence*100, sheet.RowCount, marker)

		overlay := rv.Overlays[i]
		for _, col := range sheet.ColumnMappings {
			mapped := "-"
			if f, ok := overlay.FieldFor(col.SourceColumn); ok {
				mapped = string(f)
			}
			line := fmt.Sprintf("  %-24s → %-12s", col.SourceColumn, mapped)
			if s := col.Suggested(); s != "" {
				line += fmt.Sprintf("  suggested %s %.0f%%", s, col.Confidence*100)
				if col.Confidence <= threshold {
					line += " (below threshold)"
				}
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
		for _, issue := range sheet.Issues {
			fmt.Fprintf(w, "  ! %s\n", issue)
		}
		fmt.Fprintln(w)
	}

	for _, r := range rv.Analysis.Recommendations {
		fmt.Fprintf(w, "• %s\n", r)
	}
}

func printHistory(w io.Writer, imports []store.Import) {
	if len(imports) == 0 {
		fmt.Fprintln(w, "No imports recorded.")
		return
	}

	total := 0
	for _, imp := range imports {
		fmt.Fprintf(w, "  %s  %-10s %-8s %5d/%-5d  %s / %s",
			imp.CreatedAt.Local().Format("2006-01-02 15:04"),
			imp.StudyID,
			imp.DataType,
			imp.ImportedCount,
			imp.RowCount,
			imp.Filename,
			imp.SheetName,
		)
		if imp.Status == store.StatusFailed {
			fmt.Fprintf(w, "  [failed: %s]", imp.Error)
		} else {
			total += imp.ImportedCount
		}
		fmt.Fprintln(w)

		if len(imp.Mappings) > 0 {
			fields := make([]string, 0, len(imp.Mappings))
			for f := range imp.Mappings {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			pairs := make([]string, len(fields))
			for i, f := range fields {
				pairs[i] = f + "=" + imp.Mappings[f]
			}
			fmt.Fprintf(w, "      %s\n", strings.Join(pairs, ", "))
		}
	}
	fmt.Fprintf(w, "\n%d records imported (%d attempts)\n", total, len(imports))
}
