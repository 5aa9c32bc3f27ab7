package analyzer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Report renders a consolidated Markdown bug report across all analyzed
// calls, grouped by severity and tallied by category.
func Report(analyses []*Analysis, generatedAt time.Time) string {
	var all []Bug
	for _, a := range analyses {
		for _, bug := range a.Bugs {
			bug.Scenario = a.ScenarioName
			all = append(all, bug)
		}
	}

	bySeverity := map[string][]Bug{}
	for _, bug := range all {
		bySeverity[bug.Severity] = append(bySeverity[bug.Severity], bug)
	}

	var b strings.Builder
	b.WriteString("# Bug Report: Voice Agent Under Test\n")
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Calls analyzed: %d\n\n", len(analyses))

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total bugs found: %d\n", len(all))
	fmt.Fprintf(&b, "- HIGH severity: %d\n", len(bySeverity["HIGH"]))
	fmt.Fprintf(&b, "- MEDIUM severity: %d\n", len(bySeverity["MEDIUM"]))
	fmt.Fprintf(&b, "- LOW severity: %d\n", len(bySeverity["LOW"]))

	b.WriteString("\n## Bug Categories\n")
	for _, cat := range categoryCounts(all) {
		fmt.Fprintf(&b, "- %s: %d\n", cat.name, cat.count)
	}

	b.WriteString("\n## Per-Call Quality Summary\n")
	for _, a := range analyses {
		fmt.Fprintf(&b, "- **%s**: %s (%d bugs)\n", a.ScenarioName, a.OverallQuality, len(a.Bugs))
	}

	for _, severity := range []string{"HIGH", "MEDIUM", "LOW"} {
		bugs := bySeverity[severity]
		if len(bugs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s Severity Bugs\n", severity)
		for _, bug := range bugs {
			fmt.Fprintf(&b, "\n### [%s] %s\n", bug.Scenario, bug.Category)
			fmt.Fprintf(&b, "**Description**: %s\n", bug.Description)
			quote := bug.Quote
			if quote == "" {
				quote = "N/A"
			}
			fmt.Fprintf(&b, "**Quote**: _%s_\n", quote)
			fmt.Fprintf(&b, "**Recommendation**: %s\n", bug.Recommendation)
		}
	}

	var positives []string
	for _, a := range analyses {
		positives = append(positives, a.PositiveObservations...)
	}
	if len(positives) > 0 {
		b.WriteString("\n## Positive Observations\n")
		for _, obs := range positives {
			fmt.Fprintf(&b, "- %s\n", obs)
		}
	}

	return b.String()
}

// WriteReport renders the report and writes it to path.
func WriteReport(analyses []*Analysis, path string, generatedAt time.Time) error {
	return os.WriteFile(path, []byte(Report(analyses, generatedAt)), 0o644)
}

type categoryCount struct {
	name  string
	count int
}

// categoryCounts tallies bugs per category, most frequent first, with
// ties broken alphabetically so the report is deterministic.
func categoryCounts(bugs []Bug) []categoryCount {
	tally := map[string]int{}
	for _, bug := range bugs {
		tally[bug.Category]++
	}
	out := make([]categoryCount, 0, len(tally))
	for name, count := range tally {
		out = append(out, categoryCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}
