package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/inventory"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	StyleError   = lipgloss.NewStyle().Foreground(colorRed)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleBorder = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Run Summary
// =============================================================================

// printSummary reports the outcome of a fetch run.
func printSummary(o *inventory.Outcome, stats *runStats, runDir, inventoryPath string) {
	fmt.Println()
	switch {
	case o.Total == 0:
		printInfo("No dependencies declared")
	case len(o.Failures) == 0:
		printSuccess("Inventoried %s of %s dependencies", count(len(o.Records)), count(o.Total))
	default:
		printWarning("Inventoried %d of %d dependencies, %d failed", len(o.Records), o.Total, len(o.Failures))
	}

	printKeyValue("Run", o.RunID)
	printKeyValue("Directory", runDir)
	printKeyValue("Downloaded", formatBytes(stats.bytes.Load()))
	printKeyValue("Requests", strconv.FormatInt(stats.requests.Load(), 10))
	if hits, misses := stats.cacheHits.Load(), stats.cacheMiss.Load(); hits+misses > 0 {
		printKeyValue("Cache", fmt.Sprintf("%d hits, %d misses", hits, misses))
	}
	printFile(inventoryPath)

	if len(o.Failures) > 0 {
		fmt.Println()
		fmt.Println(failuresTable(o.Failures))
	}
}

func failuresTable(failures []inventory.Failure) string {
	rows := make([][]string, len(failures))
	for i, f := range failures {
		rows[i] = []string{f.Package, f.Constraint, string(f.Code), errs.UserMessage(f.Err)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Package", "Constraint", "Kind", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeader
			case col == 2:
				return StyleError
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// recordsTable renders inventory records with the package column first.
func recordsTable(records []inventory.Record) string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Package, r.Version, r.License, r.Homepage}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Package", "Version", "License", "Homepage").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeader
			case col == 2 && records[row].License == "":
				return StyleWarning
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func count(n int) string { return StyleNumber.Render(strconv.Itoa(n)) }

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
