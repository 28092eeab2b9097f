package ktf

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sebfabre/ktf/runner"
	"github.com/sebfabre/ktf/types"
)

// printResultsTable prints the results of a test run to the console.
func (s *Service) printResultsTable(result *runner.RunnerResult) {
	s.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status", "Failure",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Failure", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	// Handles in name order, each followed by its test invocations.
	names := make([]string, 0, len(result.Handles))
	for name := range result.Handles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		hr := result.Handles[name]
		t.AppendRow(table.Row{
			"Handle",
			fmt.Sprintf("%s (%s)", hr.Name, hr.Version),
			formatDuration(hr.Duration),
			"-", // Don't count the handle as a test
			hr.Stats.Passed,
			hr.Stats.Failed,
			hr.Stats.Skipped,
			getResultString(hr.Status),
			"",
		})

		for i, tr := range hr.Tests {
			prefix := "├──"
			if i == len(hr.Tests)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Test",
				fmt.Sprintf("%s %s", prefix, tr.DisplayName()),
				formatDuration(tr.Duration),
				"1",
				boolToInt(tr.Status == types.TestStatusPass),
				boolToInt(tr.Status == types.TestStatusFail),
				boolToInt(tr.Status == types.TestStatusSkip),
				getResultString(tr.Status),
				extractFailureMessage(tr),
			})
		}
		t.AppendSeparator()
	}

	for i, tr := range result.Global {
		prefix := "├──"
		if i == len(result.Global)-1 {
			prefix = "└──"
		}
		t.AppendRow(table.Row{
			"Test",
			fmt.Sprintf("%s %s", prefix, tr.DisplayName()),
			formatDuration(tr.Duration),
			"1",
			boolToInt(tr.Status == types.TestStatusPass),
			boolToInt(tr.Status == types.TestStatusFail),
			boolToInt(tr.Status == types.TestStatusSkip),
			getResultString(tr.Status),
			extractFailureMessage(tr),
		})
	}

	// Style follows the overall run status.
	if result.Status == types.TestStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else if result.Status == types.TestStatusSkip {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Skipped,
		getResultString(result.Status),
		fmt.Sprintf("%d assertions", result.Assertions),
	})

	t.Render()
}
