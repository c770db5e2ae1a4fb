// Package classify builds classification prompts, invokes the oracle and
// validates its answers. The matching decision itself is delegated
// entirely to the oracle; this package only guards the contract.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerline/sheetmap/pkg/llm"
	"github.com/ledgerline/sheetmap/pkg/schema"
	"github.com/ledgerline/sheetmap/pkg/tabular"
)

const (
	// sheetSampleRows bounds how much data per sheet goes into the prompt.
	sheetSampleRows = 2

	sheetSystemPrompt = "You are a data analysis assistant that specializes in identifying data structures. Always respond with ONLY the requested JSON format."

	sheetAnswerKey = "target_sheet"
)

// SheetClassifier picks the most likely data-bearing sheet in a workbook.
type SheetClassifier struct {
	oracle llm.Client
	log    *slog.Logger
}

// NewSheetClassifier creates a sheet classifier backed by the given oracle.
func NewSheetClassifier(oracle llm.Client, log *slog.Logger) *SheetClassifier {
	return &SheetClassifier{oracle: oracle, log: log}
}

// Classify asks the oracle which sheet contains the target data. The
// answer must be one of the workbook's sheet names; anything else is a
// failure surfaced to the caller, never a silent default. No retries at
// this layer.
func (c *SheetClassifier) Classify(ctx context.Context, wb *tabular.Workbook, registry *schema.Registry, contextHint string) (string, error) {
	if len(wb.Sheets) == 0 {
		return "", &ValidationFailure{Stage: "sheet", Reason: "workbook has no sheets"}
	}

	prompt, err := buildSheetPrompt(wb, registry, contextHint)
	if err != nil {
		return "", err
	}

	c.log.Debug("classifying target sheet", "sheets", len(wb.Sheets), "targetColumns", registry.Len(), "promptLen", len(prompt))

	response, err := c.oracle.Complete(ctx, sheetSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("sheet classification oracle call: %w", err)
	}

	result, err := llm.ExtractJSONObject(response)
	if err != nil {
		return "", &ParseFailure{Stage: "sheet", Reason: err.Error()}
	}

	raw, ok := result[sheetAnswerKey]
	if !ok {
		return "", &ValidationFailure{Stage: "sheet", Reason: fmt.Sprintf("no %q key in response", sheetAnswerKey)}
	}
	target, ok := raw.(string)
	if !ok || target == "" {
		return "", &ValidationFailure{Stage: "sheet", Reason: fmt.Sprintf("%q value is not a sheet name", sheetAnswerKey)}
	}
	if !wb.HasSheet(target) {
		return "", &ValidationFailure{
			Stage:    "sheet",
			Proposed: target,
			Reason:   fmt.Sprintf("identified sheet %q not found in the workbook", target),
		}
	}

	c.log.Info("target sheet identified", "sheet", target)
	return target, nil
}

func buildSheetPrompt(wb *tabular.Workbook, registry *schema.Registry, contextHint string) (string, error) {
	var b strings.Builder
	b.WriteString("You are tasked with identifying which sheet in a spreadsheet contains specific data.\n\n")
	b.WriteString("Here are the sheets in the file and their column names and sample data:\n\n")

	for _, sheet := range wb.Sheets {
		table, ok := wb.Table(sheet)
		if !ok {
			continue
		}
		columnsJSON, err := json.Marshal(table.Columns)
		if err != nil {
			return "", fmt.Errorf("marshal sheet columns: %w", err)
		}
		sampleJSON, err := json.MarshalIndent(table.SampleRecords(sheetSampleRows), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal sheet sample: %w", err)
		}
		fmt.Fprintf(&b, "Sheet name: %s\n", sheet)
		fmt.Fprintf(&b, "Columns: %s\n", columnsJSON)
		fmt.Fprintf(&b, "Sample data: %s\n\n", sampleJSON)
	}

	fmt.Fprintf(&b, "The target sheet should contain columns%s. Here are the specific types of columns we're looking for:\n\n", contextHint)

	for _, col := range registry.Columns() {
		fmt.Fprintf(&b, "- %s (%s): %s\n", col.Name, col.DataType, col.Description)
		if len(col.Examples) > 0 {
			fmt.Fprintf(&b, "  Examples: %s\n", strings.Join(col.Examples, ", "))
		}
		if len(col.HistoricalVariations) > 0 {
			fmt.Fprintf(&b, "  Known column name variations: %s\n", strings.Join(col.HistoricalVariations, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString(
		"INSTRUCTIONS:\n" +
			"- Analyze each sheet's column names and data patterns\n" +
			"- Look for columns that semantically match the target columns described above\n" +
			"- Consider both the column names and the data values when making your determination\n" +
			"- Identify which sheet most likely contains the target data\n\n" +
			"RESPONSE FORMAT:\n" +
			"Respond with ONLY a valid JSON object in the following format:\n" +
			"```\n" +
			"{\n" +
			"  \"target_sheet\": \"sheet_name_here\"\n" +
			"}\n" +
			"```\n")

	return b.String(), nil
}
