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
	// columnSampleRows bounds how many source rows go into the prompt.
	columnSampleRows = 3

	columnSystemPrompt = "You are a data analysis assistant that specializes in identifying column types in datasets. You must only select from the available columns provided. Always respond with ONLY the requested JSON format."
)

// ColumnClassifier maps one target column to a source column name.
// Each call is stateless and independent of every other target column,
// which is what permits the coordinator's fan-out.
type ColumnClassifier struct {
	oracle llm.Client
	log    *slog.Logger
}

// NewColumnClassifier creates a column classifier backed by the given oracle.
func NewColumnClassifier(oracle llm.Client, log *slog.Logger) *ColumnClassifier {
	return &ColumnClassifier{oracle: oracle, log: log}
}

// Classify asks the oracle which source column corresponds to target.
// knownAliases supplements the target's own historical variations (the
// alias store partition for the active table). The answer must name a
// column actually present in the source table; anything else is a
// ValidationFailure, never coerced or fuzzy-matched locally.
func (c *ColumnClassifier) Classify(ctx context.Context, source *tabular.Table, target *schema.TargetColumn, knownAliases []string) (string, error) {
	if len(source.Columns) == 0 {
		return "", &ValidationFailure{Stage: "column", Reason: "source table has no columns"}
	}

	prompt, err := buildColumnPrompt(source, target, knownAliases)
	if err != nil {
		return "", err
	}

	c.log.Debug("classifying column", "target", target.Name, "sourceColumns", len(source.Columns), "promptLen", len(prompt))

	response, err := c.oracle.Complete(ctx, columnSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("column classification oracle call for %q: %w", target.Name, err)
	}

	result, err := llm.ExtractJSONObject(response)
	if err != nil {
		return "", &ParseFailure{Stage: "column", Reason: fmt.Sprintf("target %q: %s", target.Name, err)}
	}

	raw, ok := result[target.Name]
	if !ok {
		return "", &ValidationFailure{Stage: "column", Reason: fmt.Sprintf("no %q key in response", target.Name)}
	}
	guessed, ok := raw.(string)
	if !ok || guessed == "" {
		return "", &ValidationFailure{Stage: "column", Reason: fmt.Sprintf("%q value is not a column name", target.Name)}
	}
	if !source.HasColumn(guessed) {
		return "", &ValidationFailure{
			Stage:    "column",
			Proposed: guessed,
			Reason:   fmt.Sprintf("guessed column %q for target %q not found in source table", guessed, target.Name),
		}
	}

	c.log.Debug("column identified", "target", target.Name, "source", guessed)
	return guessed, nil
}

func buildColumnPrompt(source *tabular.Table, target *schema.TargetColumn, knownAliases []string) (string, error) {
	allVariations := target.CombinedAliases(knownAliases)

	availableJSON, err := json.Marshal(source.Columns)
	if err != nil {
		return "", fmt.Errorf("marshal available columns: %w", err)
	}
	sampleJSON, err := json.MarshalIndent(source.SampleRecords(columnSampleRows), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sample rows: %w", err)
	}
	variationsJSON, err := json.Marshal(allVariations)
	if err != nil {
		return "", fmt.Errorf("marshal historical variations: %w", err)
	}

	quoted := make([]string, len(source.Columns))
	for i, col := range source.Columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are tasked with identifying the column that represents '%s' in a dataset.\n\n", target.Name)
	fmt.Fprintf(&b, "Column description: %s\n", target.Description)
	fmt.Fprintf(&b, "Expected data type: %s\n", target.DataType)
	fmt.Fprintf(&b, "Example values: %s\n\n", strings.Join(target.Examples, ", "))
	b.WriteString(
		"Given the following information:\n" +
			"1. Sample data rows (first rows of the table along with column names)\n" +
			"2. Historical column names that have been identified as matching this column type in the past\n" +
			"3. The list of available columns in the table\n\n" +
			"INSTRUCTIONS:\n" +
			"- Analyze the column names and data patterns in the sample rows\n")
	fmt.Fprintf(&b, "- Select the most likely column that represents %s\n", target.Name)
	b.WriteString(
		"- Consider both semantic similarity of column names and the data values\n" +
			"- You MUST select a column name from the list of available columns\n" +
			"- If none of the columns seem to match, select the closest possible match from the available columns\n\n")
	fmt.Fprintf(&b, "CRITICAL: Your response MUST be one of these exact column names: %s\n\n", strings.Join(quoted, ", "))
	b.WriteString(
		"RESPONSE FORMAT:\n" +
			"Respond with ONLY a valid JSON object in the following format:\n" +
			"```\n" +
			"{\n")
	fmt.Fprintf(&b, "  %q: \"column_name_here\"\n", target.Name)
	b.WriteString(
		"}\n" +
			"```\n\n")
	fmt.Fprintf(&b, "Available columns:\n%s\n\n", availableJSON)
	fmt.Fprintf(&b, "Sample rows:\n%s\n\n", sampleJSON)
	fmt.Fprintf(&b, "Historical column names for this type:\n%s", variationsJSON)

	return b.String(), nil
}
