// Package schema holds the destination-table column registry that
// identification runs map source columns onto.
package schema

// TargetColumn is one column of the destination schema.
type TargetColumn struct {
	// Name is the canonical identifier, lower-cased and unique within a
	// registry. It is used as the mapping key everywhere.
	Name string `json:"name"`

	// DataType is a free-text semantic hint ("string", "number", "date").
	// Advisory only; values are never coerced.
	DataType string `json:"data_type"`

	// Description is free text used for prompt construction.
	Description string `json:"description"`

	// Examples are example value strings, possibly empty.
	Examples []string `json:"examples,omitempty"`

	// HistoricalVariations are previously-seen source column names that
	// mapped to this target column. Mutated by the alias-learning step,
	// never by the user directly.
	HistoricalVariations []string `json:"historical_variations,omitempty"`
}

// AddVariation appends a newly confirmed alias if not already present.
// Existing entries keep their order. Reports whether the alias was added.
func (c *TargetColumn) AddVariation(alias string) bool {
	if alias == "" {
		return false
	}
	for _, v := range c.HistoricalVariations {
		if v == alias {
			return false
		}
	}
	c.HistoricalVariations = append(c.HistoricalVariations, alias)
	return true
}

// CombinedAliases returns the registry aliases followed by any external
// aliases not already present, order preserved.
func (c *TargetColumn) CombinedAliases(external []string) []string {
	combined := make([]string, 0, len(c.HistoricalVariations)+len(external))
	seen := make(map[string]struct{}, len(c.HistoricalVariations)+len(external))
	for _, v := range c.HistoricalVariations {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		combined = append(combined, v)
	}
	for _, v := range external {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		combined = append(combined, v)
	}
	return combined
}
