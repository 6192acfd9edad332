package llm

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to OpenAI as a structured output constraint and also use it locally to validate.
func BuildReceiptJSONSchema() map[string]any {
	props := map[string]any{
		"merchant_name":  map[string]any{"type": "string"},
		"description":    map[string]any{"type": "string", "minLength": 1},
		"tx_date":        map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"total":          decimalProp(),
		"tax":            decimalProp(),
		"tax_percentage": decimalProp(),
		"currency_code":  map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
	}
	required := []string{"description", "tx_date", "total", "currency_code", "confidence"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d+(\.\d{1,2})?$`,
	}
}
