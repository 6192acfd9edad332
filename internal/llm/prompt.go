package llm

import (
	"strings"
)

// BuildSystemPrompt composes the system message with currency defaults and
// strict-but-practical formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	defCur := strings.TrimSpace(req.DefaultCurrency)
	if defCur == "" {
		defCur = "USD"
	}

	parts := []string{
		"You are a receipts parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"For 'description', give the merchant or vendor name in a few words.",
		"'total' is the amount paid including tax. Put taxes in 'tax' and the tax rate in 'tax_percentage' (e.g. 8.25).",
		"'confidence' is your confidence in the extraction from 0 to 100.",
		"Never output null. If an optional field is not present, omit it.",
	}
	if today := strings.TrimSpace(req.Today); today != "" {
		parts = append(parts, "Receipt dates are never after "+today+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if filename := strings.TrimSpace(req.FilenameHint); filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}
	b.WriteString("The receipt is attached. Extract the fields.")
	return b.String()
}
