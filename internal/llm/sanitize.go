package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (amount -> total, date -> tx_date)
// - Drops null/empty optionals
// - Coerces numeric -> two-decimal string for money fields
// - Rescales a 0..1 confidence to 0..100
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to the schema
	renamed("amount", "total")
	renamed("date", "tx_date")
	renamed("currency", "currency_code")
	renamed("merchant", "merchant_name")
	renamed("tax_rate", "tax_percentage")

	// 2) coerce money fields to two-decimal strings
	for _, k := range []string{"total", "tax", "tax_percentage"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			m[k] = fmt.Sprintf("%.2f", t)
		case string:
			s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
			s = strings.TrimLeft(s, "$€£")
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				m[k] = fmt.Sprintf("%.2f", f)
			} else {
				delete(m, k)
				dropped = append(dropped, k+"(invalid)")
			}
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	// 3) confidence: accept strings and 0..1 fractions
	switch c := m["confidence"].(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(c), "%"), 64); err == nil {
			m["confidence"] = scaleConfidence(f)
		}
	case float64:
		m["confidence"] = scaleConfidence(c)
	}

	// 4) currency casing
	if v, ok := m["currency_code"].(string); ok {
		m["currency_code"] = strings.ToUpper(strings.TrimSpace(v))
	}

	// 5) remove unknown keys
	allowed := map[string]struct{}{
		"merchant_name": {}, "description": {}, "tx_date": {}, "total": {},
		"tax": {}, "tax_percentage": {}, "currency_code": {}, "confidence": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 6) trim obvious strings
	for _, k := range []string{"merchant_name", "description", "tx_date"} {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func scaleConfidence(f float64) float64 {
	if f > 0 && f <= 1 {
		return f * 100
	}
	return f
}
