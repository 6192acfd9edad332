package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipts-intake/internal/extract"
)

// ReceiptFields is the JSON shape requested from the model.
type ReceiptFields struct {
	MerchantName  string  `json:"merchant_name,omitempty"`
	Description   string  `json:"description"`
	TxDate        string  `json:"tx_date"`                  // YYYY-MM-DD
	Total         string  `json:"total"`                    // decimal
	Tax           string  `json:"tax,omitempty"`            // decimal
	TaxPercentage string  `json:"tax_percentage,omitempty"` // decimal
	CurrencyCode  string  `json:"currency_code"`            // ISO 4217
	Confidence    float64 `json:"confidence"`               // 0..100
}

// ExtractRequest describes one file handed to the model.
type ExtractRequest struct {
	FilePath        string
	FilenameHint    string
	DefaultCurrency string
	Today           string // YYYY-MM-DD, the latest acceptable receipt date
}

// ToReceiptData converts the wire shape into extract.ReceiptData. Missing
// optional money fields become 0; a missing description falls back to the
// merchant name.
func (f ReceiptFields) ToReceiptData() (extract.ReceiptData, error) {
	amount, err := parseMoney("total", f.Total)
	if err != nil {
		return extract.ReceiptData{}, err
	}
	tax, err := parseMoney("tax", f.Tax)
	if err != nil {
		return extract.ReceiptData{}, err
	}
	pct, err := parseMoney("tax_percentage", f.TaxPercentage)
	if err != nil {
		return extract.ReceiptData{}, err
	}
	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		desc = strings.TrimSpace(f.MerchantName)
	}
	return extract.ReceiptData{
		Amount:        amount,
		Tax:           tax,
		TaxPercentage: pct,
		Description:   desc,
		Currency:      strings.TrimSpace(f.CurrencyCode),
		Date:          strings.TrimSpace(f.TxDate),
		Confidence:    f.Confidence,
	}, nil
}

func parseMoney(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
