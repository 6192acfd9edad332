package llm

import (
	"encoding/json"
	"testing"
)

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	raw := []byte(`{"amount":"$12.5","tax":null,"tax_rate":"8%","currency":" eur ","description":"  Shop ","confidence":"0.75","extra":1}`)
	out, dropped, err := NormalizeAndSanitizeJSON(raw, nil)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"total":          "12.50",
		"tax_percentage": "8.00",
		"currency_code":  "EUR",
		"description":    "Shop",
		"confidence":     75.0,
	}
	if len(m) != len(want) {
		t.Errorf("keys = %v", m)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
	if len(dropped) == 0 {
		t.Error("expected dropped/renamed entries")
	}
	schema, err := ReceiptSchema()
	if err != nil {
		t.Fatalf("ReceiptSchema: %v", err)
	}
	if err := schema.Validate(out); err == nil {
		t.Error("document without tx_date should not validate")
	}
}

func TestToReceiptData(t *testing.T) {
	f := ReceiptFields{MerchantName: "Shop", Total: "10.00", CurrencyCode: "USD", TxDate: "2024-01-01", Confidence: 80}
	d, err := f.ToReceiptData()
	if err != nil {
		t.Fatal(err)
	}
	if d.Description != "Shop" || d.Amount != 10 || d.Tax != 0 {
		t.Errorf("data = %+v", d)
	}
	f.Total = "ten"
	if _, err := f.ToReceiptData(); err == nil {
		t.Error("expected error for non-numeric total")
	}
}

func TestReceiptSchema(t *testing.T) {
	first, err := ReceiptSchema()
	if err != nil {
		t.Fatalf("ReceiptSchema: %v", err)
	}
	second, _ := ReceiptSchema()
	if first != second {
		t.Error("schema compiled more than once")
	}

	tests := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"complete", `{"description":"Shop","tx_date":"2024-01-15","total":"15.50","currency_code":"USD","confidence":90}`, true},
		{"three decimals", `{"description":"Shop","tx_date":"2024-01-15","total":"15.505","currency_code":"USD","confidence":90}`, false},
		{"unknown key", `{"description":"Shop","tx_date":"2024-01-15","total":"1","currency_code":"USD","confidence":90,"vat":"1"}`, false},
		{"confidence over 100", `{"description":"Shop","tx_date":"2024-01-15","total":"1","currency_code":"USD","confidence":101}`, false},
		{"not json", `{"description":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := first.Validate([]byte(tt.doc))
			if tt.ok != (err == nil) {
				t.Fatalf("Validate() = %v", err)
			}
		})
	}
}
