// Package extract defines the extraction collaborator the pipeline consumes:
// file in, validated ReceiptData or a categorized *Error out.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

// Extractor turns one receipt file into structured data. Implementations own
// their retry behaviour; callers only see the final outcome.
type Extractor interface {
	Extract(ctx context.Context, path string) (ReceiptData, error)
}

// ReceiptData is a successful extraction.
type ReceiptData struct {
	Amount        float64
	Tax           float64
	TaxPercentage float64
	Description   string
	Currency      string
	Date          string // YYYY-MM-DD
	Confidence    float64
}

// ParsedDate returns Date as a calendar date.
func (d ReceiptData) ParsedDate() (time.Time, error) {
	return common.ParseYMD(d.Date)
}

// Kind categorizes extraction failures.
type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported-format"
	KindFileCorrupt       Kind = "file-corrupt"
	KindAPIFailure        Kind = "api-failure"
	KindParseFailure      Kind = "parse-failure"
	KindUnknown           Kind = "unknown"
)

// Code maps a failure kind onto the ledger's ERROR-* code.
func (k Kind) Code() constants.ExtractionCode {
	switch k {
	case KindUnsupportedFormat, KindFileCorrupt:
		return constants.ExtractionFile
	case KindAPIFailure:
		return constants.ExtractionAPI
	case KindParseFailure:
		return constants.ExtractionParse
	default:
		return constants.ExtractionUnknown
	}
}

// Error is a categorized extraction failure.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("extract %s: %s", e.Kind, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a categorized failure.
func NewError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf returns the kind carried by err; uncategorized errors are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeFor maps any extraction error to its ledger code.
func CodeFor(err error) constants.ExtractionCode {
	return KindOf(err).Code()
}

// MaxDescriptionLength bounds the description written to the ledger.
const MaxDescriptionLength = 200

// Validate checks d against the ReceiptData invariants. now bounds the date.
func Validate(d ReceiptData, now time.Time) error {
	v := common.NewValidator()
	v.Field("description", d.Description, common.Required, common.MaxLength(MaxDescriptionLength)).
		Field("amount", d.Amount, common.NonNegative).
		Field("tax", d.Tax, common.NonNegative).
		Field("tax_percentage", d.TaxPercentage, common.NonNegative).
		Field("confidence", d.Confidence, common.Between(0, 100)).
		Field("currency", d.Currency, common.CurrencyCode).
		Field("date", d.Date, common.DateNotAfter(now))
	return v.Error()
}
