package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/extract"
)

// fakeServer answers every chat/completions call with content and records the last request body.
func fakeServer(t *testing.T, status int, content string) (*httptest.Server, *int32, *[]byte) {
	t.Helper()
	var calls int32
	var last []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		last, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		if status/100 != 2 {
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &last
}

func newTestClient(baseURL string) *Client {
	c := NewClient(Config{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		MaxAttempts:     2,
		LenientOptional: true,
	}, nil)
	c.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func receiptFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("fake receipt bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const validReply = `{"description":"Corner Cafe","tx_date":"2024-01-15","total":"15.50","tax":"1.20","tax_percentage":"8.00","currency_code":"USD","confidence":92}`

func TestExtractImage(t *testing.T) {
	srv, calls, last := fakeServer(t, http.StatusOK, validReply)
	c := newTestClient(srv.URL)

	d, err := c.Extract(context.Background(), receiptFile(t, "cafe.png"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := extract.ReceiptData{Amount: 15.5, Tax: 1.2, TaxPercentage: 8, Description: "Corner Cafe", Currency: "USD", Date: "2024-01-15", Confidence: 92}
	if d != want {
		t.Errorf("data = %+v, want %+v", d, want)
	}
	if *calls != 1 {
		t.Errorf("calls = %d", *calls)
	}
	if !strings.Contains(string(*last), "data:image/png;base64,") {
		t.Error("image not sent as data URL")
	}
}

func TestExtractPDFUsesFilePart(t *testing.T) {
	srv, _, last := fakeServer(t, http.StatusOK, "```json\n"+validReply+"\n```")
	c := newTestClient(srv.URL)

	if _, err := c.Extract(context.Background(), receiptFile(t, "invoice.pdf")); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	body := string(*last)
	if !strings.Contains(body, `"type":"file"`) || !strings.Contains(body, "data:application/pdf;base64,") {
		t.Errorf("pdf not sent as file part: %s", body)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	srv, calls, _ := fakeServer(t, http.StatusOK, validReply)
	c := newTestClient(srv.URL)

	_, err := c.Extract(context.Background(), receiptFile(t, "notes.txt"))
	if extract.KindOf(err) != extract.KindUnsupportedFormat {
		t.Fatalf("err = %v", err)
	}
	if *calls != 0 {
		t.Errorf("unexpected API calls: %d", *calls)
	}
}

func TestExtractAPIFailureNotRetried(t *testing.T) {
	srv, calls, _ := fakeServer(t, http.StatusInternalServerError, "")
	c := newTestClient(srv.URL)

	_, err := c.Extract(context.Background(), receiptFile(t, "a.jpg"))
	if extract.KindOf(err) != extract.KindAPIFailure {
		t.Fatalf("err = %v", err)
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestExtractParseFailureRetriedUpToMaxAttempts(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "I could not read this receipt."},
		{"missing total", `{"description":"x","tx_date":"2024-01-15","currency_code":"USD","confidence":50}`},
		{"future date", `{"description":"x","tx_date":"2025-01-15","total":"1.00","currency_code":"USD","confidence":50}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls, _ := fakeServer(t, http.StatusOK, tt.reply)
			c := newTestClient(srv.URL)

			_, err := c.Extract(context.Background(), receiptFile(t, "a.webp"))
			if extract.KindOf(err) != extract.KindParseFailure {
				t.Fatalf("err = %v", err)
			}
			if *calls != 2 {
				t.Errorf("calls = %d, want 2", *calls)
			}
		})
	}
}

func TestExtractLenientSanitize(t *testing.T) {
	reply := `{"merchant":"Shop","description":"Shop","amount":12.5,"date":"2024-01-15","currency":"usd","confidence":0.9,"items":["x"]}`
	srv, _, _ := fakeServer(t, http.StatusOK, reply)
	c := newTestClient(srv.URL)

	d, err := c.Extract(context.Background(), receiptFile(t, "a.jpeg"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if d.Amount != 12.5 || d.Currency != "USD" || d.Date != "2024-01-15" || d.Confidence != 90 {
		t.Errorf("data = %+v", d)
	}
}

func TestExtractLogsWithContextLogger(t *testing.T) {
	srv, _, _ := fakeServer(t, http.StatusOK, validReply)
	c := newTestClient(srv.URL)

	var buf bytes.Buffer
	runLog := slog.New(slog.NewTextHandler(&buf, nil)).With("run_id", "run-42")
	ctx := common.WithLogger(context.Background(), runLog)
	if _, err := c.Extract(ctx, receiptFile(t, "cafe.jpg")); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "llm.extract.ok") || !strings.Contains(out, "run_id=run-42") {
		t.Errorf("extract events not logged with the run logger:\n%s", out)
	}
}
