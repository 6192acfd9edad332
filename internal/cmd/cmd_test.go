package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("RECEIPTS_ROOT", root)
	t.Setenv("RECEIPTS_EXTRACTOR", "mock")
	t.Setenv("LOG_LEVEL", "error")
	if err := os.MkdirAll(filepath.Join(root, "incoming"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRunCommand(t *testing.T) {
	root := setupRoot(t)
	for name, content := range map[string]string{"a.pdf": "a", "b.pdf": "a", "c.txt": "c"} {
		if err := os.WriteFile(filepath.Join(root, "incoming", name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "1 completed, 1 failed, 1 duplicate") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "ERROR-FILE") || !strings.Contains(out, "c.txt") {
		t.Errorf("failed file not reported: %q", out)
	}

	xlsx := filepath.Join(root, "out.xlsx")
	out, err = execute(t, "export", "--out", xlsx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported 2 rows") {
		t.Errorf("export output = %q", out)
	}
}

func TestClearLedgerRequiresConfirmation(t *testing.T) {
	root := setupRoot(t)
	if _, err := execute(t, "clear-ledger"); err == nil {
		t.Fatal("expected refusal without --yes")
	}
	out, err := execute(t, "clear-ledger", "--yes")
	if err != nil {
		t.Fatalf("clear-ledger: %v", err)
	}
	if !strings.Contains(out, filepath.Join(root, "staging.csv")) {
		t.Errorf("output = %q", out)
	}
}

func TestHashCommand(t *testing.T) {
	root := setupRoot(t)
	p := filepath.Join(root, "empty.bin")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "hash", p)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if !strings.HasPrefix(out, emptySHA) {
		t.Errorf("output = %q", out)
	}
	if _, err := execute(t, "hash", filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestRunRejectsOpenAIWithoutKey(t *testing.T) {
	setupRoot(t)
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := execute(t, "run", "--extractor", "openai"); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRunRetryFailedFlag(t *testing.T) {
	root := setupRoot(t)
	for name, content := range map[string]string{"a.pdf": "a", "c.txt": "c"} {
		if err := os.WriteFile(filepath.Join(root, "incoming", name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"run"}, "1 completed, 1 failed, 0 duplicate"},
		{[]string{"run"}, "0 completed, 0 failed, 2 duplicate"},
		{[]string{"run", "--retry-failed"}, "0 completed, 1 failed, 1 duplicate"},
	}
	for i, step := range steps {
		out, err := execute(t, step.args...)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !strings.Contains(out, step.want) {
			t.Errorf("step %d output = %q, want %q", i, out, step.want)
		}
	}
}
