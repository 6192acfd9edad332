package archive

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
)

var fixedNow = time.Date(2024, 3, 5, 10, 11, 12, 123456000, time.UTC)

func newTestArchiver(t *testing.T, fsys FS) (*Archiver, Folders, string) {
	t.Helper()
	root := t.TempDir()
	folders := Folders{
		Intermediate: filepath.Join(root, "scanned"),
		Final:        filepath.Join(root, "imported"),
		Failed:       filepath.Join(root, "failed"),
	}
	incoming := filepath.Join(root, "incoming")
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		t.Fatal(err)
	}
	a := NewArchiver(folders, nil, WithFS(fsys), WithClock(func() time.Time { return fixedNow }))
	return a, folders, incoming
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestToIntermediateCopies(t *testing.T) {
	a, folders, incoming := newTestArchiver(t, nil)
	src := writeFile(t, incoming, "scan.PDF", "pdf-bytes")
	mtime := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	res, err := a.ToIntermediate(src, "Starbucks Coffee Downtown", date)
	if err != nil {
		t.Fatalf("ToIntermediate: %v", err)
	}
	if res.ArchivedFilename != "20240115-Starbucks_Coffe.pdf" {
		t.Errorf("ArchivedFilename = %q", res.ArchivedFilename)
	}
	if res.SourceFilename != "scan.PDF" {
		t.Errorf("SourceFilename = %q", res.SourceFilename)
	}
	if res.ArchivedPath != filepath.Join(folders.Intermediate, res.ArchivedFilename) {
		t.Errorf("ArchivedPath = %q", res.ArchivedPath)
	}
	if !exists(src) {
		t.Error("source removed by copy")
	}
	data, err := os.ReadFile(res.ArchivedPath)
	if err != nil || string(data) != "pdf-bytes" {
		t.Fatalf("target content = %q, %v", data, err)
	}
	st, _ := os.Stat(res.ArchivedPath)
	if !st.ModTime().Equal(mtime) {
		t.Errorf("mtime not preserved: %v", st.ModTime())
	}
	if !res.ArchiveTimestamp.Equal(fixedNow) {
		t.Errorf("ArchiveTimestamp = %v", res.ArchiveTimestamp)
	}
}

func TestToFinalMoves(t *testing.T) {
	a, folders, incoming := newTestArchiver(t, nil)
	src := writeFile(t, incoming, "a.jpg", "img")
	res, err := a.ToFinal(src, "Café Müller", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 12)
	if err != nil {
		t.Fatalf("ToFinal: %v", err)
	}
	if res.ArchivedFilename != "12-20240229-Cafe_Muller.jpg" {
		t.Errorf("ArchivedFilename = %q", res.ArchivedFilename)
	}
	if res.Identifier != "12" {
		t.Errorf("Identifier = %q", res.Identifier)
	}
	if exists(src) {
		t.Error("source still present after move")
	}
	if !exists(filepath.Join(folders.Final, res.ArchivedFilename)) {
		t.Error("target missing")
	}
}

func TestToFailedWritesErrorLog(t *testing.T) {
	a, folders, incoming := newTestArchiver(t, nil)
	src := writeFile(t, incoming, "notes.txt", "text")
	res, err := a.ToFailed(src, "ERROR-FILE: unsupported format")
	if err != nil {
		t.Fatalf("ToFailed: %v", err)
	}
	if res.ArchivedFilename != "notes.txt" {
		t.Errorf("ArchivedFilename = %q", res.ArchivedFilename)
	}
	if !exists(src) {
		t.Error("incoming file must be left in place")
	}
	logData, err := os.ReadFile(filepath.Join(folders.Failed, "notes.txt.error.log"))
	if err != nil {
		t.Fatalf("error log: %v", err)
	}
	for _, want := range []string{
		"original_filename: notes.txt",
		"timestamp: 2024-03-05T10:11:12Z",
		"reason: ERROR-FILE: unsupported format",
	} {
		if !strings.Contains(string(logData), want) {
			t.Errorf("error log missing %q:\n%s", want, logData)
		}
	}
}

func TestPreconditions(t *testing.T) {
	a, folders, incoming := newTestArchiver(t, nil)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("missing source", func(t *testing.T) {
		_, err := a.ToIntermediate(filepath.Join(incoming, "nope.pdf"), "x", date)
		if !common.IsCode(err, constants.FileNotFound) {
			t.Fatalf("err = %v", err)
		}
		if !strings.Contains(err.Error(), "nope.pdf") {
			t.Errorf("message lacks path: %v", err)
		}
	})

	t.Run("directory source", func(t *testing.T) {
		dir := filepath.Join(incoming, "sub")
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		_, err := a.ToFailed(dir, "r")
		if !common.IsCode(err, constants.FileAccess) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("existing target", func(t *testing.T) {
		src := writeFile(t, incoming, "dup.pdf", "one")
		if _, err := a.ToIntermediate(src, "Shop", date); err != nil {
			t.Fatal(err)
		}
		target := filepath.Join(folders.Intermediate, "20240101-Shop.pdf")
		before, _ := os.ReadFile(target)

		other := writeFile(t, incoming, "dup2.pdf", "two")
		_, err := a.ToIntermediate(other, "Shop", date)
		if !common.IsCode(err, constants.FileExists) {
			t.Fatalf("err = %v", err)
		}
		after, _ := os.ReadFile(target)
		if string(before) != string(after) {
			t.Error("existing target was overwritten")
		}
	})
}

func TestWithHistory(t *testing.T) {
	a, folders, incoming := newTestArchiver(t, nil)
	src := writeFile(t, incoming, "receipt.pdf", "x")

	res, err := a.WithHistory(src, src, folders.Final, 7, true)
	if err != nil {
		t.Fatalf("WithHistory: %v", err)
	}
	if res.ArchivedFilename != "7-20240305101112123456-receipt.pdf" {
		t.Errorf("ArchivedFilename = %q", res.ArchivedFilename)
	}
	if exists(src) {
		t.Error("move left source in place")
	}
}

func TestWithHistoryKeepsOriginalName(t *testing.T) {
	a, folders, incoming := newTestArchiver(t, nil)
	src := writeFile(t, incoming, "receipt.pdf", "x")
	inter, err := a.ToIntermediate(src, "receipt", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.WithHistory(inter.ArchivedPath, src, folders.Final, 1, true)
	if err != nil {
		t.Fatalf("WithHistory: %v", err)
	}
	if res.ArchivedFilename != "1-20240305101112123456-receipt.pdf" {
		t.Errorf("ArchivedFilename = %q", res.ArchivedFilename)
	}
	if exists(inter.ArchivedPath) {
		t.Error("intermediate copy left in place")
	}
}

func TestEnsureDirAndClearDir(t *testing.T) {
	a, folders, _ := newTestArchiver(t, nil)
	for i := 0; i < 2; i++ {
		if err := a.EnsureDir(folders.Intermediate); err != nil {
			t.Fatalf("EnsureDir #%d: %v", i, err)
		}
	}
	writeFile(t, folders.Intermediate, "keep-me-not.pdf", "1")
	if err := os.Mkdir(filepath.Join(folders.Intermediate, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(folders.Intermediate)
	if len(entries) != 2 {
		t.Fatalf("probe file left behind: %v", entries)
	}

	n, err := a.ClearDir(folders.Intermediate)
	if err != nil || n != 1 {
		t.Fatalf("ClearDir = %d, %v", n, err)
	}
	if !exists(filepath.Join(folders.Intermediate, "nested")) {
		t.Error("subfolder removed")
	}
	if n, err := a.ClearDir(filepath.Join(folders.Intermediate, "missing")); err != nil || n != 0 {
		t.Errorf("ClearDir(missing) = %d, %v", n, err)
	}
}

func TestEnsureDirOnFile(t *testing.T) {
	a, _, incoming := newTestArchiver(t, nil)
	p := writeFile(t, incoming, "file", "")
	err := a.EnsureDir(p)
	if err == nil {
		t.Fatal("expected error for a file path")
	}
	if !common.IsCode(err, constants.InvalidPath) {
		t.Errorf("code = %s", common.CodeOf(err))
	}
}

// faultFS wraps LocalFS and injects failures.
type faultFS struct {
	LocalFS
	openErr   error
	createErr error
	writeErr  error
	renameErr error
	phantom   bool
}

func (f *faultFS) Open(name string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: f.openErr}
	}
	return f.LocalFS.Open(name)
}

func (f *faultFS) CreateExclusive(name string, perm os.FileMode) (File, error) {
	if f.createErr != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: f.createErr}
	}
	if f.phantom {
		return discardFile{}, nil
	}
	file, err := f.LocalFS.CreateExclusive(name, perm)
	if err != nil || f.writeErr == nil {
		return file, err
	}
	return &failingFile{File: file, err: f.writeErr}, nil
}

func (f *faultFS) Rename(oldpath, newpath string) error {
	if f.renameErr != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: f.renameErr}
	}
	return f.LocalFS.Rename(oldpath, newpath)
}

type discardFile struct{}

func (discardFile) Write(p []byte) (int, error) { return len(p), nil }
func (discardFile) Sync() error                 { return nil }
func (discardFile) Close() error                { return nil }

type failingFile struct {
	File
	err error
}

func (f *failingFile) Write([]byte) (int, error) {
	return 0, &os.PathError{Op: "write", Path: "target", Err: f.err}
}

func TestFaultInjection(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		fs   *faultFS
		move bool
		want constants.ErrorCode
	}{
		{"disk full on write", &faultFS{writeErr: syscall.ENOSPC}, false, constants.DiskSpaceFull},
		{"locked target", &faultFS{createErr: syscall.EBUSY}, false, constants.FileLocked},
		{"permission denied", &faultFS{createErr: syscall.EACCES}, false, constants.FilePermissionDenied},
		{"generic io", &faultFS{writeErr: syscall.EIO}, false, constants.DiskIOError},
		{"phantom copy", &faultFS{phantom: true}, false, constants.DiskIOError},
		{"locked on move", &faultFS{renameErr: syscall.EBUSY}, true, constants.FileLocked},
		{"source permission denied", &faultFS{openErr: syscall.EACCES}, false, constants.FilePermissionDenied},
		{"source locked", &faultFS{openErr: syscall.EBUSY}, false, constants.FileLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, folders, incoming := newTestArchiver(t, tt.fs)
			src := writeFile(t, incoming, "r.pdf", "content")
			var err error
			if tt.move {
				_, err = a.ToFinal(src, "Shop", date, 1)
			} else {
				_, err = a.ToIntermediate(src, "Shop", date)
			}
			if got := common.CodeOf(err); got != tt.want {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.want, err)
			}
			if exists(filepath.Join(folders.Intermediate, "20240101-Shop.pdf")) {
				t.Error("partial target left behind")
			}
			if !exists(src) {
				t.Error("source lost on failure")
			}
		})
	}
}

func TestCrossDeviceMoveFallsBackToCopy(t *testing.T) {
	fsys := &faultFS{renameErr: syscall.EXDEV}
	a, folders, incoming := newTestArchiver(t, fsys)
	src := writeFile(t, incoming, "r.png", "png")
	res, err := a.ToFinal(src, "Shop", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("ToFinal: %v", err)
	}
	if exists(src) {
		t.Error("source not removed after cross-device move")
	}
	if !exists(filepath.Join(folders.Final, res.ArchivedFilename)) {
		t.Error("target missing")
	}
}
