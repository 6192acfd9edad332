package archive

import (
	"io"
	"os"
	"time"
)

// File is the writable handle returned by FS.CreateExclusive.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// FS is the file-system capability the archiver depends on. LocalFS is the
// production variant; tests substitute fault-injecting variants.
type FS interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	// CreateExclusive creates name for writing and fails if it already exists.
	CreateExclusive(name string, perm os.FileMode) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	MkdirAll(path string, perm os.FileMode) error
	Chtimes(name string, atime, mtime time.Time) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// LocalFS implements FS on the operating system's file system.
type LocalFS struct{}

func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (LocalFS) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

func (LocalFS) CreateExclusive(name string, perm os.FileMode) (File, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
}

func (LocalFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (LocalFS) Remove(name string) error { return os.Remove(name) }

func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (LocalFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

func (LocalFS) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }
