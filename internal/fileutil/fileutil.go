// Package fileutil provides the file primitives chart output and
// snapshots build on: atomic writes and recursive copies.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSymlinkNotSupported indicates a copy source contains a symlink.
var ErrSymlinkNotSupported = errors.New("symlinks are not supported")

// WriteFile writes data to path atomically via a temp file in the same
// directory, creating parent directories as needed.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return atomicWrite(path, perm, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// CopyFile copies one regular file, preserving its permissions.
func CopyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err // unwrapped; callers test os.IsNotExist
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%s: %w", src, ErrSymlinkNotSupported)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	return atomicWrite(dst, info.Mode(), func(f *os.File) error {
		_, err := io.Copy(f, in)
		return err
	})
}

// CopyDir recursively copies a directory tree, empty directories
// included.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			return fmt.Errorf("%s: %w", path, ErrSymlinkNotSupported)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return CopyFile(path, target)
	})
}

// atomicWrite fills a temp file next to path and renames it into place.
// fill's output reaches path complete or not at all.
func atomicWrite(path string, perm os.FileMode, fill func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	done := false
	defer func() {
		if !done {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	done = true
	return nil
}
