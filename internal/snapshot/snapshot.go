// Package snapshot manages point-in-time copies of a refactored chart
// directory. Snapshots live inside the directory they protect, under
// .chartfold/snapshots, and never include that metadata directory
// themselves.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/chartfold/chartfold/internal/fileutil"
)

const (
	// Prefix starts every snapshot directory name.
	Prefix = "snapshot-"
	// dateFormat is the timestamp in snapshot names, nanosecond precision
	// to prevent same-second collisions.
	dateFormat = "20060102-150405.000000000"
	// DefaultRetention is how many snapshots Create keeps when the caller
	// passes no limit.
	DefaultRetention = 5
	// minFreeDiskBytes is the free space floor kept after a copy (100MB).
	minFreeDiskBytes = 100 * 1024 * 1024

	metaName = ".chartfold"
)

// Info holds metadata about one snapshot.
type Info struct {
	Name      string
	Path      string
	Created   time.Time
	FileCount int
}

func snapshotsDir(dir string) string {
	return filepath.Join(dir, metaName, "snapshots")
}

// Create snapshots the chart files in dir. Returns the snapshot name, or
// an empty string when the directory has nothing to protect. Snapshots
// beyond keep are pruned afterwards; keep <= 0 means DefaultRetention.
func Create(dir string, keep int) (string, error) {
	if !dirHasContent(dir) {
		return "", nil
	}

	snapDir := snapshotsDir(dir)
	if err := os.MkdirAll(snapDir, 0755); err != nil {
		return "", fmt.Errorf("create snapshots directory: %w", err)
	}

	size, err := dirSize(dir)
	if err != nil {
		return "", fmt.Errorf("calculate chart directory size: %w", err)
	}
	if err := checkDiskSpace(snapDir, size+minFreeDiskBytes); err != nil {
		return "", fmt.Errorf("insufficient disk space for snapshot: %w", err)
	}

	name := Prefix + time.Now().Format(dateFormat)
	path := filepath.Join(snapDir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	if err := copyContents(dir, path); err != nil {
		if cleanupErr := os.RemoveAll(path); cleanupErr != nil {
			return "", fmt.Errorf("copy chart to snapshot: %w (cleanup also failed: %v)", err, cleanupErr)
		}
		return "", fmt.Errorf("copy chart to snapshot: %w", err)
	}

	if err := Cleanup(dir, keep); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to cleanup old snapshots: %v\n", err)
	}

	return name, nil
}

// List returns available snapshots sorted by date, newest first.
func List(dir string) ([]Info, error) {
	snapDir := snapshotsDir(dir)

	entries, err := os.ReadDir(snapDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshots directory: %w", err)
	}

	var snapshots []Info
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}

		path := filepath.Join(snapDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot read snapshot %s: %v\n", entry.Name(), err)
			continue
		}

		created, err := time.Parse(dateFormat, strings.TrimPrefix(entry.Name(), Prefix))
		if err != nil {
			created = info.ModTime()
		}

		snapshots = append(snapshots, Info{
			Name:      entry.Name(),
			Path:      path,
			Created:   created,
			FileCount: countFiles(path),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Created.After(snapshots[j].Created)
	})

	return snapshots, nil
}

// Restore puts a snapshot's files back into dir. The current content is
// backed up first, then replaced through a staging copy so a failed copy
// never leaves the chart half-written. The metadata directory is not part
// of any snapshot and survives the swap.
func Restore(dir, name string) error {
	snapDir := snapshotsDir(dir)
	snapshotPath := filepath.Join(snapDir, name)

	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		return fmt.Errorf("snapshot not found: %s", name)
	}

	size, err := dirSize(snapshotPath)
	if err != nil {
		return fmt.Errorf("calculate snapshot size: %w", err)
	}
	if err := checkDiskSpace(dir, size+minFreeDiskBytes); err != nil {
		return fmt.Errorf("insufficient disk space for restore: %w", err)
	}

	if dirHasContent(dir) {
		backupPath := filepath.Join(snapDir, "pre-restore-"+time.Now().Format(dateFormat))
		if err := os.MkdirAll(backupPath, 0755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
		if err := copyContents(dir, backupPath); err != nil {
			os.RemoveAll(backupPath)
			return fmt.Errorf("create pre-restore backup: %w", err)
		}
	}

	// Stage the snapshot copy next to the target so the final moves are
	// renames on the same filesystem.
	staging := filepath.Join(dir, metaName, "restore-"+uuid.New().String()[:8])
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := copyContents(snapshotPath, staging); err != nil {
		return fmt.Errorf("copy snapshot to staging: %w", err)
	}

	current, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read chart directory: %w", err)
	}
	for _, entry := range current {
		if entry.Name() == metaName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}

	staged, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("read staging directory: %w", err)
	}
	for _, entry := range staged {
		from := filepath.Join(staging, entry.Name())
		to := filepath.Join(dir, entry.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("move %s into place (pre-restore backup is intact): %w", entry.Name(), err)
		}
	}

	return nil
}

// Cleanup removes snapshots beyond the retention limit, continuing past
// individual failures so as many as possible go.
func Cleanup(dir string, keep int) error {
	if keep <= 0 {
		keep = DefaultRetention
	}

	snapshots, err := List(dir)
	if err != nil {
		return err
	}
	if len(snapshots) <= keep {
		return nil
	}

	var errs []string
	for _, snap := range snapshots[keep:] {
		if err := removeWithRetry(snap.Path, 3); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", snap.Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to remove %d snapshot(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// copyContents copies the entries of src into dst, skipping the metadata
// directory.
func copyContents(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	for _, entry := range entries {
		if entry.Name() == metaName {
			continue
		}
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := fileutil.CopyDir(from, to); err != nil {
				return err
			}
		} else if err := fileutil.CopyFile(from, to); err != nil {
			return err
		}
	}
	return nil
}

// dirHasContent reports whether dir holds anything besides the metadata
// directory.
func dirHasContent(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.Name() != metaName {
			return true
		}
	}
	return false
}

func countFiles(dir string) int {
	count := 0
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

// dirSize totals the file sizes under dir, excluding the metadata
// directory.
func dirSize(dir string) (int64, error) {
	var size int64
	meta := filepath.Join(dir, metaName)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path == meta {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func checkDiskSpace(dir string, requiredBytes int64) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	available := int64(stat.Bavail) * int64(stat.Bsize)
	if available < requiredBytes {
		return fmt.Errorf("need %d bytes, only %d available", requiredBytes, available)
	}
	return nil
}

// removeWithRetry retries RemoveAll with short backoff for transient
// failures.
func removeWithRetry(path string, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := os.RemoveAll(path); err != nil {
			lastErr = err
			time.Sleep(time.Duration(10*(1<<i)) * time.Millisecond)
			continue
		}
		return nil
	}
	return lastErr
}
