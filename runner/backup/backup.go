// Package backup archives the vector store directory and ships the archives
// to a remote (or local) destination on a cron schedule.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
)

// executeTimeout is the hard bound on one backup run. A run that exceeds it
// is cancelled and reported as a failure.
const executeTimeout = 5 * time.Minute

var dateInKey = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Executor archives the source directory and uploads the result.
type Executor struct {
	sourceDir string
	uploader  Uploader
}

func NewExecutor(sourceDir string, uploader Uploader) *Executor {
	return &Executor{sourceDir: sourceDir, uploader: uploader}
}

// ExecuteBackup produces one archive named
// backup_<YYYY-MM-DD_HH-mm-ss>_<epochMillis>.tar.gz, uploads it under
// <YYYY-MM-DD>/<filename>, and removes the local temp file. The work runs in
// a worker goroutine bounded by a hard five-minute timeout.
func (e *Executor) ExecuteBackup(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	now := time.Now()
	filename := fmt.Sprintf("backup_%s_%d.tar.gz", now.Format("2006-01-02_15-04-05"), now.UnixMilli())
	key := now.Format("2006-01-02") + "/" + filename
	tempPath := filepath.Join(os.TempDir(), filename)

	done := make(chan error, 1)
	go func() {
		done <- archiveDir(ctx, e.sourceDir, tempPath)
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = os.Remove(tempPath)
			return "", ierrors.Wrap(err, ierrors.CodeBackupFailure, "failed to archive vector store")
		}
	case <-ctx.Done():
		// The worker notices the cancelled context on its next write and
		// exits; the temp file is best-effort cleaned here.
		_ = os.Remove(tempPath)
		return "", ierrors.Wrap(ctx.Err(), ierrors.CodeTimeout, "backup timed out")
	}
	defer os.Remove(tempPath)

	f, err := os.Open(tempPath)
	if err != nil {
		return "", ierrors.Wrap(err, ierrors.CodeBackupFailure, "failed to open archive")
	}
	defer f.Close()

	if err := e.uploader.Upload(ctx, key, f); err != nil {
		return "", ierrors.Wrap(err, ierrors.CodeBackupFailure, "failed to upload archive")
	}
	slog.Info("backup uploaded", slog.String("key", key))
	return key, nil
}

// CleanupOldBackups removes remote archives outside the retention window.
// An archive is deleted when it violates either bound: not among the newest
// maxCount archives, or dated older than maxDays. Dates are parsed as the
// first YYYY-MM-DD substring of the key.
func (e *Executor) CleanupOldBackups(ctx context.Context, maxCount, maxDays int) error {
	keys, err := e.uploader.List(ctx)
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeBackupFailure, "failed to list backups")
	}

	type dated struct {
		key  string
		date time.Time
	}
	var archives []dated
	for _, key := range keys {
		raw := dateInKey.FindString(key)
		if raw == "" {
			slog.Warn("backup key has no date, skipping", slog.String("key", key))
			continue
		}
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			slog.Warn("backup key has invalid date, skipping", slog.String("key", key))
			continue
		}
		archives = append(archives, dated{key: key, date: date})
	}

	// Newest first; keys break date ties so ordering is stable.
	sort.Slice(archives, func(i, j int) bool {
		if !archives[i].date.Equal(archives[j].date) {
			return archives[i].date.After(archives[j].date)
		}
		return archives[i].key > archives[j].key
	})

	cutoff := time.Now().AddDate(0, 0, -maxDays)
	deleted := 0
	for i, a := range archives {
		withinCount := i < maxCount
		withinDays := !a.date.Before(cutoff)
		if withinCount && withinDays {
			continue
		}
		if err := e.uploader.Delete(ctx, a.key); err != nil {
			slog.Warn("failed to delete old backup",
				slog.String("key", a.key),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		slog.Info("old backups removed", slog.Int("deleted", deleted))
	}
	return nil
}

// archiveDir writes a tar.gz of dir to outPath. Paths inside the archive are
// relative to dir.
func archiveDir(ctx context.Context, dir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
