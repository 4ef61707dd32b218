// Package reconcile makes the local model data directory reflect an external
// source directory before the managed process starts reading it.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"swapd/internal/common/fsutil"
	"swapd/pkg/types"
)

// Reconciler copies new and changed files from Source into Target.
// The copy is additive: extraneous files already in Target are kept.
type Reconciler struct {
	Source string
	Target string
	Log    zerolog.Logger
}

// New returns a Reconciler over the given directories.
func New(source, target string, log zerolog.Logger) *Reconciler {
	return &Reconciler{Source: source, Target: target, Log: log}
}

// Run synchronizes Target from Source. A missing or empty Source is a no-op.
// The first failure aborts the walk; callers must not start the managed
// process when an error is returned.
func (r *Reconciler) Run(ctx context.Context) (types.SyncResult, error) {
	var res types.SyncResult
	has, err := fsutil.DirHasEntries(r.Source)
	if err != nil {
		return res, err
	}
	if !has {
		res.Skipped = true
		r.Log.Info().Str("source", r.Source).Msg("sync skipped: source absent or empty")
		return res, nil
	}

	if err := os.MkdirAll(r.Target, 0o755); err != nil {
		return res, fmt.Errorf("create target %s: %w", r.Target, err)
	}

	err = filepath.WalkDir(r.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(r.Source, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dst := filepath.Join(r.Target, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
				return fmt.Errorf("mkdir %s: %w", dst, err)
			}
			return nil
		case info.Mode()&fs.ModeSymlink != 0:
			return r.copyLink(path, dst)
		case info.Mode().IsRegular():
			res.FilesSeen++
			copied, n, err := r.copyFile(path, dst, info)
			if err != nil {
				return err
			}
			if copied {
				res.FilesCopied++
				res.BytesCopied += n
			}
			return nil
		default:
			// sockets, devices etc. have no place in a model directory
			r.Log.Warn().Str("path", path).Msg("skipping irregular file")
			return nil
		}
	})
	if err != nil {
		return res, fmt.Errorf("sync %s -> %s: %w", r.Source, r.Target, err)
	}
	r.Log.Info().
		Int("seen", res.FilesSeen).
		Int("copied", res.FilesCopied).
		Int64("bytes", res.BytesCopied).
		Msg("sync complete")
	return res, nil
}

// upToDate reports whether dst already matches src by size and mtime.
func upToDate(src fs.FileInfo, dst string) bool {
	di, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return di.Mode().IsRegular() && di.Size() == src.Size() && di.ModTime().Equal(src.ModTime())
}

// copyFile copies src to dst unless dst is already identical, preserving
// mode and mtime so a repeated run leaves dst untouched.
func (r *Reconciler) copyFile(src, dst string, info fs.FileInfo) (bool, int64, error) {
	if upToDate(info, dst) {
		return false, 0, nil
	}
	in, err := os.Open(src)
	if err != nil {
		return false, 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return false, 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, n, fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return false, n, fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return false, n, fmt.Errorf("chtimes %s: %w", dst, err)
	}
	r.Log.Debug().Str("file", dst).Int64("bytes", n).Msg("copied")
	return true, n, nil
}

// copyLink recreates a symlink at dst pointing at src's target.
func (r *Reconciler) copyLink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", src, err)
	}
	if existing, err := os.Readlink(dst); err == nil && existing == target {
		return nil
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace link %s: %w", dst, err)
	}
	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("symlink %s: %w", dst, err)
	}
	return nil
}
