// Package engine implements the synchronization core: local enumeration,
// the remote index snapshot, per-file upload decisions, and the
// bounded-concurrency dispatch that drives everything to completion.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sitepush/sitepush/internal/config"
	"github.com/sitepush/sitepush/internal/contenttype"
	"github.com/sitepush/sitepush/internal/pool"
	"github.com/sitepush/sitepush/internal/qetag"
	"github.com/sitepush/sitepush/internal/retry"
	"github.com/sitepush/sitepush/internal/store"
)

const progressInterval = 5 * time.Second

type Engine struct {
	cfg     *config.Config
	store   store.Store
	journal *Journal // nil disables the fingerprint cache
	policy  retry.Policy

	// index is the remote snapshot, built at most once per run and
	// read-only afterward. nil means no index was built and point stats
	// are used instead.
	index map[string]store.Object

	// hashFile is swappable in tests to observe or fake hashing.
	hashFile func(path string) (string, error)
}

func New(cfg *config.Config, st store.Store, journal *Journal) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    st,
		journal:  journal,
		policy:   retry.Policy{MaxRetries: cfg.Retries, BaseDelay: cfg.RetryDelay},
		hashFile: qetag.HashFile,
	}
}

// Run drives one full sync: enumerate local files, snapshot remote state
// when worthwhile, decide and upload per file on the pool, then report.
// Per-file failures are counted, never propagated; the returned error is
// reserved for fatal conditions (missing root, index build failure,
// cancellation).
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := &Result{StartedAt: time.Now()}

	files, err := Enumerate(e.cfg.SourceDir, e.cfg.Prefix, e.cfg.Excludes)
	if err != nil {
		return nil, err
	}
	slog.Info("enumerated local files", "root", e.cfg.SourceDir, "count", len(files))

	// One bulk listing replaces many point stats, but only pays off when a
	// prefix narrows it and diffing is actually going to happen.
	if e.cfg.Prefix != "" && !e.cfg.Force {
		index, err := buildIndex(ctx, e.store, e.cfg.Prefix, e.policy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIndexBuild, err)
		}
		e.index = index
		slog.Info("built remote index", "prefix", e.cfg.Prefix, "objects", len(index))
	}

	progressDone := make(chan struct{})
	go e.reportProgress(progressDone, res, len(files))

	p := pool.New(e.cfg.Concurrency)
	for _, f := range files {
		f := f
		if err := p.Go(ctx, func() { e.syncFile(ctx, f, res) }); err != nil {
			// Admission only fails on cancellation; drain what was started.
			break
		}
	}
	p.Wait()
	close(progressDone)

	res.Elapsed = time.Since(res.StartedAt)
	slog.Info("sync complete",
		"uploaded", res.Uploaded.Load(),
		"skipped", res.Skipped.Load(),
		"failed", res.Failed.Load(),
		"bytes", humanize.Bytes(uint64(res.BytesUploaded.Load())),
		"took", res.Elapsed.Round(time.Millisecond),
		"dryrun", e.cfg.DryRun,
	)

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, nil
}

// syncFile settles exactly one file: decide, then upload (or plan, under
// dry-run). Failures are recorded against this key only.
func (e *Engine) syncFile(ctx context.Context, f *LocalFile, res *Result) {
	dec, err := e.decide(ctx, f)
	if err != nil {
		res.Failed.Add(1)
		slog.Error("sync failed", "key", f.Key, "stage", "decide", "error", err)
		return
	}

	if !dec.upload {
		res.Skipped.Add(1)
		slog.Debug("skipped", "key", f.Key, "reason", dec.reason)
		return
	}

	if e.cfg.DryRun {
		res.Uploaded.Add(1)
		slog.Info("planned upload", "key", f.Key, "size", f.Size, "reason", dec.reason, "dryrun", true)
		return
	}

	if err := e.upload(ctx, f); err != nil {
		res.Failed.Add(1)
		slog.Error("sync failed", "key", f.Key, "stage", "upload", "error", err)
		return
	}

	res.Uploaded.Add(1)
	res.BytesUploaded.Add(f.Size)
	slog.Info("uploaded", "key", f.Key, "size", f.Size, "reason", dec.reason)
}

// upload pushes one file, reopening it per attempt so a retried request
// always sends the full body.
func (e *Engine) upload(ctx context.Context, f *LocalFile) error {
	fingerprint, err := e.fingerprint(f)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", f.AbsPath, err)
	}
	mimeType := contenttype.Detect(f.AbsPath, f.Key)

	return e.policy.Do(ctx, "upload", func(ctx context.Context) error {
		body, err := os.Open(f.AbsPath)
		if err != nil {
			return err
		}
		defer body.Close()

		return e.store.Upload(ctx, f.Key, body, f.Size, mimeType, fingerprint)
	})
}

// fingerprint computes the content fingerprint of f, consulting the journal
// first when one is open. Journal staleness is keyed on size+mtime.
func (e *Engine) fingerprint(f *LocalFile) (string, error) {
	mtime := f.ModTime.UnixNano()

	if e.journal != nil {
		if fp, ok := e.journal.Lookup(f.AbsPath, f.Size, mtime); ok {
			return fp, nil
		}
	}

	fp, err := e.hashFile(f.AbsPath)
	if err != nil {
		return "", err
	}

	if e.journal != nil {
		if err := e.journal.Store(f.AbsPath, f.Size, mtime, fp); err != nil {
			slog.Warn("journal store", "path", f.AbsPath, "error", err)
		}
	}
	return fp, nil
}

func (e *Engine) reportProgress(done <-chan struct{}, res *Result, total int) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			slog.Info("sync progress",
				"done", res.Done(),
				"total", total,
				"uploaded", res.Uploaded.Load(),
				"skipped", res.Skipped.Load(),
				"failed", res.Failed.Load(),
			)
		}
	}
}
