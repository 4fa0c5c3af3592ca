package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitepush/sitepush/internal/store"
)

// decision reasons, surfaced in logs.
const (
	reasonForce    = "force"
	reasonAbsent   = "absent"
	reasonSize     = "size"
	reasonHash     = "hash"
	reasonUpToDate = "up-to-date"
)

type decision struct {
	upload bool
	reason string
}

// decide runs the upload-necessity ladder for one file: force first, then
// existence, then size, and only when sizes match the content fingerprint.
// Checks are ordered cheapest first; the hash is never computed unless it
// is the deciding factor.
func (e *Engine) decide(ctx context.Context, f *LocalFile) (decision, error) {
	if e.cfg.Force {
		return decision{upload: true, reason: reasonForce}, nil
	}

	remote, err := e.lookupRemote(ctx, f)
	if err != nil {
		return decision{}, err
	}
	if remote == nil {
		return decision{upload: true, reason: reasonAbsent}, nil
	}

	if remote.Size != f.Size {
		return decision{upload: true, reason: reasonSize}, nil
	}

	local, err := e.fingerprint(f)
	if err != nil {
		return decision{}, fmt.Errorf("fingerprint %s: %w", f.AbsPath, err)
	}
	if local != remote.Hash {
		return decision{upload: true, reason: reasonHash}, nil
	}

	return decision{upload: false, reason: reasonUpToDate}, nil
}

// lookupRemote resolves the last-known remote state of f. The prebuilt
// index is preferred; absence from it is authoritative since the index
// covers the whole prefix. Without an index (or when an index entry carries
// no fingerprint, as with S3 listings) a retried point stat fills in.
// A nil object with nil error means the key was never uploaded.
func (e *Engine) lookupRemote(ctx context.Context, f *LocalFile) (*store.Object, error) {
	if e.index != nil {
		obj, ok := e.index[f.Key]
		if !ok {
			return nil, nil
		}
		if obj.Hash != "" || obj.Size != f.Size {
			return &obj, nil
		}
		// Sizes match but the listing had no fingerprint; only a point
		// stat can tell whether the content changed.
	}

	var remote *store.Object
	err := e.policy.Do(ctx, "stat", func(ctx context.Context) error {
		obj, err := e.store.Stat(ctx, f.Key)
		if err != nil {
			if errors.Is(err, store.ErrObjectNotFound) {
				remote = nil
				return nil
			}
			return err
		}
		remote = obj
		return nil
	})
	if err != nil {
		return nil, err
	}
	return remote, nil
}
