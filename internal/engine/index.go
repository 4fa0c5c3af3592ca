package engine

import (
	"context"
	"errors"

	"github.com/sitepush/sitepush/internal/retry"
	"github.com/sitepush/sitepush/internal/store"
)

// ErrIndexBuild marks a remote listing failure after retries. It is fatal
// to the run: without a consistent view of remote state the sync cannot
// safely proceed, unlike per-file failures which stay isolated.
var ErrIndexBuild = errors.New("remote index build failed")

const listPageSize = 1000

// buildIndex pages through the remote listing under prefix and collects one
// consistent snapshot of key -> object. It runs at most once per run and
// the result is read-only afterward. Each page call is individually
// retried.
func buildIndex(ctx context.Context, st store.Store, prefix string, policy retry.Policy) (map[string]store.Object, error) {
	index := make(map[string]store.Object)
	marker := ""

	for {
		var page *store.Page
		err := policy.Do(ctx, "list", func(ctx context.Context) error {
			p, err := st.List(ctx, prefix, marker, listPageSize)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Items {
			if obj.Key == "" {
				continue
			}
			index[obj.Key] = obj
		}

		if page.Marker == "" {
			return index, nil
		}
		marker = page.Marker
	}
}
