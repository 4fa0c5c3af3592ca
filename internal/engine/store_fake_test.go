package engine

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sitepush/sitepush/internal/store"
)

// fakeStore is an in-memory Store with toggles for failure injection and
// metadata-capable listings.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]store.Object

	// listHash makes List include fingerprints, as the minio backend does;
	// false mimics plain S3 listings.
	listHash bool

	// pageMax forces pagination by capping page size below the requested
	// limit. Zero means no cap.
	pageMax int

	// uploadFailures[key] is the number of upload attempts for key that
	// fail before succeeding. listFailures likewise for List calls.
	uploadFailures map[string]int
	listFailures   int

	statCalls      int
	listCalls      int
	uploadCalls    int
	uploadAttempts map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:        make(map[string]store.Object),
		listHash:       true,
		uploadFailures: make(map[string]int),
		uploadAttempts: make(map[string]int),
	}
}

func (f *fakeStore) Stat(ctx context.Context, key string) (*store.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statCalls++
	obj, ok := f.objects[key]
	if !ok {
		return nil, store.ErrObjectNotFound
	}
	return &obj, nil
}

func (f *fakeStore) List(ctx context.Context, prefix, marker string, limit int32) (*store.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if f.listFailures > 0 {
		f.listFailures--
		return nil, errors.New("listing unavailable")
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) && k > marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pageSize := int(limit)
	if f.pageMax > 0 && f.pageMax < pageSize {
		pageSize = f.pageMax
	}

	page := &store.Page{}
	for _, k := range keys {
		if len(page.Items) == pageSize {
			page.Marker = page.Items[len(page.Items)-1].Key
			break
		}
		obj := f.objects[k]
		if !f.listHash {
			obj.Hash = ""
		}
		page.Items = append(page.Items, obj)
	}
	return page, nil
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType, fingerprint string) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploadCalls++
	f.uploadAttempts[key]++
	if f.uploadFailures[key] > 0 {
		f.uploadFailures[key]--
		return errors.New("503 service unavailable")
	}

	f.objects[key] = store.Object{Key: key, Hash: fingerprint, Size: size}
	return nil
}

func storeObject(key, hash string, size int64) store.Object {
	return store.Object{Key: key, Hash: hash, Size: size}
}

var _ store.Store = (*fakeStore)(nil)
