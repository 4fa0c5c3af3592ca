package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepush/sitepush/internal/config"
	"github.com/sitepush/sitepush/internal/qetag"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func testConfig(sourceDir string) *config.Config {
	return &config.Config{
		SourceDir:   sourceDir,
		Provider:    config.ProviderS3,
		Bucket:      "test-bucket",
		Region:      "us-east-1",
		AccessKey:   "ak",
		SecretKey:   "sk",
		Prefix:      "site/",
		Concurrency: 4,
		Retries:     2,
		RetryDelay:  time.Millisecond,
	}
}

func TestRun_EmptyRemoteUploadsEverything(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.html":   "<html>home</html>",
		"css/site.css": "body{}",
		"js/app.js":    "console.log(1)",
	})

	fs := newFakeStore()
	res, err := New(testConfig(dir), fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Uploaded.Load())
	assert.Equal(t, int64(0), res.Skipped.Load())
	assert.Equal(t, int64(0), res.Failed.Load())
	assert.Contains(t, fs.objects, "site/index.html")
	assert.Contains(t, fs.objects, "site/css/site.css")
	assert.Contains(t, fs.objects, "site/js/app.js")
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.html": "<html>home</html>",
		"about.html": "<html>about</html>",
	})

	cfg := testConfig(dir)
	fs := newFakeStore()

	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Uploaded.Load())

	res, err = New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Uploaded.Load())
	assert.Equal(t, int64(2), res.Skipped.Load())
	assert.Equal(t, int64(0), res.Failed.Load())
}

func TestRun_IndexWithoutHashFallsBackToStat(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"index.html": "<html>home</html>"})

	cfg := testConfig(dir)
	fs := newFakeStore()
	fs.listHash = false // plain-S3 listings carry no fingerprint

	_, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	statsBefore := fs.statCalls
	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Skipped.Load())
	assert.Greater(t, fs.statCalls, statsBefore, "size match without hash needs a point stat")
}

func TestRun_ForceUploadsUpToDateFiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.html": "<html>home</html>",
		"about.html": "<html>about</html>",
	})

	cfg := testConfig(dir)
	fs := newFakeStore()
	_, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	listsBefore := fs.listCalls
	cfg.Force = true
	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Uploaded.Load())
	assert.Equal(t, int64(0), res.Skipped.Load())
	assert.Equal(t, listsBefore, fs.listCalls, "force skips the index build")
}

func TestRun_DryRunPerformsNoUploads(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.html": "<html>home</html>",
		"about.html": "<html>about</html>",
	})

	cfg := testConfig(dir)
	cfg.DryRun = true

	fs := newFakeStore()
	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Uploaded.Load(), "planned uploads are counted")
	assert.Equal(t, 0, fs.uploadCalls)
	assert.Empty(t, fs.objects)
}

func TestRun_SizeMismatchDecidesWithoutHashing(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"index.html": "<html>home</html>"})

	cfg := testConfig(dir)
	cfg.DryRun = true // keep the upload path (which fingerprints) out of it

	fs := newFakeStore()
	fs.objects["site/index.html"] = storeObject("site/index.html", "SomeRemoteHash", 9999)

	eng := New(cfg, fs, nil)
	var hashCalls atomic.Int64
	eng.hashFile = func(path string) (string, error) {
		hashCalls.Add(1)
		return qetag.HashFile(path)
	}

	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Uploaded.Load())
	assert.Equal(t, int64(0), hashCalls.Load(), "size mismatch must short-circuit the hasher")
}

func TestRun_HashMismatchReuploads(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"index.html": "<html>home</html>"})

	fs := newFakeStore()
	// same size as the local file, different content fingerprint
	fs.objects["site/index.html"] = storeObject("site/index.html", "DifferentHash", int64(len("<html>home</html>")))

	res, err := New(testConfig(dir), fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Uploaded.Load())
	assert.Equal(t, int64(0), res.Skipped.Load())
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.html": "aaa",
		"b.html": "bbb",
		"c.html": "ccc",
	})

	cfg := testConfig(dir)
	cfg.Retries = 1

	fs := newFakeStore()
	fs.uploadFailures["site/b.html"] = 100 // never recovers

	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err, "per-file failures must not fail the run")

	assert.Equal(t, int64(2), res.Uploaded.Load())
	assert.Equal(t, int64(1), res.Failed.Load())
	assert.Equal(t, 2, fs.uploadAttempts["site/b.html"], "retries+1 attempts")
	assert.Contains(t, fs.objects, "site/a.html")
	assert.Contains(t, fs.objects, "site/c.html")
}

func TestRun_UploadRecoversWithinRetryBudget(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"index.html": "<html>home</html>"})

	cfg := testConfig(dir)
	cfg.Retries = 2

	fs := newFakeStore()
	fs.uploadFailures["site/index.html"] = 2 // fails twice, succeeds on the 3rd

	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Uploaded.Load())
	assert.Equal(t, int64(0), res.Failed.Load())
	assert.Equal(t, 3, fs.uploadAttempts["site/index.html"])
}

func TestRun_IndexBuildFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"index.html": "<html>home</html>"})

	cfg := testConfig(dir)
	cfg.Retries = 1

	fs := newFakeStore()
	fs.listFailures = 100 // exhausts every retry

	_, err := New(cfg, fs, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexBuild)
	assert.Equal(t, 0, fs.uploadCalls)
}

func TestRun_NoPrefixUsesPointLookups(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.html": "aaa",
		"b.html": "bbb",
	})

	cfg := testConfig(dir)
	cfg.Prefix = ""

	fs := newFakeStore()
	res, err := New(cfg, fs, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Uploaded.Load())
	assert.Equal(t, 0, fs.listCalls)
	assert.Equal(t, 2, fs.statCalls)
}

func TestRun_MissingRootIsFatal(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := New(cfg, newFakeStore(), nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRootMissing)
}

func TestRun_JournalSkipsRehashing(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.html": "aaa",
		"b.html": "bbb",
	})

	journal, err := OpenJournal(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer journal.Close()

	cfg := testConfig(dir)
	fs := newFakeStore()

	var hashCalls atomic.Int64
	countingHash := func(path string) (string, error) {
		hashCalls.Add(1)
		return qetag.HashFile(path)
	}

	eng := New(cfg, fs, journal)
	eng.hashFile = countingHash
	_, err = eng.Run(context.Background())
	require.NoError(t, err)
	firstRunHashes := hashCalls.Load()
	require.Greater(t, firstRunHashes, int64(0))

	eng = New(cfg, fs, journal)
	eng.hashFile = countingHash
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Skipped.Load())
	assert.Equal(t, firstRunHashes, hashCalls.Load(), "unchanged files reuse journaled fingerprints")
}
