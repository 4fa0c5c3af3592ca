package contenttype

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_ByExtension(t *testing.T) {
	assert.True(t, strings.HasPrefix(Detect("/tmp/nope.html", "site/index.html"), "text/html"))
	assert.True(t, strings.HasPrefix(Detect("/tmp/nope.css", "site/app.css"), "text/css"))
	assert.Equal(t, "image/png", Detect("/tmp/nope.png", "site/logo.png"))
}

func TestDetect_TextLikeOverride(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", Detect("/tmp/x", "docs/readme.md"))
	assert.Equal(t, "text/plain; charset=utf-8", Detect("/tmp/x", "conf/app.yaml"))
	assert.Equal(t, "text/plain; charset=utf-8", Detect("/tmp/x", "conf/app.toml"))
}

func TestDetect_SniffsUnknownExtensions(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "artifact.bin2")
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(png, pngMagic, 0o644))
	assert.Equal(t, "image/png", Detect(png, "assets/artifact.bin2"))

	missing := filepath.Join(dir, "gone.bin2")
	assert.Equal(t, "application/octet-stream", Detect(missing, "assets/gone.bin2"))

	empty := filepath.Join(dir, "empty.bin2")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.Equal(t, "application/octet-stream", Detect(empty, "assets/empty.bin2"))
}
