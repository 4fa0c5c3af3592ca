// Package qetag computes block-based content fingerprints compatible with
// the remote store's own hashing scheme. The fingerprint depends only on the
// file bytes, never on mtime or read chunking, which makes it usable for
// change detection across machines and runs.
package qetag

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"io"
	"os"
)

// BlockSize is the fixed block length of the fingerprint scheme.
const BlockSize = 4 * 1024 * 1024

const (
	tagSingle = 0x16 // file fits in a single block
	tagMulti  = 0x96 // digest-of-digests over multiple blocks
)

// Hash computes the fingerprint of everything readable from r.
//
// Files up to BlockSize hash to base64url(0x16 ++ sha1(data)). Larger files
// are split into consecutive BlockSize blocks; the per-block SHA-1 digests
// are concatenated in order and hashed once more, giving
// base64url(0x96 ++ sha1(digests)). The base64 alphabet is URL-safe and
// unpadded.
func Hash(r io.Reader) (string, error) {
	var digests []byte
	blocks := 0

	for {
		h := sha1.New()
		n, err := io.CopyN(h, r, BlockSize)
		if n > 0 || blocks == 0 {
			digests = append(digests, h.Sum(nil)...)
			blocks++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		if n < BlockSize {
			break
		}
	}

	if blocks == 1 {
		return encode(tagSingle, digests), nil
	}

	top := sha1.Sum(digests)
	return encode(tagMulti, top[:]), nil
}

// HashFile computes the fingerprint of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return Hash(f)
}

func encode(tag byte, digest []byte) string {
	buf := make([]byte, 0, 1+len(digest))
	buf = append(buf, tag)
	buf = append(buf, digest...)
	return base64.RawURLEncoding.EncodeToString(buf)
}
