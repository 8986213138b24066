package pptxtemplate

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
)

// Digest is the hex-encoded SHA-1 of an image's raw bytes. Pictures are
// matched against replacement entries by digest, never by file name.
type Digest string

// HashBytes returns the content digest of data.
func HashBytes(data []byte) Digest {
	sum := sha1.Sum(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// HashFile reads the file at path and returns its content digest.
func HashFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return HashBytes(data), nil
}

// digestCache memoizes file digests for the duration of one render pass.
type digestCache map[string]Digest

func (c digestCache) hash(path string) (Digest, error) {
	if d, ok := c[path]; ok {
		return d, nil
	}
	d, err := HashFile(path)
	if err != nil {
		return "", err
	}
	c[path] = d
	return d, nil
}
