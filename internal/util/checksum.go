package util

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Digest is the hex SHA-256 and size of a file.
type Digest struct {
	Hex  string
	Size int64
}

// SHA256File hashes the file at path.
func SHA256File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Digest{}, err
	}
	return Digest{Hex: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}
