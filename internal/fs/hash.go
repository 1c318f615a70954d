package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// hashChunkSize bounds memory use while hashing large files.
const hashChunkSize = 1 << 20

// HashFile streams the file through SHA-256 in 1 MiB chunks and returns
// the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to hash file: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashContent computes the xxhash of content bytes. It is a cheap change
// detector, not a content identity.
func HashContent(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
