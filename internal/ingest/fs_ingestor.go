package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// FileInfo is what the pipeline needs to know about an inbox file before reading it.
type FileInfo struct {
	Path        string
	SizeBytes   int64
	Fingerprint string
}

// Fingerprint hashes the decimal file size, "|" and at most the first 5 MB of content.
// It is stable across renames and moves of the same bytes.
func Fingerprint(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(st.Size(), 10)))
	h.Write([]byte("|"))
	if _, err := io.Copy(h, io.LimitReader(f, constants.FingerprintMaxBytes)); err != nil {
		return FileInfo{}, fmt.Errorf("hash: %w", err)
	}

	return FileInfo{
		Path:        path,
		SizeBytes:   st.Size(),
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
