package resolution

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	appErr "pddlgrader/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// FileStore keeps each decision set in its own JSON array file.
// Paths ending in .zst are zstd-compressed.
type FileStore struct {
	acceptedPath string
	rejectedPath string
}

// NewFileStore creates a file-backed store.
func NewFileStore(acceptedPath, rejectedPath string) *FileStore {
	return &FileStore{acceptedPath: acceptedPath, rejectedPath: rejectedPath}
}

// Load reads both files. Missing files load as empty sets.
func (s *FileStore) Load(ctx context.Context) (Decisions, error) {
	accepted, err := readListFile(s.acceptedPath)
	if err != nil {
		return Decisions{}, err
	}
	rejected, err := readListFile(s.rejectedPath)
	if err != nil {
		return Decisions{}, err
	}
	return Decisions{Accepted: accepted, Rejected: rejected}, nil
}

// Save overwrites both files.
func (s *FileStore) Save(ctx context.Context, d Decisions) error {
	if err := writeListFile(s.acceptedPath, d.Accepted); err != nil {
		return err
	}
	return writeListFile(s.rejectedPath, d.Rejected)
}

func readListFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "open decision file %s failed", path)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, zstdSuffix) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "create zstd reader failed")
		}
		defer dec.Close()
		reader = dec
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "read decision file %s failed", path)
	}
	keys, err := decodeList(bytes.TrimSpace(data))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "decode decision file %s failed", path)
	}
	return keys, nil
}

func writeListFile(path string, keys []string) error {
	if path == "" {
		return appErr.ValidationError("decision file", "path required")
	}
	data, err := encodeList(keys)
	if err != nil {
		return appErr.Wrap(err, appErr.DecisionStoreFailed)
	}
	if strings.HasSuffix(path, zstdSuffix) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return appErr.Wrapf(err, appErr.DecisionStoreFailed, "create zstd writer failed")
		}
		data = enc.EncodeAll(data, nil)
		_ = enc.Close()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return appErr.Wrapf(err, appErr.DecisionStoreFailed, "create decision dir failed")
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return appErr.Wrapf(err, appErr.DecisionStoreFailed, "write decision file %s failed", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return appErr.Wrapf(err, appErr.DecisionStoreFailed, "replace decision file %s failed", path)
	}
	return nil
}
