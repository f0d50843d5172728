package resolution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"pddlgrader/internal/common/storage"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
)

// ObjectStore keeps decision sets as two JSON objects in a bucket.
type ObjectStore struct {
	storage     storage.ObjectStorage
	bucket      string
	acceptedKey string
	rejectedKey string
}

// NewObjectStore creates an object-storage-backed store. Objects are
// <prefix>/mode<N>/accepted.json and rejected.json.
func NewObjectStore(s storage.ObjectStorage, bucket, prefix string, mode model.Mode) *ObjectStore {
	if prefix == "" {
		prefix = "decisions"
	}
	base := fmt.Sprintf("%s/mode%d", prefix, int(mode))
	return &ObjectStore{
		storage:     s,
		bucket:      bucket,
		acceptedKey: base + "/accepted.json",
		rejectedKey: base + "/rejected.json",
	}
}

func (s *ObjectStore) Load(ctx context.Context) (Decisions, error) {
	accepted, err := s.get(ctx, s.acceptedKey)
	if err != nil {
		return Decisions{}, err
	}
	rejected, err := s.get(ctx, s.rejectedKey)
	if err != nil {
		return Decisions{}, err
	}
	return Decisions{Accepted: accepted, Rejected: rejected}, nil
}

func (s *ObjectStore) Save(ctx context.Context, d Decisions) error {
	if err := s.put(ctx, s.acceptedKey, d.Accepted); err != nil {
		return err
	}
	return s.put(ctx, s.rejectedKey, d.Rejected)
}

func (s *ObjectStore) get(ctx context.Context, key string) ([]string, error) {
	reader, err := s.storage.GetObject(ctx, s.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "download %s failed", key)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "read %s failed", key)
	}
	keys, err := decodeList(bytes.TrimSpace(data))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DecisionStoreFailed, "decode %s failed", key)
	}
	return keys, nil
}

func (s *ObjectStore) put(ctx context.Context, key string, keys []string) error {
	data, err := encodeList(keys)
	if err != nil {
		return appErr.Wrap(err, appErr.DecisionStoreFailed)
	}
	if err := s.storage.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return appErr.Wrapf(err, appErr.DecisionStoreFailed, "upload %s failed", key)
	}
	return nil
}
