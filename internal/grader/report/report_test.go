package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pddlgrader/internal/common/storage"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
)

func verdict(last, first string, status model.Status, reason model.Reason) model.Verdict {
	return model.Verdict{
		Submission: model.Submission{StudentID: last + "_" + first, LastName: last, FirstName: first},
		Status:     status,
		Reason:     reason,
	}
}

func sample() []model.Verdict {
	return []model.Verdict{
		verdict("zhang", "wei", model.StatusFail, model.ReasonRuntimeError),
		verdict("Adams", "zoe", model.StatusPass, model.ReasonNone),
		verdict("adams", "amy", model.StatusFail, model.ReasonRejected),
		verdict("Miller", "", model.StatusFail, model.ReasonKnownWrong),
	}
}

func TestWriteSortsByLastName(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := strings.Join([]string{
		"Last Name,First Name,Result,Reason",
		"adams,amy,Fail,Rejected",
		"Adams,zoe,Pass,",
		"Miller,,Fail,KnownWrong",
		"zhang,wei,Fail,RuntimeError",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected report:\n%s", buf.String())
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "Last Name,First Name,Result,Reason\n" {
		t.Fatalf("unexpected report %q", buf.String())
	}
}

func TestWriteFileAndUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "pddl_1_grades.csv")
	if err := WriteFile(path, sample()); err != nil {
		t.Fatalf("write file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(data), "Last Name,") {
		t.Fatalf("unexpected file %q %v", data, err)
	}

	store := &captureStorage{}
	key, err := NewUploader(store, "grades", "/runs/r1/").Upload(context.Background(), "pddl_1_grades.csv", path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if key != "runs/r1/pddl_1_grades.csv" || store.bucket != "grades" || !bytes.Equal(store.data, data) || store.contentType != "text/csv" {
		t.Fatalf("unexpected upload %q %+v", key, store)
	}

	store.lost = 1
	if _, err := NewUploader(store, "grades", "").Upload(context.Background(), "short.csv", path); !appErr.Is(err, appErr.ReportUploadFailed) {
		t.Fatalf("expected size mismatch to fail the upload, got %v", err)
	}

	store.err = errors.New("denied")
	if _, err := NewUploader(store, "grades", "").Upload(context.Background(), "x.csv", path); !appErr.Is(err, appErr.ReportUploadFailed) {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if _, err := (*Uploader)(nil).Upload(context.Background(), "x.csv", path); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample(), 2)
	if s.Total != 6 || s.Passed != 1 || s.Failed != 3 || s.RuntimeError != 1 || s.KnownWrong != 1 || s.Rejected != 1 || s.Dropped != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if got := s.String(); !strings.Contains(got, "6 submissions: 1 passed, 3 failed") || !strings.Contains(got, "2 dropped") {
		t.Fatalf("unexpected summary text %q", got)
	}
}

type captureStorage struct {
	bucket      string
	key         string
	contentType string
	data        []byte
	err         error
	// lost shrinks the size reported by StatObject
	lost int64
}

func (c *captureStorage) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if c.err != nil {
		return c.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.bucket, c.key, c.contentType, c.data = bucket, key, contentType, data
	return nil
}

func (c *captureStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (c *captureStorage) StatObject(ctx context.Context, bucket, key string) (storage.ObjectStat, error) {
	if key != c.key {
		return storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	return storage.ObjectStat{SizeBytes: int64(len(c.data)) - c.lost, ContentType: c.contentType}, nil
}
