// Package report renders grading verdicts as a CSV grade sheet.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pddlgrader/internal/common/storage"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
)

var header = []string{"Last Name", "First Name", "Result", "Reason"}

// Sort orders verdicts by last name, case-insensitively. Ties fall back to first name and student id.
func Sort(verdicts []model.Verdict) []model.Verdict {
	out := make([]model.Verdict, len(verdicts))
	copy(out, verdicts)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Submission, out[j].Submission
		if la, lb := strings.ToLower(a.LastName), strings.ToLower(b.LastName); la != lb {
			return la < lb
		}
		if fa, fb := strings.ToLower(a.FirstName), strings.ToLower(b.FirstName); fa != fb {
			return fa < fb
		}
		return a.StudentID < b.StudentID
	})
	return out
}

// Write renders the grade sheet to w.
func Write(w io.Writer, verdicts []model.Verdict) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return appErr.Wrapf(err, appErr.ReportWriteFailed, "write header failed")
	}
	for _, v := range Sort(verdicts) {
		row := []string{v.Submission.LastName, v.Submission.FirstName, string(v.Status), string(v.Reason)}
		if err := cw.Write(row); err != nil {
			return appErr.Wrapf(err, appErr.ReportWriteFailed, "write row for %s failed", v.Submission.StudentID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return appErr.Wrapf(err, appErr.ReportWriteFailed, "flush report failed")
	}
	return nil
}

// WriteFile writes the grade sheet to path, replacing any previous report.
func WriteFile(path string, verdicts []model.Verdict) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return appErr.Wrapf(err, appErr.ReportWriteFailed, "create report dir failed")
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return appErr.Wrapf(err, appErr.ReportWriteFailed, "create %s failed", path)
	}
	if err := Write(file, verdicts); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return appErr.Wrapf(err, appErr.ReportWriteFailed, "close %s failed", path)
	}
	return nil
}

// Uploader copies finished reports to object storage.
type Uploader struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
}

func NewUploader(s storage.ObjectStorage, bucket, prefix string) *Uploader {
	return &Uploader{storage: s, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Upload pushes the local report at path, checks the stored size and returns the object key.
func (u *Uploader) Upload(ctx context.Context, name, path string) (string, error) {
	if u == nil || u.storage == nil {
		return "", appErr.New(appErr.ServiceUnavailable).WithMessage("report storage is not configured")
	}
	file, err := os.Open(path)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ReportUploadFailed, "open %s failed", path)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ReportUploadFailed, "stat %s failed", path)
	}
	key := name
	if u.prefix != "" {
		key = u.prefix + "/" + name
	}
	if err := u.storage.PutObject(ctx, u.bucket, key, file, info.Size(), "text/csv"); err != nil {
		return "", appErr.Wrapf(err, appErr.ReportUploadFailed, "upload %s failed", key)
	}
	stat, err := u.storage.StatObject(ctx, u.bucket, key)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ReportUploadFailed, "stat %s failed", key)
	}
	if stat.SizeBytes != info.Size() {
		return "", appErr.Newf(appErr.ReportUploadFailed, "uploaded %s has %d bytes, expected %d", key, stat.SizeBytes, info.Size())
	}
	return key, nil
}
