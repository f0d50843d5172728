// Package roster finds student submissions on disk and derives student names from file names.
package roster

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
)

const submissionExt = ".pddl"

// List returns the .pddl submissions in dir, sorted by file name.
// A file stem "Surname_Given[_anything]" names the student.
func List(dir string) ([]model.Submission, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionReadFailed, "list submissions in %s failed", dir)
	}
	var subs []model.Submission
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), submissionExt) {
			continue
		}
		sub := FromPath(filepath.Join(dir, entry.Name()))
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Path < subs[j].Path })
	return subs, nil
}

// FromPath builds a submission from a single file path.
func FromPath(path string) model.Submission {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	sub := model.Submission{Path: path, LastName: parts[0]}
	if len(parts) >= 2 {
		sub.FirstName = parts[1]
		sub.StudentID = parts[0] + "_" + parts[1]
	} else {
		sub.StudentID = parts[0]
	}
	return sub
}

// Renamed records one rename performed by Rename.
type Renamed struct {
	From string
	To   string
}

// lmsName matches "Given Surname_<id>_assignsubmission_file_<original>.pddl".
var lmsName = regexp.MustCompile(`^(.+?)_\d+_assignsubmission_file_.*$`)

// Rename normalises LMS download names in dir to "Surname_Given.pddl". Files that do not
// look like LMS downloads are left alone, and existing targets are never overwritten.
func Rename(dir string) ([]Renamed, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionReadFailed, "list submissions in %s failed", dir)
	}
	var done []Renamed
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), submissionExt) {
			continue
		}
		target, ok := normalizedName(entry.Name())
		if !ok || target == entry.Name() {
			continue
		}
		from := filepath.Join(dir, entry.Name())
		to := filepath.Join(dir, target)
		if _, err := os.Stat(to); err == nil {
			return done, appErr.Newf(appErr.RenameConflict, "%s already exists, not renaming %s", target, entry.Name())
		}
		if err := os.Rename(from, to); err != nil {
			return done, appErr.Wrapf(err, appErr.SubmissionReadFailed, "rename %s failed", entry.Name())
		}
		done = append(done, Renamed{From: from, To: to})
	}
	return done, nil
}

func normalizedName(name string) (string, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := lmsName.FindStringSubmatch(stem)
	if m == nil {
		return "", false
	}
	words := strings.Fields(m[1])
	if len(words) < 2 {
		return "", false
	}
	given := strings.Join(words[:len(words)-1], "-")
	surname := words[len(words)-1]
	return surname + "_" + given + submissionExt, true
}
