package roster

import (
	"os"
	"path/filepath"
	"testing"

	appErr "pddlgrader/pkg/errors"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("(define)"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Doe_Jane_domain.pddl")
	touch(t, dir, "smith_john.PDDL")
	touch(t, dir, "solo.pddl")
	touch(t, dir, "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "nested.pddl"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	subs, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 submissions, got %+v", subs)
	}
	byID := map[string]bool{}
	for _, s := range subs {
		byID[s.StudentID] = true
	}
	for _, id := range []string{"Doe_Jane", "smith_john", "solo"} {
		if !byID[id] {
			t.Fatalf("missing %s in %+v", id, subs)
		}
	}
	if _, err := List(filepath.Join(dir, "missing")); !appErr.Is(err, appErr.SubmissionReadFailed) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestFromPath(t *testing.T) {
	sub := FromPath("/tmp/Doe_Jane_attempt2.pddl")
	if sub.LastName != "Doe" || sub.FirstName != "Jane" || sub.StudentID != "Doe_Jane" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	solo := FromPath("solo.pddl")
	if solo.LastName != "solo" || solo.FirstName != "" || solo.StudentID != "solo" {
		t.Fatalf("unexpected submission %+v", solo)
	}
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Jane Doe_1234_assignsubmission_file_domain.pddl")
	touch(t, dir, "Mary Ann Lee_77_assignsubmission_file_my problem.pddl")
	touch(t, dir, "Smith_John.pddl")

	renamed, err := Rename(dir)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if len(renamed) != 2 {
		t.Fatalf("expected 2 renames, got %+v", renamed)
	}
	for _, name := range []string{"Doe_Jane.pddl", "Lee_Mary-Ann.pddl", "Smith_John.pddl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	touch(t, dir, "Jane Doe_99_assignsubmission_file_late.pddl")
	if _, err := Rename(dir); !appErr.Is(err, appErr.RenameConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Jane Doe_99_assignsubmission_file_late.pddl")); err != nil {
		t.Fatalf("conflicting file must stay in place: %v", err)
	}
}
