package judge

import (
	"context"
	"strings"

	"pddlgrader/internal/grader/resolution"
	appErr "pddlgrader/pkg/errors"
)

// Policy selects how a Static judge answers.
type Policy string

const (
	PolicyConsole Policy = "console"
	PolicyReject  Policy = "reject"
	PolicyAbort   Policy = "abort"
)

// ParsePolicy accepts console, reject or abort. Empty means console.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyConsole, nil
	case PolicyConsole, PolicyReject, PolicyAbort:
		return p, nil
	}
	return "", appErr.ValidationError("judge", "must be console, reject or abort")
}

// Static answers without asking anyone. It is meant for unattended re-runs where
// the decision sets already cover the expected plans.
type Static struct {
	policy Policy
}

func NewStatic(policy Policy) *Static {
	return &Static{policy: policy}
}

func (s *Static) Judge(ctx context.Context, req resolution.JudgmentRequest) (bool, error) {
	if s.policy == PolicyAbort {
		return false, appErr.Newf(appErr.JudgmentAborted, "unseen plan from %s needs an operator", req.StudentID)
	}
	return false, nil
}
