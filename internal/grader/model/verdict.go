package model

import "fmt"

// Mode selects which operand the student file provides.
type Mode int

const (
	// ModeDomain grades student domains against the fixed baseline problem.
	ModeDomain Mode = 1
	// ModeProblem grades student problems against the fixed baseline domain.
	ModeProblem Mode = 2
)

// ParseMode validates a numeric mode selector.
func ParseMode(v int) (Mode, error) {
	switch Mode(v) {
	case ModeDomain, ModeProblem:
		return Mode(v), nil
	default:
		return 0, fmt.Errorf("unknown mode %d, expected 1 or 2", v)
	}
}

// Operands orders the student file and the fixed baseline file as (domain, problem).
func (m Mode) Operands(student, fixed string) (domain, problem string) {
	if m == ModeDomain {
		return student, fixed
	}
	return fixed, student
}

func (m Mode) String() string {
	switch m {
	case ModeDomain:
		return "domain"
	case ModeProblem:
		return "problem"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Status is the pass/fail outcome of a submission.
type Status string

const (
	StatusPass Status = "Pass"
	StatusFail Status = "Fail"
)

// Reason explains a failing verdict. ReasonNone accompanies every pass.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonRuntimeError Reason = "RuntimeError"
	ReasonKnownWrong   Reason = "KnownWrong"
	ReasonRejected     Reason = "Rejected"
)

// Stage is the terminal state of the per-submission classification that produced a verdict.
type Stage string

const (
	// the solver returned no usable answer
	StageFailed Stage = "Failed"
	// the plan equals the baseline
	StageExactMatch Stage = "ExactMatch"
	// the plan equals a known-wrong reference plan
	StageKnownWrong Stage = "KnownWrong"
	// a stored decision answered
	StageCacheHit Stage = "CacheHit"
	// the judge answered
	StageResolved Stage = "Resolved"
)

// Submission is one student file.
type Submission struct {
	StudentID string
	LastName  string
	FirstName string
	Path      string
}

// Verdict is the final classification of a submission.
type Verdict struct {
	Submission Submission
	Status     Status
	Reason     Reason
	// Stage is the terminal state that produced the verdict.
	Stage Stage
	// PlanKey is the canonical plan text, empty for runtime errors.
	PlanKey string
}

// Passed reports whether the verdict is a pass.
func (v Verdict) Passed() bool {
	return v.Status == StatusPass
}
