package report

import (
	"fmt"
	"strings"

	"pddlgrader/internal/grader/model"
)

// Summary counts verdicts by outcome.
type Summary struct {
	Total        int
	Passed       int
	Failed       int
	RuntimeError int
	KnownWrong   int
	Rejected     int
	Dropped      int
}

// Summarize counts verdicts. dropped is the number of submissions without a verdict.
func Summarize(verdicts []model.Verdict, dropped int) Summary {
	s := Summary{Total: len(verdicts) + dropped, Dropped: dropped}
	for _, v := range verdicts {
		if v.Passed() {
			s.Passed++
			continue
		}
		s.Failed++
		switch v.Reason {
		case model.ReasonRuntimeError:
			s.RuntimeError++
		case model.ReasonKnownWrong:
			s.KnownWrong++
		case model.ReasonRejected:
			s.Rejected++
		}
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d submissions: %d passed, %d failed", s.Total, s.Passed, s.Failed)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (runtime error %d, known wrong %d, rejected %d)", s.RuntimeError, s.KnownWrong, s.Rejected)
	}
	if s.Dropped > 0 {
		fmt.Fprintf(&b, ", %d dropped", s.Dropped)
	}
	return b.String()
}
