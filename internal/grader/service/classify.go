package service

import "pddlgrader/internal/grader/model"

type outcome struct {
	status model.Status
	reason model.Reason
	stage  model.Stage
	// ambiguous plans go to the resolution cache
	ambiguous bool
}

// classify decides everything that does not need the resolution cache. The empty
// plan is compared like any other plan.
func classify(plan, baseline model.Plan, knownWrong []model.Plan) outcome {
	if model.Equal(plan, baseline) {
		return outcome{status: model.StatusPass, reason: model.ReasonNone, stage: model.StageExactMatch}
	}
	for _, wrong := range knownWrong {
		if model.Equal(plan, wrong) {
			return outcome{status: model.StatusFail, reason: model.ReasonKnownWrong, stage: model.StageKnownWrong}
		}
	}
	return outcome{ambiguous: true}
}
