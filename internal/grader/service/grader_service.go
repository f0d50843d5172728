package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"pddlgrader/internal/grader/events"
	"pddlgrader/internal/grader/model"
	"pddlgrader/internal/grader/resolution"
	appErr "pddlgrader/pkg/errors"
	"pddlgrader/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/mr"
	"go.uber.org/zap"
)

const defaultPoolSize = 8

// Solver computes a plan for a domain and problem.
type Solver interface {
	Solve(ctx context.Context, domain, problem string) (model.Plan, error)
}

// Resolver classifies plans that differ from the baseline.
type Resolver interface {
	Resolve(ctx context.Context, req resolution.JudgmentRequest) (resolution.Resolution, error)
}

// Service grades submissions against a baseline plan.
type Service struct {
	solver       Solver
	resolver     Resolver
	publisher    events.Publisher
	runID        string
	poolSize     int
	solveTimeout time.Duration
}

// Config holds service dependencies and settings.
type Config struct {
	Solver   Solver
	Resolver Resolver
	// Publisher is optional.
	Publisher    events.Publisher
	RunID        string
	PoolSize     int
	SolveTimeout time.Duration
}

// GradeRequest describes one grading pass.
type GradeRequest struct {
	Submissions []model.Submission
	Baseline    model.Plan
	// KnownWrong plans fail without a prompt.
	KnownWrong []model.Plan
	// FixedPath is the baseline file paired with every student file.
	FixedPath string
	Mode      model.Mode
}

// Dropped is a submission that produced no verdict.
type Dropped struct {
	Submission model.Submission
	Err        error
}

// Result holds the outcome of a grading pass. Verdicts keep submission order.
type Result struct {
	Verdicts []model.Verdict
	Dropped  []Dropped
}

// NewService creates a grading service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Solver == nil {
		return nil, fmt.Errorf("solver is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &Service{
		solver:       cfg.Solver,
		resolver:     cfg.Resolver,
		publisher:    cfg.Publisher,
		runID:        cfg.RunID,
		poolSize:     poolSize,
		solveTimeout: cfg.SolveTimeout,
	}, nil
}

// Baseline solves the reference domain and problem. Any failure is fatal for the run.
func (s *Service) Baseline(ctx context.Context, domainPath, problemPath string) (model.Plan, error) {
	domain, err := os.ReadFile(domainPath)
	if err != nil {
		return model.Plan{}, appErr.Wrapf(err, appErr.BaselineUnavailable, "read baseline domain %s failed", domainPath)
	}
	problem, err := os.ReadFile(problemPath)
	if err != nil {
		return model.Plan{}, appErr.Wrapf(err, appErr.BaselineUnavailable, "read baseline problem %s failed", problemPath)
	}
	plan, err := s.solve(ctx, string(domain), string(problem))
	if err != nil {
		return model.Plan{}, appErr.Wrap(err, appErr.BaselineUnavailable)
	}
	if plan.IsEmpty() {
		logger.Warn(ctx, "baseline has no plan, only unsolvable submissions will match it")
	}
	logger.Info(ctx, "baseline solved", zap.Int("actions", plan.Len()))
	return plan, nil
}

// KnownWrong solves each known-wrong reference file paired with the fixed file, the same
// way a submission is solved. Any failure is fatal for the run.
func (s *Service) KnownWrong(ctx context.Context, paths []string, fixedPath string, mode model.Mode) ([]model.Plan, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	fixed, err := s.readFixed(GradeRequest{FixedPath: fixedPath, Mode: mode})
	if err != nil {
		return nil, err
	}
	plans := make([]model.Plan, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.BaselineUnavailable, "read known-wrong file %s failed", path)
		}
		domain, problem := mode.Operands(string(data), fixed)
		plan, err := s.solve(ctx, domain, problem)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.BaselineUnavailable, "solve known-wrong file %s failed", path)
		}
		logger.Info(ctx, "known-wrong plan solved", zap.String("path", path), zap.Int("actions", plan.Len()))
		plans = append(plans, plan)
	}
	return plans, nil
}

// GradeAll grades every submission on a bounded worker pool. Submissions that cannot be
// classified are reported in Result.Dropped instead of failing the pass.
func (s *Service) GradeAll(ctx context.Context, req GradeRequest) (Result, error) {
	fixed, err := s.readFixed(req)
	if err != nil {
		return Result{}, err
	}
	ctx = logger.WithMode(ctx, int(req.Mode))

	verdicts := make([]*model.Verdict, len(req.Submissions))
	failures := make([]error, len(req.Submissions))
	mr.ForEach(func(source chan<- int) {
		for i := range req.Submissions {
			source <- i
		}
	}, func(i int) {
		v, err := s.gradeSafe(ctx, req, fixed, req.Submissions[i])
		if err != nil {
			failures[i] = err
			return
		}
		verdicts[i] = &v
	}, mr.WithWorkers(s.poolSize), mr.WithContext(ctx))

	var result Result
	for i, sub := range req.Submissions {
		switch {
		case verdicts[i] != nil:
			result.Verdicts = append(result.Verdicts, *verdicts[i])
		case failures[i] != nil:
			result.Dropped = append(result.Dropped, Dropped{Submission: sub, Err: failures[i]})
		default:
			// never dispatched because the context ended first
			cause := ctx.Err()
			if cause == nil {
				cause = appErr.New(appErr.InternalServerError).WithMessage("submission was not graded")
			}
			result.Dropped = append(result.Dropped, Dropped{Submission: sub, Err: cause})
		}
	}
	for _, d := range result.Dropped {
		logger.Error(logger.WithStudent(ctx, d.Submission.StudentID), "submission dropped",
			zap.String("path", d.Submission.Path), zap.Error(d.Err))
	}
	logger.Info(ctx, "grading pass finished",
		zap.Int("graded", len(result.Verdicts)), zap.Int("dropped", len(result.Dropped)))
	return result, nil
}

// GradeOne grades a single submission.
func (s *Service) GradeOne(ctx context.Context, sub model.Submission, req GradeRequest) (model.Verdict, error) {
	fixed, err := s.readFixed(req)
	if err != nil {
		return model.Verdict{}, err
	}
	return s.gradeSafe(logger.WithMode(ctx, int(req.Mode)), req, fixed, sub)
}

func (s *Service) readFixed(req GradeRequest) (string, error) {
	if req.Mode != model.ModeDomain && req.Mode != model.ModeProblem {
		return "", appErr.ValidationError("mode", "must be 1 or 2")
	}
	data, err := os.ReadFile(req.FixedPath)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.BaselineUnavailable, "read fixed file %s failed", req.FixedPath)
	}
	return string(data), nil
}

func (s *Service) gradeSafe(ctx context.Context, req GradeRequest, fixed string, sub model.Submission) (v model.Verdict, err error) {
	ctx = logger.WithStudent(ctx, sub.StudentID)
	defer func() {
		if r := recover(); r != nil {
			err = appErr.Newf(appErr.InternalServerError, "grading %s panicked: %v", sub.Path, r)
		}
	}()
	v, err = s.grade(ctx, req, fixed, sub)
	if err != nil {
		return model.Verdict{}, err
	}
	s.publish(ctx, req.Mode, v)
	return v, nil
}

func (s *Service) grade(ctx context.Context, req GradeRequest, fixed string, sub model.Submission) (model.Verdict, error) {
	data, err := os.ReadFile(sub.Path)
	if err != nil {
		return model.Verdict{}, appErr.Wrapf(err, appErr.SubmissionReadFailed, "read %s failed", sub.Path)
	}
	domain, problem := req.Mode.Operands(string(data), fixed)

	verdict := model.Verdict{Submission: sub}
	plan, err := s.solve(ctx, domain, problem)
	if err != nil {
		// an interrupted run says nothing about the submission
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Verdict{}, ctxErr
		}
		logger.Warn(ctx, "solver failed for submission",
			zap.Bool("transient", appErr.GetCode(err).Transient()), zap.Error(err))
		verdict.Status, verdict.Reason, verdict.Stage = model.StatusFail, model.ReasonRuntimeError, model.StageFailed
		return verdict, nil
	}
	verdict.PlanKey = plan.Key()

	outcome := classify(plan, req.Baseline, req.KnownWrong)
	if !outcome.ambiguous {
		verdict.Status, verdict.Reason, verdict.Stage = outcome.status, outcome.reason, outcome.stage
		return verdict, nil
	}

	res, err := s.resolver.Resolve(ctx, resolution.JudgmentRequest{
		Plan:      plan,
		Baseline:  req.Baseline,
		StudentID: sub.StudentID,
	})
	if err != nil {
		return model.Verdict{}, err
	}
	verdict.Status, verdict.Reason = res.Status, res.Reason
	verdict.Stage = model.StageCacheHit
	if res.Prompted {
		verdict.Stage = model.StageResolved
	}
	return verdict, nil
}

func (s *Service) solve(ctx context.Context, domain, problem string) (model.Plan, error) {
	if s.solveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.solveTimeout)
		defer cancel()
	}
	return s.solver.Solve(ctx, domain, problem)
}

func (s *Service) publish(ctx context.Context, mode model.Mode, v model.Verdict) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishVerdict(ctx, events.NewVerdictEvent(s.runID, mode, v)); err != nil {
		logger.Warn(ctx, "publish verdict failed", zap.Error(err))
	}
}
