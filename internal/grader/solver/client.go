// Package solver talks to the remote planning service: submit a domain/problem pair,
// then poll the returned job locator until a plan or an error is reported.
package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pddlgrader/internal/common/transport"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
	"pddlgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "https://solver.planning.domains:5001"
	DefaultPackage        = "dual-bfws-ffparser"
	DefaultAdaptor        = "planning_editor_adaptor"
	DefaultPollInterval   = time.Second
	DefaultMaxPolls       = 300
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds solver client settings.
type Config struct {
	BaseURL        string        `yaml:"baseURL"`
	Package        string        `yaml:"package"`
	Adaptor        string        `yaml:"adaptor"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	MaxPolls       int           `yaml:"maxPolls"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Package == "" {
		c.Package = DefaultPackage
	}
	if c.Adaptor == "" {
		c.Adaptor = DefaultAdaptor
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = DefaultMaxPolls
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Client solves planning problems remotely.
type Client struct {
	http         *transport.Client
	pkg          string
	adaptor      string
	pollInterval time.Duration
	maxPolls     int
}

// New creates a solver client.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		http:         transport.New(cfg.BaseURL, cfg.RequestTimeout),
		pkg:          cfg.Package,
		adaptor:      cfg.Adaptor,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
	}
}

type solveRequest struct {
	Domain  string `json:"domain"`
	Problem string `json:"problem"`
}

type submitResponse struct {
	Result string `json:"result"`
}

type pollRequest struct {
	Adaptor string `json:"adaptor"`
}

type pollResponse struct {
	Status string      `json:"status"`
	Plans  *[]planItem `json:"plans"`
}

type planItem struct {
	Result *struct {
		Plan *[]struct {
			Name *string `json:"name"`
		} `json:"plan"`
	} `json:"result"`
}

// pollState is the outcome of a single poll.
type pollState int

const (
	pollPending pollState = iota
	pollDone
)

// Solve returns the plan for domain and problem. An explicit service error yields the
// empty plan with a nil error; every transport or decoding problem yields an error.
func (c *Client) Solve(ctx context.Context, domain, problem string) (model.Plan, error) {
	if strings.TrimSpace(domain) == "" {
		return model.Plan{}, appErr.ValidationError("domain", "required")
	}
	if strings.TrimSpace(problem) == "" {
		return model.Plan{}, appErr.ValidationError("problem", "required")
	}

	locator, err := c.submit(ctx, domain, problem)
	if err != nil {
		return model.Plan{}, err
	}

	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return model.Plan{}, appErr.Wrapf(ctx.Err(), appErr.SolverUnavailable, "solve canceled")
		case <-timer.C:
		}

		plan, state, err := c.poll(ctx, locator)
		if err != nil {
			logger.Warn(ctx, "solver poll failed", zap.String("locator", locator), zap.Int("attempt", attempt), zap.Error(err))
			return model.Plan{}, err
		}
		if state == pollDone {
			logger.Debug(ctx, "solver finished", zap.String("locator", locator), zap.Int("attempt", attempt), zap.Int("actions", plan.Len()))
			return plan, nil
		}
		timer.Reset(c.pollInterval)
	}
	return model.Plan{}, appErr.Newf(appErr.SolverTimeout, "solver did not finish after %d polls", c.maxPolls).
		WithDetail("locator", locator)
}

func (c *Client) submit(ctx context.Context, domain, problem string) (string, error) {
	path := fmt.Sprintf("/package/%s/solve", c.pkg)
	resp, err := c.http.PostJSON(ctx, path, solveRequest{Domain: domain, Problem: problem})
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SolverUnavailable, "submit solve request failed")
	}
	if !resp.OK() {
		return "", appErr.Newf(appErr.SolverUnavailable, "submit solve request returned HTTP %d", resp.StatusCode)
	}
	var out submitResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", appErr.Wrapf(err, appErr.SolverBadResponse, "decode submit response failed")
	}
	if out.Result == "" {
		return "", appErr.New(appErr.SolverBadResponse).WithMessage("submit response has no job locator")
	}
	return out.Result, nil
}

func (c *Client) poll(ctx context.Context, locator string) (model.Plan, pollState, error) {
	resp, err := c.http.PostJSON(ctx, locator, pollRequest{Adaptor: c.adaptor})
	if err != nil {
		return model.Plan{}, pollPending, appErr.Wrapf(err, appErr.SolverUnavailable, "poll solve job failed")
	}
	if !resp.OK() {
		return model.Plan{}, pollPending, appErr.Newf(appErr.SolverUnavailable, "poll solve job returned HTTP %d", resp.StatusCode)
	}
	var out pollResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return model.Plan{}, pollPending, appErr.Wrapf(err, appErr.SolverBadResponse, "decode poll response failed")
	}
	return decodePoll(out)
}

func decodePoll(out pollResponse) (model.Plan, pollState, error) {
	if strings.EqualFold(out.Status, "error") {
		return model.Plan{}, pollDone, nil
	}
	if out.Plans == nil {
		if isPending(out.Status) {
			return model.Plan{}, pollPending, nil
		}
		return model.Plan{}, pollPending, appErr.Newf(appErr.SolverBadResponse, "unexpected solver status %q", out.Status)
	}
	plans := *out.Plans
	if len(plans) == 0 || plans[0].Result == nil || plans[0].Result.Plan == nil {
		return model.Plan{}, pollPending, appErr.New(appErr.SolverBadResponse).WithMessage("poll response has no plan")
	}
	steps := *plans[0].Result.Plan
	names := make([]string, 0, len(steps))
	for i, step := range steps {
		if step.Name == nil {
			return model.Plan{}, pollPending, appErr.Newf(appErr.SolverBadResponse, "plan step %d has no name", i)
		}
		names = append(names, *step.Name)
	}
	return model.NewPlan(names), pollDone, nil
}

func isPending(status string) bool {
	switch strings.ToLower(status) {
	case "", "pending", "running", "queued":
		return true
	default:
		return false
	}
}
