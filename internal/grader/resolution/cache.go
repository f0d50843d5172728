// Package resolution memoizes human judgments for plans that neither match the
// baseline nor have been seen before.
//
// A single goroutine owns the accepted and rejected sets. Workers submit requests over a
// channel and wait for the reply, so membership checks, prompts and inserts for one plan
// never interleave with another, and at most one plan is under judgment at a time.
package resolution

import (
	"context"
	"sync"
	"sync/atomic"

	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
	"pddlgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

// JudgmentRequest carries what the operator needs to judge a plan.
type JudgmentRequest struct {
	Plan      model.Plan
	Baseline  model.Plan
	StudentID string
}

// Judge decides whether a plan is acceptable.
type Judge interface {
	Judge(ctx context.Context, req JudgmentRequest) (bool, error)
}

// JudgeFunc adapts a function to Judge.
type JudgeFunc func(ctx context.Context, req JudgmentRequest) (bool, error)

func (f JudgeFunc) Judge(ctx context.Context, req JudgmentRequest) (bool, error) {
	return f(ctx, req)
}

// Resolution is the cache's answer for one plan.
type Resolution struct {
	Status model.Status
	Reason model.Reason
	// Prompted is true when the answer came from the judge rather than a stored decision.
	Prompted bool
}

// Stats reports cache activity for a run.
type Stats struct {
	Accepted int
	Rejected int
	Hits     int64
	Prompts  int64
}

type resolveRequest struct {
	ctx   context.Context
	req   JudgmentRequest
	reply chan resolveReply
}

type resolveReply struct {
	res Resolution
	err error
}

// Cache is the resolution cache. It is safe for concurrent use.
type Cache struct {
	judge Judge

	// owned by loop
	accepted map[string]struct{}
	rejected map[string]struct{}

	requests  chan resolveRequest
	snapshots chan chan Decisions
	// closing cancels a judgment in progress
	closing   context.Context
	cancel    context.CancelFunc
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	hits    atomic.Int64
	prompts atomic.Int64
}

// New seeds a cache from persisted decisions and starts its owner goroutine.
// Callers must Close the cache to stop it.
func New(judge Judge, seed Decisions) *Cache {
	normalized, conflicts := seed.Normalize()
	for _, key := range conflicts {
		logger.Warn(context.Background(), "plan stored as both accepted and rejected, keeping rejected",
			zap.String("plan", key))
	}
	closing, cancel := context.WithCancel(context.Background())
	c := &Cache{
		judge:     judge,
		closing:   closing,
		cancel:    cancel,
		accepted:  toSet(normalized.Accepted),
		rejected:  toSet(normalized.Rejected),
		requests:  make(chan resolveRequest),
		snapshots: make(chan chan Decisions),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.loop()
	return c
}

// Resolve classifies a plan that did not match the baseline. Stored decisions answer
// immediately; unseen plans are sent to the judge and the answer is recorded.
func (c *Cache) Resolve(ctx context.Context, req JudgmentRequest) (Resolution, error) {
	reply := make(chan resolveReply, 1)
	select {
	case c.requests <- resolveRequest{ctx: ctx, req: req, reply: reply}:
	case <-c.quit:
		return Resolution{}, appErr.New(appErr.ResolverClosed)
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

// Snapshot returns sorted copies of both decision sets. It waits for any judgment in progress.
func (c *Cache) Snapshot() Decisions {
	reply := make(chan Decisions, 1)
	select {
	case c.snapshots <- reply:
		return <-reply
	case <-c.done:
		return c.decisions()
	}
}

// Stats returns counters and set sizes.
func (c *Cache) Stats() Stats {
	d := c.Snapshot()
	return Stats{
		Accepted: len(d.Accepted),
		Rejected: len(d.Rejected),
		Hits:     c.hits.Load(),
		Prompts:  c.prompts.Load(),
	}
}

// Close cancels any judgment in progress and stops the owner goroutine. Decisions
// recorded before Close stay available through Snapshot.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.quit)
	})
	<-c.done
}

func (c *Cache) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case r := <-c.requests:
			res, err := c.resolve(r.ctx, r.req)
			r.reply <- resolveReply{res: res, err: err}
		case reply := <-c.snapshots:
			reply <- c.decisions()
		}
	}
}

func (c *Cache) resolve(ctx context.Context, req JudgmentRequest) (Resolution, error) {
	key := req.Plan.Key()
	if _, ok := c.rejected[key]; ok {
		c.hits.Add(1)
		return Resolution{Status: model.StatusFail, Reason: model.ReasonRejected}, nil
	}
	if _, ok := c.accepted[key]; ok {
		c.hits.Add(1)
		return Resolution{Status: model.StatusPass, Reason: model.ReasonNone}, nil
	}

	c.prompts.Add(1)
	judgeCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.closing, cancel)
	accept, err := c.judge.Judge(judgeCtx, req)
	stop()
	cancel()
	if err != nil {
		return Resolution{}, appErr.Wrapf(err, appErr.JudgmentAborted, "judge plan for %s failed", req.StudentID)
	}
	if accept {
		c.accepted[key] = struct{}{}
		logger.Info(ctx, "plan accepted", zap.Int("actions", req.Plan.Len()))
		return Resolution{Status: model.StatusPass, Reason: model.ReasonNone, Prompted: true}, nil
	}
	c.rejected[key] = struct{}{}
	logger.Info(ctx, "plan rejected", zap.Int("actions", req.Plan.Len()))
	return Resolution{Status: model.StatusFail, Reason: model.ReasonRejected, Prompted: true}, nil
}

func (c *Cache) decisions() Decisions {
	return Decisions{Accepted: sortedKeys(c.accepted), Rejected: sortedKeys(c.rejected)}
}
