package judge

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"pddlgrader/internal/grader/model"
	"pddlgrader/internal/grader/resolution"
	appErr "pddlgrader/pkg/errors"

	"github.com/chzyer/readline"
)

type scriptedReader struct {
	lines []string
	err   error
	reads int
}

func (r *scriptedReader) Readline() (string, error) {
	r.reads++
	if len(r.lines) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func request() resolution.JudgmentRequest {
	return resolution.JudgmentRequest{
		Plan:      model.NewPlan([]string{"(move a b)", "(pick x)"}),
		Baseline:  model.NewPlan([]string{"(pick x)", "(move a b)"}),
		StudentID: "doe_jane",
	}
}

func TestConsoleAnswers(t *testing.T) {
	cases := []struct {
		lines []string
		want  bool
		reads int
	}{
		{lines: []string{"y"}, want: true, reads: 1},
		{lines: []string{"  YES  "}, want: true, reads: 1},
		{lines: []string{"n"}, want: false, reads: 1},
		{lines: []string{"No"}, want: false, reads: 1},
		{lines: []string{"", "maybe", "'y'"}, want: true, reads: 3},
	}
	for _, tc := range cases {
		reader := &scriptedReader{lines: tc.lines}
		var out bytes.Buffer
		got, err := NewConsole(reader, &out).Judge(context.Background(), request())
		if err != nil {
			t.Fatalf("judge %q: %v", tc.lines, err)
		}
		if got != tc.want || reader.reads != tc.reads {
			t.Fatalf("judge %q: got %v after %d reads", tc.lines, got, reader.reads)
		}
	}
}

func TestConsolePrintsBothPlans(t *testing.T) {
	var out bytes.Buffer
	if _, err := NewConsole(&scriptedReader{lines: []string{"n"}}, &out).Judge(context.Background(), request()); err != nil {
		t.Fatalf("judge: %v", err)
	}
	text := out.String()
	for _, want := range []string{"doe_jane", "Submitted plan (2 steps)", "Baseline plan (2 steps)", "  1 | (move a b)", "  2 | (move a b)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestConsoleEmptyPlan(t *testing.T) {
	var out bytes.Buffer
	req := request()
	req.Plan = model.Plan{}
	if _, err := NewConsole(&scriptedReader{lines: []string{"n"}}, &out).Judge(context.Background(), req); err != nil {
		t.Fatalf("judge: %v", err)
	}
	if !strings.Contains(out.String(), "<no plan>") {
		t.Fatalf("expected empty plan marker, got:\n%s", out.String())
	}
}

func TestConsoleAborts(t *testing.T) {
	for _, err := range []error{io.EOF, readline.ErrInterrupt} {
		_, got := NewConsole(&scriptedReader{err: err}, io.Discard).Judge(context.Background(), request())
		if !appErr.Is(got, appErr.JudgmentAborted) {
			t.Fatalf("expected judgment aborted for %v, got %v", err, got)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &scriptedReader{lines: []string{"y"}}
	if _, err := NewConsole(reader, io.Discard).Judge(ctx, request()); !appErr.Is(err, appErr.JudgmentAborted) {
		t.Fatalf("expected cancelled judgment, got %v", err)
	}
	if reader.reads != 0 {
		t.Fatalf("expected no read after cancel")
	}
}

func TestStaticPolicies(t *testing.T) {
	ok, err := NewStatic(PolicyReject).Judge(context.Background(), request())
	if err != nil || ok {
		t.Fatalf("expected reject, got %v %v", ok, err)
	}
	if _, err := NewStatic(PolicyAbort).Judge(context.Background(), request()); !appErr.Is(err, appErr.JudgmentAborted) {
		t.Fatalf("expected abort, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyConsole, "Reject": PolicyReject, " abort ": PolicyAbort} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %q %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("always-yes"); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPipedConsole(t *testing.T) {
	var out bytes.Buffer
	c := NewPiped(strings.NewReader("what\r\nyes\nn"), &out)
	ok, err := c.Judge(context.Background(), request())
	if err != nil || !ok {
		t.Fatalf("expected accept, got %v %v", ok, err)
	}
	ok, err = c.Judge(context.Background(), request())
	if err != nil || ok {
		t.Fatalf("expected reject from final unterminated line, got %v %v", ok, err)
	}
	if _, err := c.Judge(context.Background(), request()); !appErr.Is(err, appErr.JudgmentAborted) {
		t.Fatalf("expected abort at end of input, got %v", err)
	}
	if strings.Count(out.String(), prompt) != 4 {
		t.Fatalf("expected a prompt per read, got:\n%s", out.String())
	}
}

// promptWatcher signals once the first prompt has been written.
type promptWatcher struct {
	once     sync.Once
	prompted chan struct{}
}

func (w *promptWatcher) Write(p []byte) (int, error) {
	if strings.Contains(string(p), prompt) {
		w.once.Do(func() { close(w.prompted) })
	}
	return len(p), nil
}

func TestPipedConsoleCancelledWhileWaiting(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	out := &promptWatcher{prompted: make(chan struct{})}
	cache := resolution.New(NewPiped(pr, out), resolution.Decisions{})

	ctx, cancel := context.WithCancel(context.Background())
	resolved := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(ctx, request())
		resolved <- err
	}()
	<-out.prompted
	cancel()
	if err := <-resolved; err == nil {
		t.Fatalf("expected resolve to fail after cancel")
	}

	closed := make(chan struct{})
	go func() {
		cache.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("close blocked on an unanswered prompt")
	}
	if cache.Snapshot().Len() != 0 {
		t.Fatalf("expected no decision for the cancelled prompt")
	}
}

func TestConsoleKeepsLineReadAfterCancel(t *testing.T) {
	pr, pw := io.Pipe()
	out := &promptWatcher{prompted: make(chan struct{})}
	c := NewPiped(pr, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Judge(ctx, request())
		done <- err
	}()
	<-out.prompted
	cancel()
	if err := <-done; !appErr.Is(err, appErr.JudgmentAborted) {
		t.Fatalf("expected cancelled judgment, got %v", err)
	}

	go func() {
		_, _ = io.WriteString(pw, "y\n")
		_ = pw.Close()
	}()
	ok, err := c.Judge(context.Background(), request())
	if err != nil || !ok {
		t.Fatalf("expected the late answer to serve the next judgment, got %v %v", ok, err)
	}
}
