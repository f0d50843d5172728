// Package judge asks the operator whether a plan that differs from the baseline is still correct.
package judge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"pddlgrader/internal/grader/model"
	"pddlgrader/internal/grader/resolution"
	appErr "pddlgrader/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "Is this plan correct? [y/n] "

// LineReader reads one answer line. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
}

// Console is an interactive judge. The resolution cache calls it from a single
// goroutine, so it holds no lock of its own.
type Console struct {
	reader LineReader
	out    io.Writer
	// pending is a read that outlived a cancelled judgment; the next read takes its line.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewConsole builds a judge from an existing reader and output.
func NewConsole(reader LineReader, out io.Writer) *Console {
	return &Console{reader: reader, out: out}
}

// NewTerminal opens a readline session on in/out. The returned close func releases the terminal.
func NewTerminal(in io.ReadCloser, out io.Writer) (*Console, func() error, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		Stdin:                  in,
		Stdout:                 out,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, nil, appErr.Wrapf(err, appErr.JudgmentAborted, "open terminal failed")
	}
	return NewConsole(rl, out), rl.Close, nil
}

// NewPiped reads answers line by line from a non-terminal input such as a pipe.
func NewPiped(in io.Reader, out io.Writer) *Console {
	return NewConsole(&pipedReader{in: bufio.NewReader(in), out: out}, out)
}

type pipedReader struct {
	in  *bufio.Reader
	out io.Writer
}

func (r *pipedReader) Readline() (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Judge prints the candidate next to the baseline and waits for y/yes or n/no.
// Any other answer re-prompts.
func (c *Console) Judge(ctx context.Context, req resolution.JudgmentRequest) (bool, error) {
	w := bufio.NewWriter(c.out)
	fmt.Fprintf(w, "\nSubmission %s produced a plan that differs from the baseline.\n", req.StudentID)
	writePlan(w, "Submitted plan", req.Plan)
	writePlan(w, "Baseline plan", req.Baseline)
	if err := w.Flush(); err != nil {
		return false, appErr.Wrapf(err, appErr.JudgmentAborted, "write judgment prompt failed")
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, appErr.Wrapf(err, appErr.JudgmentAborted, "judgment cancelled")
		}
		line, err := c.readLine(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return false, appErr.Wrapf(err, appErr.JudgmentAborted, "judgment cancelled")
			case errors.Is(err, io.EOF), errors.Is(err, readline.ErrInterrupt):
				return false, appErr.Wrapf(err, appErr.JudgmentAborted, "no answer for %s", req.StudentID)
			}
			return false, appErr.Wrapf(err, appErr.JudgmentAborted, "read answer failed")
		}
		accept, ok := parseAnswer(line)
		if ok {
			return accept, nil
		}
		fmt.Fprintln(c.out, "Please answer y or n.")
	}
}

// readLine waits for the next line or for ctx to end. The read itself runs in its own
// goroutine because neither readline nor a pipe can be interrupted.
func (c *Console) readLine(ctx context.Context) (string, error) {
	if c.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := c.reader.Readline()
			ch <- readResult{line: line, err: err}
		}()
		c.pending = ch
	}
	select {
	case r := <-c.pending:
		c.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// parseAnswer reads the first token of line. ok is false when the answer is not recognised.
func parseAnswer(line string) (accept bool, ok bool) {
	tokens, err := shlex.Split(line)
	if err != nil || len(tokens) == 0 {
		return false, false
	}
	switch strings.ToLower(tokens[0]) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}

func writePlan(w io.Writer, title string, plan model.Plan) {
	fmt.Fprintf(w, "%s (%d steps):\n", title, plan.Len())
	if plan.IsEmpty() {
		fmt.Fprintln(w, "  <no plan>")
		return
	}
	for i, action := range plan.Actions {
		fmt.Fprintf(w, "  %3d | %s\n", i+1, action)
	}
}
