// Package executortest provides an in-process executor.Interpreter for
// tests that exercise sessions without a wasm binary.
package executortest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/pyrunner/executor"
	"github.com/caffeineduck/pyrunner/hostfunc"
)

// Interpreter runs a tiny line language, one command per line:
//
//	print <text>           writes text and a newline
//	save <name> <content>  calls save_file and prints its message
//	call <fn> <json>       calls any host function and prints the JSON result
//	raise <message>        fails with *executor.ExecError
//	block                  waits for Release or context cancellation
//	exit                   the runtime dies
//
// Lines it does not recognise are ignored, so Python source passes through.
type Interpreter struct {
	// StartErr, if set, is returned by Start.
	StartErr error

	mu         sync.Mutex
	registry   *hostfunc.Registry
	startCalls int
	closed     bool
	exited     bool
	execs      []string
	initialLen []int

	blocked chan struct{}
	release chan struct{}
}

func New() *Interpreter {
	return &Interpreter{
		blocked: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (i *Interpreter) Start(ctx context.Context, registry *hostfunc.Registry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startCalls++
	if i.StartErr != nil {
		return i.StartErr
	}
	i.registry = registry
	return nil
}

func (i *Interpreter) Exec(ctx context.Context, code string, stdout io.Writer) error {
	i.mu.Lock()
	if i.exited {
		i.mu.Unlock()
		return executor.ErrRuntimeExited
	}
	i.execs = append(i.execs, code)
	if l, ok := stdout.(interface{ Len() int }); ok {
		i.initialLen = append(i.initialLen, l.Len())
	}
	registry := i.registry
	i.mu.Unlock()

	for _, line := range strings.Split(code, "\n") {
		cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case "print":
			fmt.Fprintln(stdout, rest)
		case "save":
			name, content, _ := strings.Cut(rest, " ")
			msg, err := i.call(ctx, registry, "save_file", map[string]any{"filename": name, "content": content})
			if err != nil {
				return &executor.ExecError{Message: err.Error()}
			}
			fmt.Fprintln(stdout, msg)
		case "call":
			fn, raw, _ := strings.Cut(rest, " ")
			args := map[string]any{}
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return &executor.ExecError{Message: err.Error()}
				}
			}
			out, err := i.call(ctx, registry, fn, args)
			if err != nil {
				return &executor.ExecError{Message: err.Error()}
			}
			data, _ := json.Marshal(out)
			fmt.Fprintln(stdout, string(data))
		case "raise":
			return &executor.ExecError{Message: rest}
		case "block":
			i.blocked <- struct{}{}
			select {
			case <-i.release:
			case <-ctx.Done():
				i.setExited()
				return fmt.Errorf("%w: %w", executor.ErrRuntimeExited, ctx.Err())
			}
		case "exit":
			i.setExited()
			return executor.ErrRuntimeExited
		}
	}
	return nil
}

func (i *Interpreter) call(ctx context.Context, registry *hostfunc.Registry, name string, args map[string]any) (any, error) {
	if registry == nil {
		return nil, errors.New("not started")
	}
	return registry.Call(ctx, name, args)
}

func (i *Interpreter) setExited() {
	i.mu.Lock()
	i.exited = true
	i.mu.Unlock()
}

func (i *Interpreter) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// Blocked receives once each time a run reaches a block line.
func (i *Interpreter) Blocked() <-chan struct{} {
	return i.blocked
}

// Release lets one blocked run continue.
func (i *Interpreter) Release() {
	i.release <- struct{}{}
}

// Execs returns the code passed to each Exec call.
func (i *Interpreter) Execs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.execs...)
}

// InitialLengths returns the length of each Exec's stdout when the call began.
func (i *Interpreter) InitialLengths() []int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]int(nil), i.initialLen...)
}

func (i *Interpreter) StartCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.startCalls
}

func (i *Interpreter) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
