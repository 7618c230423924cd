package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/pyrunner/hostfunc"
)

// Protocol markers written by the prelude to stderr.
// Host call format: \x00PYRUN:{json}\x00
const (
	protocolPrefix = "\x00PYRUN:"
	protocolSuffix = "\x00"

	readySignal = "\x00PYRUN_READY\x00"
	doneSignal  = "\x00PYRUN_DONE\x00"
	errorPrefix = "\x00PYRUN_ERROR:"
)

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type execCommand struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

type messageType int

const (
	messageNone messageType = iota
	messageCall
	messageReady
	messageDone
	messageError
)

var messagePrefixes = []struct {
	prefix string
	typ    messageType
}{
	{protocolPrefix, messageCall},
	{readySignal, messageReady},
	{doneSignal, messageDone},
	{errorPrefix, messageError},
}

// findNextMessage returns the index and type of the earliest protocol
// message in content, or -1 and messageNone.
func findNextMessage(content string) (int, messageType) {
	idx, typ := -1, messageNone
	for _, m := range messagePrefixes {
		if i := strings.Index(content, m.prefix); i != -1 && (idx == -1 || i < idx) {
			idx, typ = i, m.typ
		}
	}
	return idx, typ
}

// extractMessage returns the payload of the message starting at idx with
// the given prefix and the content following it. ok is false while the
// message is incomplete, in which case remaining is content[idx:].
func extractMessage(content string, idx int, prefix string) (payload, remaining string, ok bool) {
	body := content[idx+len(prefix):]
	end := strings.Index(body, protocolSuffix)
	if end == -1 {
		return "", content[idx:], false
	}
	return body[:end], body[end+len(protocolSuffix):], true
}

// sessionProtocol is the interpreter's stderr. Protocol messages drive host
// calls and execution signals; everything else passes through to out.
type sessionProtocol struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter io.Writer
	out         io.Writer

	buf bytes.Buffer

	readyCh chan struct{}
	doneCh  chan error
	ready   bool

	mu      sync.Mutex
	writeMu sync.Mutex
}

func newSessionProtocol(ctx context.Context, registry *hostfunc.Registry, stdinWriter io.Writer, out io.Writer) *sessionProtocol {
	return &sessionProtocol{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
		out:         out,
		readyCh:     make(chan struct{}),
		doneCh:      make(chan error, 1),
	}
}

func (p *sessionProtocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		content := p.buf.String()
		idx, typ := findNextMessage(content)
		if typ == messageNone {
			// Hold back a possible partial marker at the tail.
			keep := partialMarker(content)
			p.passthrough(content[:len(content)-keep])
			p.buf.Reset()
			p.buf.WriteString(content[len(content)-keep:])
			return len(data), nil
		}

		p.passthrough(content[:idx])

		payload, remaining, ok := p.extract(content, idx, typ)
		p.buf.Reset()
		p.buf.WriteString(remaining)
		if !ok {
			return len(data), nil
		}
		p.handle(typ, payload)
	}
}

func (p *sessionProtocol) extract(content string, idx int, typ messageType) (string, string, bool) {
	switch typ {
	case messageReady:
		return "", content[idx+len(readySignal):], true
	case messageDone:
		return "", content[idx+len(doneSignal):], true
	case messageError:
		return extractMessage(content, idx, errorPrefix)
	default:
		return extractMessage(content, idx, protocolPrefix)
	}
}

func (p *sessionProtocol) handle(typ messageType, payload string) {
	switch typ {
	case messageReady:
		if !p.ready {
			p.ready = true
			close(p.readyCh)
		}
	case messageDone:
		p.signalDone(nil)
	case messageError:
		p.signalDone(&ExecError{Message: payload})
	case messageCall:
		var req callRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			go p.respond(callResponse{Error: "invalid call format"})
			return
		}
		// Respond from a goroutine so Write never blocks on the stdin pipe.
		go p.respond(p.executeCall(req))
	}
}

func (p *sessionProtocol) signalDone(err error) {
	select {
	case p.doneCh <- err:
	default:
	}
}

func (p *sessionProtocol) passthrough(s string) {
	if s != "" && p.out != nil {
		io.WriteString(p.out, s)
	}
}

func (p *sessionProtocol) executeCall(req callRequest) callResponse {
	result, err := p.registry.Call(p.ctx, req.Fn, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *sessionProtocol) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.stdinWriter.Write(append(data, '\n'))
}

// sendExec writes an exec command to the interpreter's stdin.
func (p *sessionProtocol) sendExec(code string) error {
	data, err := json.Marshal(execCommand{Type: "exec", Code: code})
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err = p.stdinWriter.Write(append(data, '\n'))
	return err
}

func (p *sessionProtocol) Ready() <-chan struct{} {
	return p.readyCh
}

func (p *sessionProtocol) Done() <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

// ResetExec drops any stale completion signal before a new execution.
func (p *sessionProtocol) ResetExec() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.doneCh:
	default:
	}
}

// partialMarker returns how many trailing bytes of content could be the
// start of a protocol marker split across writes.
func partialMarker(content string) int {
	i := strings.LastIndexByte(content, 0)
	if i == -1 {
		return 0
	}
	tail := content[i:]
	for _, m := range messagePrefixes {
		if strings.HasPrefix(m.prefix, tail) {
			return len(tail)
		}
	}
	return 0
}
