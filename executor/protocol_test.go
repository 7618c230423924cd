package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/caffeineduck/pyrunner/hostfunc"
)

func TestFindNextMessage(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantIdx     int
		wantMsgType messageType
	}{
		{"no message", "hello world", -1, messageNone},
		{"call message", "prefix\x00PYRUN:{}\x00suffix", 6, messageCall},
		{"ready", "ab\x00PYRUN_READY\x00", 2, messageReady},
		{"done", "\x00PYRUN_DONE\x00", 0, messageDone},
		{"error", "x\x00PYRUN_ERROR:boom\x00", 1, messageError},
		{"call before done", "\x00PYRUN:{}\x00\x00PYRUN_DONE\x00", 0, messageCall},
		{"done before call", "\x00PYRUN_DONE\x00\x00PYRUN:{}\x00", 0, messageDone},
		{"empty content", "", -1, messageNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, msgType := findNextMessage(tt.content)
			if idx != tt.wantIdx {
				t.Errorf("idx = %d, want %d", idx, tt.wantIdx)
			}
			if msgType != tt.wantMsgType {
				t.Errorf("msgType = %d, want %d", msgType, tt.wantMsgType)
			}
		})
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		idx           int
		prefix        string
		wantPayload   string
		wantRemaining string
		wantOK        bool
	}{
		{
			name:          "valid call",
			content:       `prefix` + "\x00PYRUN:{\"fn\":\"test\"}\x00" + `suffix`,
			idx:           6,
			prefix:        protocolPrefix,
			wantPayload:   `{"fn":"test"}`,
			wantRemaining: "suffix",
			wantOK:        true,
		},
		{
			name:          "incomplete message",
			content:       "prefix\x00PYRUN:{partial",
			idx:           6,
			prefix:        protocolPrefix,
			wantPayload:   "",
			wantRemaining: "\x00PYRUN:{partial",
			wantOK:        false,
		},
		{
			name:          "error message",
			content:       "\x00PYRUN_ERROR:NameError: x\x00rest",
			idx:           0,
			prefix:        errorPrefix,
			wantPayload:   "NameError: x",
			wantRemaining: "rest",
			wantOK:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, remaining, ok := extractMessage(tt.content, tt.idx, tt.prefix)
			if payload != tt.wantPayload {
				t.Errorf("payload = %q, want %q", payload, tt.wantPayload)
			}
			if remaining != tt.wantRemaining {
				t.Errorf("remaining = %q, want %q", remaining, tt.wantRemaining)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestPartialMarker(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"plain", 0},
		{"text\x00", 1},
		{"text\x00PYR", 4},
		{"text\x00PYRUN_DO", 9},
		{"text\x00other", 0},
	}
	for _, tt := range tests {
		if got := partialMarker(tt.content); got != tt.want {
			t.Errorf("partialMarker(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

type protocolHarness struct {
	p     *sessionProtocol
	out   *Capture
	stdin *bufio.Reader
}

func newProtocolHarness(t *testing.T, registry *hostfunc.Registry) *protocolHarness {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() { r.Close() })
	out := NewCapture()
	return &protocolHarness{
		p:     newSessionProtocol(context.Background(), registry, w, out),
		out:   out,
		stdin: bufio.NewReader(r),
	}
}

func TestSessionProtocolPassthrough(t *testing.T) {
	h := newProtocolHarness(t, hostfunc.NewRegistry())

	h.p.Write([]byte("warning: x\n"))
	h.p.Write([]byte("more\x00PYRUN_RE"))
	h.p.Write([]byte("ADY\x00tail"))

	if got := h.out.String(); got != "warning: x\nmoretail" {
		t.Errorf("passthrough = %q", got)
	}

	select {
	case <-h.p.Ready():
	default:
		t.Fatal("ready signal split across writes was not seen")
	}
}

func TestSessionProtocolDoneAndError(t *testing.T) {
	h := newProtocolHarness(t, hostfunc.NewRegistry())

	h.p.Write([]byte(doneSignal))
	if err := <-h.p.Done(); err != nil {
		t.Fatalf("done err = %v", err)
	}

	h.p.Write([]byte(errorPrefix + "ZeroDivisionError: division by zero\x00"))
	err := <-h.p.Done()
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecError", err)
	}
	if execErr.Message != "ZeroDivisionError: division by zero" {
		t.Errorf("message = %q", execErr.Message)
	}
	if !errors.Is(err, ErrExecution) {
		t.Error("ExecError should match ErrExecution")
	}
}

func TestSessionProtocolResetExec(t *testing.T) {
	h := newProtocolHarness(t, hostfunc.NewRegistry())

	h.p.Write([]byte(doneSignal))
	h.p.ResetExec()

	select {
	case <-h.p.Done():
		t.Fatal("stale done signal survived reset")
	default:
	}
}

func TestSessionProtocolCall(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args["v"], nil
	})

	tests := []struct {
		name      string
		payload   string
		wantData  any
		wantError string
	}{
		{"registered", `{"fn":"echo","args":{"v":"hi"}}`, "hi", ""},
		{"unknown", `{"fn":"nope","args":{}}`, nil, "unknown function: nope"},
		{"malformed", `{bad`, nil, "invalid call format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newProtocolHarness(t, registry)
			h.p.Write([]byte(protocolPrefix + tt.payload + protocolSuffix))

			line := readLine(t, h.stdin)
			var resp callResponse
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				t.Fatalf("response %q: %v", line, err)
			}
			if resp.Data != tt.wantData {
				t.Errorf("data = %v, want %v", resp.Data, tt.wantData)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestSendExec(t *testing.T) {
	h := newProtocolHarness(t, hostfunc.NewRegistry())

	go h.p.sendExec("print('a')\nprint('b')")

	var cmd execCommand
	if err := json.Unmarshal([]byte(readLine(t, h.stdin)), &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Type != "exec" || cmd.Code != "print('a')\nprint('b')" {
		t.Errorf("command = %+v", cmd)
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	ch := make(chan string, 1)
	go func() {
		line, _ := r.ReadString('\n')
		ch <- line
	}()
	select {
	case line := <-ch:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stdin write")
		return ""
	}
}
