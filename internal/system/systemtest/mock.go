// Package systemtest provides a recording system.Runner for tests.
package systemtest

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/shini4i/trusttunnel-gui/internal/system"
)

var _ system.Runner = (*Mock)(nil)

// Call records a single command invocation.
type Call struct {
	Name  string
	Args  []string
	Input string
}

// String returns the "name arg1 arg2" form used by Expect and AssertCalled.
func (c Call) String() string {
	return system.CommandLine(c.Name, c.Args)
}

// Mock is a recording system.Runner. Commands without a programmed
// response succeed with empty output unless SetDefault says otherwise.
// It is safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]system.Result
	fallback  system.Result
}

// NewMock creates a Mock whose unknown commands succeed.
func NewMock() *Mock {
	return &Mock{
		responses: make(map[string]system.Result),
		fallback:  system.Result{OK: true},
	}
}

// Expect programs the result for an exact "name arg1 arg2" command line.
func (m *Mock) Expect(command string, result system.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[command] = result
}

// SetDefault changes the result returned for commands without a programmed response.
func (m *Mock) SetDefault(result system.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = result
}

// Run implements system.Runner.
func (m *Mock) Run(_ context.Context, name string, args ...string) system.Result {
	return m.record(Call{Name: name, Args: args})
}

// RunInput implements system.Runner.
func (m *Mock) RunInput(_ context.Context, input, name string, args ...string) system.Result {
	return m.record(Call{Name: name, Args: args, Input: input})
}

func (m *Mock) record(c Call) system.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if r, ok := m.responses[c.String()]; ok {
		return r
	}
	return m.fallback
}

// Calls returns a copy of every recorded invocation in order.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Commands returns the recorded command lines in order.
func (m *Mock) Commands() []string {
	calls := m.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// CallCount returns how often the exact command line ran.
func (m *Mock) CallCount(command string) int {
	count := 0
	for _, c := range m.Commands() {
		if c == command {
			count++
		}
	}
	return count
}

// WasCalled reports whether the exact command line ran at least once.
func (m *Mock) WasCalled(command string) bool {
	return m.CallCount(command) > 0
}

// TestingT is the subset of testing.TB used by the assertions.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertCalled fails the test if the command line never ran.
func (m *Mock) AssertCalled(t TestingT, command string) {
	t.Helper()
	if m.WasCalled(command) {
		return
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "expected command %q to be called, but it was not.\ncalls made:\n", command)
	for _, c := range m.Commands() {
		buf.WriteString("  " + c + "\n")
	}
	t.Errorf("%s", buf.String())
}

// AssertNotCalled fails the test if the command line ran.
func (m *Mock) AssertNotCalled(t TestingT, command string) {
	t.Helper()
	if m.WasCalled(command) {
		t.Errorf("expected command %q NOT to be called, but it was", command)
	}
}
