// Package testmachine provides a deterministic Machine fake shared by the
// engine's tests.
package testmachine

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Machine is an in-memory Machine implementation. Its internal structures
// are a plain byte slice; pause/resume transitions and cache clears are
// counted so tests can assert on them.
type Machine struct {
	mu sync.Mutex

	valid     bool
	running   bool
	internals []byte

	Pauses      int
	Resumes     int
	CacheClears int

	// PauseErr, when set, is returned by Pause.
	PauseErr error

	// LoadInternalsErr, when set, is returned by LoadInternals.
	LoadInternalsErr error
}

// New returns a valid, running machine with the given internal structures.
func New(internals []byte) *Machine {
	return &Machine{
		valid:     true,
		running:   true,
		internals: append([]byte(nil), internals...),
	}
}

// Invalid returns a machine with no state to capture.
func Invalid() *Machine {
	return &Machine{}
}

// Pause implements machine.Machine.
func (m *Machine) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PauseErr != nil {
		return m.PauseErr
	}
	m.running = false
	m.Pauses++
	return nil
}

// Resume implements machine.Machine.
func (m *Machine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.Resumes++
}

// HasValidState implements machine.Machine.
func (m *Machine) HasValidState() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// ClearExecutionCaches implements machine.Machine.
func (m *Machine) ClearExecutionCaches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheClears++
}

// SaveInternals implements machine.Machine.
func (m *Machine) SaveInternals(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := w.Write(m.internals)
	return err
}

// LoadInternals implements machine.Machine.
func (m *Machine) LoadInternals(r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadInternalsErr != nil {
		return m.LoadInternalsErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading internals: %w", err)
	}
	m.internals = data
	m.valid = true
	return nil
}

// Running reports whether the machine is currently executing.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Internals returns a copy of the current internal structures.
func (m *Machine) Internals() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.internals...)
}

// SetInternals replaces the internal structures.
func (m *Machine) SetInternals(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.internals = append([]byte(nil), data...)
}

// Notifier records messages for assertions.
type Notifier struct {
	mu       sync.Mutex
	Messages []string
}

// Notify implements machine.Notifier.
func (n *Notifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, msg)
}

// Last returns the most recent message, or "".
func (n *Notifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Messages) == 0 {
		return ""
	}
	return n.Messages[len(n.Messages)-1]
}
