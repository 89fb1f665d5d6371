// Package state defines the component model for machine checkpointing.
//
// A Component is one named, independently serializable piece of machine
// state. Components come in two shapes: memory components, whose state is a
// contiguous region owned by the emulated machine, and device components,
// whose state is produced and consumed by an external subsystem through the
// Size/Save/Load freeze protocol.
package state

import (
	"fmt"
	"io"

	"github.com/marmos91/savepoint/internal/logger"
)

// Action selects the operation requested from a device freeze handler.
type Action int

const (
	// ActionSize asks the subsystem to report its serialized byte size.
	ActionSize Action = iota

	// ActionSave asks the subsystem to serialize into FreezeData.Data.
	ActionSave

	// ActionLoad asks the subsystem to deserialize from FreezeData.Data.
	ActionLoad
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionSize:
		return "size"
	case ActionSave:
		return "save"
	case ActionLoad:
		return "load"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

// FreezeData carries the buffer exchanged with a device freeze handler.
// For ActionSize the handler fills Size and ignores Data. For ActionSave
// the handler writes exactly Size bytes into Data. For ActionLoad the
// handler reads its state back out of Data.
type FreezeData struct {
	Size int
	Data []byte
}

// DeviceFunc is the freeze protocol implemented by external subsystems.
// A nil error means success; any error aborts the surrounding stage.
// A handler may pause and resume an execution unit it privately owns (for
// example a render thread); callers must tolerate that.
type DeviceFunc func(action Action, f *FreezeData) error

// Component is one named participant in checkpointing.
//
// Size and the underlying data location are resolved at call time, never
// cached: machine memory is dynamically allocated and may not exist, or may
// move, between calls.
type Component interface {
	// Filename is the canonical archive entry name for this component,
	// stable across format versions.
	Filename() string

	// Required reports whether a restored archive must contain this
	// component. Optional components absent from an archive are treated as
	// "no data", not as an error.
	Required() bool

	// Size returns the exact byte size the component would serialize to
	// right now. A size of zero means the component currently has no state
	// and contributes no archive entry.
	Size() (int, error)

	// Save serializes the component's current state to w. The written
	// bytes are a copy; no reference to live machine memory survives.
	Save(w io.Writer) error

	// Load deserializes the component from r, which holds size bytes.
	// A size smaller than the component expects is tolerated: the
	// available bytes are applied and a warning is logged.
	Load(r io.Reader, size int64) error
}

// MemoryComponent checkpoints a raw memory region owned by the machine.
// The region is resolved through a closure on every call because the
// backing allocation can move or not exist yet.
type MemoryComponent struct {
	name     string
	required bool
	resolve  func() []byte
}

// NewMemoryComponent builds a memory component. resolve must return the
// live region, or nil when the machine has not allocated it.
func NewMemoryComponent(name string, required bool, resolve func() []byte) *MemoryComponent {
	return &MemoryComponent{name: name, required: required, resolve: resolve}
}

// Filename returns the canonical archive entry name.
func (c *MemoryComponent) Filename() string { return c.name }

// Required reports whether the component is mandatory on restore.
func (c *MemoryComponent) Required() bool { return c.required }

// Size returns the current size of the backing region.
func (c *MemoryComponent) Size() (int, error) {
	return len(c.resolve()), nil
}

// Save copies the backing region to w.
func (c *MemoryComponent) Save(w io.Writer) error {
	region := c.resolve()
	if len(region) == 0 {
		return nil
	}
	if _, err := w.Write(region); err != nil {
		return fmt.Errorf("saving %s: %w", c.name, err)
	}
	return nil
}

// Load copies up to size bytes from r into the backing region. An entry
// shorter than the region loads only the available bytes; the remainder of
// the region is left untouched.
func (c *MemoryComponent) Load(r io.Reader, size int64) error {
	region := c.resolve()
	expected := int64(len(region))

	if size < expected {
		logger.Warn("Component entry is incomplete, loading available bytes only",
			"component", c.name, "expected", expected, "available", size)
		expected = size
	}

	if expected == 0 {
		return nil
	}

	if _, err := io.ReadFull(r, region[:expected]); err != nil {
		return fmt.Errorf("loading %s: %w", c.name, err)
	}
	return nil
}

// DeviceComponent checkpoints an external subsystem through its freeze
// handler. The subsystem alone understands its own encoding.
type DeviceComponent struct {
	name     string
	required bool
	freeze   DeviceFunc
}

// NewDeviceComponent builds a device component around a freeze handler.
func NewDeviceComponent(name string, required bool, freeze DeviceFunc) *DeviceComponent {
	return &DeviceComponent{name: name, required: required, freeze: freeze}
}

// Filename returns the canonical archive entry name.
func (c *DeviceComponent) Filename() string { return c.name }

// Required reports whether the component is mandatory on restore.
func (c *DeviceComponent) Required() bool { return c.required }

// Size queries the subsystem for its current serialized size.
func (c *DeviceComponent) Size() (int, error) {
	f := FreezeData{}
	if err := c.freeze(ActionSize, &f); err != nil {
		return 0, fmt.Errorf("component %s failed to report size: %w", c.name, err)
	}
	return f.Size, nil
}

// Save asks the subsystem to serialize itself and copies the result to w.
func (c *DeviceComponent) Save(w io.Writer) error {
	size, err := c.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	f := FreezeData{Size: size, Data: make([]byte, size)}
	if err := c.freeze(ActionSave, &f); err != nil {
		return fmt.Errorf("component %s failed to save: %w", c.name, err)
	}
	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("saving %s: %w", c.name, err)
	}
	return nil
}

// Load reads the entry bytes and hands them to the subsystem. An entry
// shorter than the subsystem expects is zero-padded to the expected size
// and loaded with a warning.
func (c *DeviceComponent) Load(r io.Reader, size int64) error {
	expected, err := c.Size()
	if err != nil {
		// The subsystem cannot even report a size; treat its expectation
		// as unknown and load exactly what the entry holds.
		expected = 0
	}

	if size == 0 {
		if expected != 0 {
			logger.Warn("No entry data found for component, state may be unpredictable",
				"component", c.name, "expected", expected)
		}
		return nil
	}

	if expected < int(size) {
		expected = int(size)
	}
	if int64(expected) > size {
		logger.Warn("Component entry is incomplete, remainder is zero-filled",
			"component", c.name, "expected", expected, "available", size)
	}

	f := FreezeData{Size: expected, Data: make([]byte, expected)}
	if _, err := io.ReadFull(r, f.Data[:size]); err != nil {
		return fmt.Errorf("loading %s: %w", c.name, err)
	}
	if err := c.freeze(ActionLoad, &f); err != nil {
		return fmt.Errorf("component %s failed to load: %w", c.name, err)
	}
	return nil
}
