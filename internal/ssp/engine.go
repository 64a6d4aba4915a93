package ssp

import (
	"fmt"
	"sync"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// Handle identifies one processor owned by an engine. Handles are
// opaque to the core; the core never constructs processors for a host
// directly, it only attaches to handles the host supplies.
type Handle uint64

// Engine is the adapter boundary to the host runtime that owns the
// field producers.
type Engine interface {
	Create(role ir.Ternary, fieldLen int, capacity float64) (Handle, error)
	Destroy(h Handle) error

	// Step commits one step on the processor, recomputing its metrics.
	Step(h Handle) error

	// FieldRO returns a read-only snapshot of the field.
	FieldRO(h Handle) ([]float64, error)

	// SetOutputBuffer swaps in a host-writable backing buffer. Needed
	// for roles whose field the Mixer's collapse must write.
	SetOutputBuffer(h Handle, buf []float64) error

	// Attach returns the processor behind a handle for in-process use.
	Attach(h Handle) (*Processor, error)
}

// MemoryEngine is the in-process Engine. The mutex guards the handle
// table only; field exclusion between producer and Mixer remains the
// caller's contract.
type MemoryEngine struct {
	mu    sync.Mutex
	next  Handle
	procs map[Handle]*Processor
}

// NewMemoryEngine returns an empty in-process engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{procs: make(map[Handle]*Processor)}
}

func (e *MemoryEngine) Create(role ir.Ternary, fieldLen int, capacity float64) (Handle, error) {
	p, err := NewProcessor(role, fieldLen, capacity)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.procs[e.next] = p
	return e.next, nil
}

func (e *MemoryEngine) Destroy(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.procs[h]; !ok {
		return fmt.Errorf("ssp: unknown handle %d", h)
	}
	delete(e.procs, h)
	return nil
}

func (e *MemoryEngine) lookup(h Handle) (*Processor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.procs[h]
	if !ok {
		return nil, fmt.Errorf("ssp: unknown handle %d", h)
	}
	return p, nil
}

func (e *MemoryEngine) Step(h Handle) error {
	p, err := e.lookup(h)
	if err != nil {
		return err
	}
	p.CommitStep()
	return nil
}

func (e *MemoryEngine) FieldRO(h Handle) ([]float64, error) {
	p, err := e.lookup(h)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), p.Field()...), nil
}

func (e *MemoryEngine) SetOutputBuffer(h Handle, buf []float64) error {
	p, err := e.lookup(h)
	if err != nil {
		return err
	}
	return p.SetField(buf)
}

func (e *MemoryEngine) Attach(h Handle) (*Processor, error) {
	return e.lookup(h)
}
