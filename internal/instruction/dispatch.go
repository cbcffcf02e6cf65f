// Package instruction is the vault's wire surface: a one-byte opcode
// followed by a little-endian payload. Dispatcher decodes an instruction
// and routes it to the processor.
package instruction

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/atmx/vault-engine/internal/metrics"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/processor"
)

// Decode parses an encoded instruction. Unknown opcodes, short payloads
// and trailing bytes fail with ErrInvalidInstruction.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, model.Fail(model.ErrInvalidInstruction, "empty instruction")
	}
	inst := newInstruction(Opcode(data[0]))
	if inst == nil {
		return nil, model.Fail(model.ErrInvalidInstruction, "unknown opcode %d", data[0])
	}
	c := &codec{buf: data[1:], reading: true}
	inst.fields(c)
	if c.err != nil {
		return nil, c.err
	}
	if c.off != len(c.buf) {
		return nil, model.Fail(model.ErrInvalidInstruction, "%d trailing bytes after %s", len(c.buf)-c.off, inst.Opcode())
	}
	return inst, nil
}

// Encode serializes inst with its opcode.
func Encode(inst Instruction) []byte {
	c := &codec{buf: []byte{byte(inst.Opcode())}}
	inst.fields(c)
	return c.buf
}

// Parse builds an instruction from its snake_case name and a JSON
// payload. An empty payload is allowed for operations without one.
func Parse(name string, payload json.RawMessage) (Instruction, error) {
	op, ok := OpcodeByName(name)
	if !ok {
		return nil, model.Fail(model.ErrInvalidInstruction, "unknown operation %q", name)
	}
	inst := newInstruction(op)
	if len(bytes.TrimSpace(payload)) == 0 {
		return inst, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(inst); err != nil {
		return nil, model.Fail(model.ErrInvalidInstruction, "%s payload: %v", name, err)
	}
	return inst, nil
}

// Dispatcher routes instructions to a processor.
type Dispatcher struct {
	proc *processor.Processor
}

func NewDispatcher(p *processor.Processor) *Dispatcher {
	return &Dispatcher{proc: p}
}

// Dispatch decodes data and applies it.
func (d *Dispatcher) Dispatch(ctx context.Context, req processor.Request, data []byte) (*model.JournalEntry, error) {
	inst, err := Decode(data)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("decode", model.ErrInvalidInstruction.Name()).Inc()
		slog.Warn("instruction rejected", "bytes", len(data), "err", err)
		return nil, err
	}
	return d.Apply(ctx, req, inst)
}

// Apply runs an already decoded instruction.
func (d *Dispatcher) Apply(ctx context.Context, req processor.Request, inst Instruction) (*model.JournalEntry, error) {
	return inst.apply(ctx, d.proc, req)
}
