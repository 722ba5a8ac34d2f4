// Package emitter lowers a parse tree into vm.Bytecode. It implements
// the ast.CodeBlock contract: values are pushed left to right, opcodes
// follow their arguments, and block nodes drive the jump primitives.
package emitter

import (
	"fmt"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/core/value"
	"github.com/agenthands/ntalk/pkg/vm"
)

// Emit generates bytecode for the whole parse tree.
func Emit(tree *ast.Tree) (*vm.Bytecode, error) {
	cb := NewCodeBlock()
	if err := tree.GenerateCode(cb); err != nil {
		return nil, err
	}
	return cb.Bytecode(), nil
}

type loopFrame struct {
	start  int
	breaks []int
}

type functionFrame struct {
	name      string
	isCommand bool
	entry     int
	locals    map[string]int
	loops     []*loopFrame
}

// CodeBlock accumulates instructions and constants for one compilation
// unit.
type CodeBlock struct {
	instructions []uint32
	constants    []value.Value
	functions    map[string]vm.FunctionInfo
	fn           *functionFrame
	err          error
}

// NewCodeBlock creates an empty code block.
func NewCodeBlock() *CodeBlock {
	return &CodeBlock{
		functions: make(map[string]vm.FunctionInfo),
	}
}

// Bytecode returns the finished program.
func (c *CodeBlock) Bytecode() *vm.Bytecode {
	return &vm.Bytecode{
		Instructions: c.instructions,
		Constants:    c.constants,
		Functions:    c.functions,
	}
}

// Err returns the first deferred emission error, if any.
func (c *CodeBlock) Err() error { return c.err }

func (c *CodeBlock) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *CodeBlock) emit(op vm.InstructionID, operand uint32) {
	c.instructions = append(c.instructions, vm.Pack(op, operand))
}

func (c *CodeBlock) addConstant(v value.Value) uint32 {
	for i, existing := range c.constants {
		if existing.Equal(v) {
			return uint32(i)
		}
	}
	c.constants = append(c.constants, v)
	return uint32(len(c.constants) - 1)
}

func (c *CodeBlock) localSlot(name string) uint32 {
	if c.fn == nil {
		c.setErr(fmt.Errorf("emitter: variable %q referenced outside a handler", name))
		return 0
	}
	slot, ok := c.fn.locals[name]
	if !ok {
		slot = len(c.fn.locals)
		c.fn.locals[name] = slot
	}
	return uint32(slot)
}

// StartFunction opens the code block for one handler.
func (c *CodeBlock) StartFunction(name string, isCommand bool, line int) {
	if c.fn != nil {
		c.setErr(fmt.Errorf("emitter: handler %q opened inside %q", name, c.fn.name))
		return
	}
	c.fn = &functionFrame{
		name:      name,
		isCommand: isCommand,
		entry:     len(c.instructions),
		locals:    make(map[string]int),
	}
}

// DeclareLocal reserves the variable's slot and emits its
// initialization.
func (c *CodeBlock) DeclareLocal(name, realName string, initWithName bool) {
	slot := c.localSlot(name)
	initial := ""
	if initWithName {
		initial = realName
	}
	c.emit(vm.OpPushConst, c.addConstant(value.NewString(initial)))
	c.emit(vm.OpPopLocal, slot)
}

// EndFunction closes the handler: a fallback empty return, then the
// function table entry.
func (c *CodeBlock) EndFunction() error {
	if c.fn == nil {
		return fmt.Errorf("emitter: EndFunction without StartFunction")
	}
	if len(c.fn.loops) != 0 {
		return fmt.Errorf("emitter: handler %q closed inside a loop", c.fn.name)
	}
	c.emit(vm.OpPushConst, c.addConstant(value.NewString("")))
	c.emit(vm.OpReturn, 0)

	c.functions[c.fn.name] = vm.FunctionInfo{
		Entry:     c.fn.entry,
		IsCommand: c.fn.isCommand,
		NumLocals: len(c.fn.locals),
	}
	c.fn = nil
	return c.err
}

func (c *CodeBlock) PushInt(v int64) {
	c.emit(vm.OpPushConst, c.addConstant(value.NewInt(v)))
}

func (c *CodeBlock) PushFloat(v float64) {
	c.emit(vm.OpPushConst, c.addConstant(value.NewFloat(v)))
}

func (c *CodeBlock) PushBool(v bool) {
	c.emit(vm.OpPushConst, c.addConstant(value.NewBool(v)))
}

func (c *CodeBlock) PushString(s string) {
	c.emit(vm.OpPushConst, c.addConstant(value.NewString(s)))
}

func (c *CodeBlock) PushVariable(name string) {
	c.emit(vm.OpPushLocal, c.localSlot(name))
}

func (c *CodeBlock) PopIntoVariable(name string) {
	c.emit(vm.OpPopLocal, c.localSlot(name))
}

func (c *CodeBlock) GetParam(index int64) {
	c.emit(vm.OpGetParam, uint32(index))
}

// Operator emits the instruction for an intrinsic symbol, or a handler
// call when the symbol is not an intrinsic. ExitRepeat and NextRepeat
// resolve against the innermost loop.
func (c *CodeBlock) Operator(symbol string, paramCount int) error {
	switch symbol {
	case "ExitRepeat":
		frame := c.currentLoop()
		if frame == nil {
			return fmt.Errorf("emitter: \"exit repeat\" outside a loop")
		}
		frame.breaks = append(frame.breaks, c.EmitJump())
		return nil
	case "NextRepeat":
		frame := c.currentLoop()
		if frame == nil {
			return fmt.Errorf("emitter: \"next repeat\" outside a loop")
		}
		c.EmitJumpTo(frame.start)
		return nil
	}

	if id, ok := vm.ByName(symbol); ok {
		c.emit(id, uint32(paramCount))
		return nil
	}

	// User handler: name on the stack, then the call.
	c.PushString(symbol)
	c.emit(vm.OpCallHandler, uint32(paramCount))
	return nil
}

// Offset is the index the next instruction lands at.
func (c *CodeBlock) Offset() int { return len(c.instructions) }

// EmitJump emits a forward jump to be patched later.
func (c *CodeBlock) EmitJump() int {
	c.emit(vm.OpJump, 0)
	return len(c.instructions) - 1
}

// EmitJumpIfFalse pops the condition and emits a forward jump taken
// when it is false.
func (c *CodeBlock) EmitJumpIfFalse() int {
	c.emit(vm.OpJumpIfFalse, 0)
	return len(c.instructions) - 1
}

// EmitJumpTo emits an unconditional jump to a known target.
func (c *CodeBlock) EmitJumpTo(target int) {
	c.emit(vm.OpJump, uint32(target))
}

// PatchJump resolves a forward jump to the current offset.
func (c *CodeBlock) PatchJump(index int) {
	if index < 0 || index >= len(c.instructions) {
		c.setErr(fmt.Errorf("emitter: jump patch index %d out of range", index))
		return
	}
	op := vm.Op(c.instructions[index])
	c.instructions[index] = vm.Pack(op, uint32(len(c.instructions)))
}

func (c *CodeBlock) currentLoop() *loopFrame {
	if c.fn == nil || len(c.fn.loops) == 0 {
		return nil
	}
	return c.fn.loops[len(c.fn.loops)-1]
}

// EnterLoop opens a loop frame for ExitRepeat/NextRepeat resolution.
func (c *CodeBlock) EnterLoop(continueTarget int) {
	if c.fn == nil {
		c.setErr(fmt.Errorf("emitter: loop outside a handler"))
		return
	}
	c.fn.loops = append(c.fn.loops, &loopFrame{start: continueTarget})
}

// LeaveLoop closes the innermost loop frame, resolving its break jumps
// to the current offset.
func (c *CodeBlock) LeaveLoop() {
	frame := c.currentLoop()
	if frame == nil {
		c.setErr(fmt.Errorf("emitter: LeaveLoop without EnterLoop"))
		return
	}
	for _, idx := range frame.breaks {
		c.PatchJump(idx)
	}
	c.fn.loops = c.fn.loops[:len(c.fn.loops)-1]
}
