package ast

// CodeBlock is the contract between the parse tree and the bytecode
// backend. Value nodes push their arguments left to right and then emit
// the opcode named by their symbol; block nodes drive the jump
// primitives. The emitter package provides the concrete implementation.
type CodeBlock interface {
	// StartFunction opens the code block for one handler.
	StartFunction(name string, isCommand bool, line int)
	// DeclareLocal reserves a slot for a local variable and emits its
	// initialization: the variable's display name when initWithName is
	// set, the empty string otherwise.
	DeclareLocal(name, realName string, initWithName bool)
	// EndFunction closes the current handler's code block.
	EndFunction() error

	PushInt(v int64)
	PushFloat(v float64)
	PushBool(v bool)
	PushString(s string)
	// PushVariable pushes the value of the named local or global.
	PushVariable(name string)
	// PopIntoVariable pops the stack top into the named variable.
	PopIntoVariable(name string)
	// GetParam pushes the caller-supplied parameter at index.
	GetParam(index int64)

	// Operator emits the instruction for the given intrinsic or handler
	// symbol after paramCount arguments have been pushed.
	Operator(symbol string, paramCount int) error

	// Offset is the index the next instruction will be emitted at.
	Offset() int
	// EmitJump emits an unconditional forward jump and returns its
	// index for later patching.
	EmitJump() int
	// EmitJumpIfFalse pops the condition and emits a forward jump taken
	// when it is false, returning its index for later patching.
	EmitJumpIfFalse() int
	// EmitJumpTo emits an unconditional jump to a known target.
	EmitJumpTo(target int)
	// PatchJump resolves a forward jump to the current offset.
	PatchJump(index int)

	// EnterLoop and LeaveLoop bracket a loop body so that ExitRepeat
	// and NextRepeat instructions can resolve their targets.
	EnterLoop(continueTarget int)
	LeaveLoop()
}
