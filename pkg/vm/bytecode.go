package vm

import "github.com/agenthands/ntalk/pkg/core/value"

// FunctionInfo records where one handler's code starts and how it is
// invoked.
type FunctionInfo struct {
	Entry     int
	IsCommand bool
	NumLocals int
}

// Bytecode is the compiled output of one compilation unit.
type Bytecode struct {
	Instructions []uint32
	Constants    []value.Value
	Functions    map[string]FunctionInfo
}
