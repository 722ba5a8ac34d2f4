package emitter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/emitter"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
	"github.com/agenthands/ntalk/pkg/compiler/parser"
	"github.com/agenthands/ntalk/pkg/core/value"
	"github.com/agenthands/ntalk/pkg/vm"
)

func compile(t *testing.T, src string) *vm.Bytecode {
	t.Helper()
	toks, err := lexer.NewScanner([]byte(src)).ScanAll()
	require.NoError(t, err)
	tree := ast.NewTree(nil)
	require.NoError(t, parser.New().Parse("test.talk", toks, tree))
	bc, err := emitter.Emit(tree)
	require.NoError(t, err)
	return bc
}

func opsOf(bc *vm.Bytecode) []vm.InstructionID {
	ops := make([]vm.InstructionID, len(bc.Instructions))
	for i, ins := range bc.Instructions {
		ops[i] = vm.Op(ins)
	}
	return ops
}

func TestEmitSimpleHandler(t *testing.T) {
	bc := compile(t, "on greet who\nput \"hi \" & who into it\nend greet\n")

	info, ok := bc.Functions["greet"]
	require.True(t, ok)
	require.True(t, info.IsCommand)
	require.Equal(t, 0, info.Entry)
	// theResult, paramList, var_who, var_it
	require.Equal(t, 4, info.NumLocals)

	ops := opsOf(bc)
	// Every handler ends with a fallback empty return.
	require.Equal(t, vm.OpReturn, ops[len(ops)-1])
	require.Equal(t, vm.OpPushConst, ops[len(ops)-2])

	require.Contains(t, ops, vm.OpGetParam)
	require.Contains(t, ops, vm.OpCat)
	require.Contains(t, ops, vm.OpPut)
}

func TestEmitConstantsArePooled(t *testing.T) {
	bc := compile(t, "on t\nput \"x\" into a\nput \"x\" into b\nend t\n")

	seen := 0
	for _, c := range bc.Constants {
		if c.Equal(value.NewString("x")) {
			seen++
		}
	}
	require.Equal(t, 1, seen)
}

func TestEmitLoopJumpsResolve(t *testing.T) {
	bc := compile(t, "on t\nrepeat 2 times\nexit repeat\nend repeat\nend t\n")

	ops := opsOf(bc)
	require.Contains(t, ops, vm.OpJumpIfFalse)
	require.Contains(t, ops, vm.OpJump)

	// All jump targets land inside the instruction stream.
	for _, ins := range bc.Instructions {
		op := vm.Op(ins)
		if op == vm.OpJump || op == vm.OpJumpIfFalse {
			target := vm.Operand(ins)
			require.LessOrEqual(t, int(target), len(bc.Instructions))
		}
	}
}

func TestEmitUserHandlerCall(t *testing.T) {
	bc := compile(t, "on t\nfoo 1\nend t\n")

	ops := opsOf(bc)
	require.Contains(t, ops, vm.OpCallHandler)

	// The handler's name travels through the constant pool.
	found := false
	for _, c := range bc.Constants {
		if c.Equal(value.NewString("foo")) {
			found = true
		}
	}
	require.True(t, found)
}

func TestEmitParameterOrderForPut(t *testing.T) {
	bc := compile(t, "on t\nset itemDelimiter to \",\"\nend t\n")

	// The value is pushed before the destination, then Put runs; the
	// same order a plain "put ... into ..." emits.
	ops := opsOf(bc)
	putAt := -1
	for i, op := range ops {
		if op == vm.OpPut {
			putAt = i
		}
	}
	require.Greater(t, putAt, 1)
	require.Equal(t, vm.OpPushLocal, ops[putAt-1])
	require.Equal(t, vm.OpPushConst, ops[putAt-2])
}

func TestEmitMultipleHandlers(t *testing.T) {
	bc := compile(t, "on first\nend first\nfunction second\nend second\n")

	require.Len(t, bc.Functions, 2)
	require.True(t, bc.Functions["first"].IsCommand)
	require.False(t, bc.Functions["second"].IsCommand)
	require.Greater(t, bc.Functions["second"].Entry, bc.Functions["first"].Entry)
}
