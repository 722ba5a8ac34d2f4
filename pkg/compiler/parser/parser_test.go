package parser_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
	"github.com/agenthands/ntalk/pkg/compiler/parser"
)

type countingDelegate struct {
	count int
}

func (d *countingDelegate) NodeAdded(tree *ast.Tree, node ast.Node, count int) {
	d.count = count
}

func parseScript(t *testing.T, src string) (*ast.Tree, *parser.Parser) {
	t.Helper()
	toks, err := lexer.NewScanner([]byte(src)).ScanAll()
	require.NoError(t, err)
	tree := ast.NewTree(nil)
	p := parser.New()
	require.NoError(t, p.Parse("test.talk", toks, tree))
	return tree, p
}

func parseError(t *testing.T, src string) error {
	t.Helper()
	toks, err := lexer.NewScanner([]byte(src)).ScanAll()
	require.NoError(t, err)
	tree := ast.NewTree(nil)
	err = parser.New().Parse("test.talk", toks, tree)
	require.Error(t, err)
	return err
}

func debugString(tree *ast.Tree) string {
	var buf bytes.Buffer
	tree.DebugPrint(&buf)
	return buf.String()
}

func soleHandler(t *testing.T, tree *ast.Tree) *ast.FunctionDefinitionNode {
	t.Helper()
	require.Len(t, tree.Roots(), 1)
	fn, ok := tree.Roots()[0].(*ast.FunctionDefinitionNode)
	require.True(t, ok)
	return fn
}

func TestMessageHandlerWithConcat(t *testing.T) {
	tree, _ := parseScript(t, "on greet who\n  put \"hi \" & who into it\nend greet\n")
	fn := soleHandler(t, tree)

	require.Equal(t, "greet", fn.Name)
	require.True(t, fn.IsCommand)
	for _, local := range []string{"theResult", "var_who", "var_it"} {
		require.Contains(t, fn.Locals(), local)
	}
	require.True(t, fn.Locals()["var_who"].IsParameter)

	cmds := fn.Commands()
	require.Len(t, cmds, 2)

	bind, ok := cmds[0].(*ast.GetParamCommandNode)
	require.True(t, ok)
	dest := bind.Params()[0].(*ast.LocalVariableRefNode)
	require.Equal(t, "var_who", dest.Name)
	require.Equal(t, int64(0), bind.Params()[1].(*ast.IntValueNode).Value)

	put, ok := cmds[1].(*ast.CommandNode)
	require.True(t, ok)
	require.Equal(t, "Put", put.Symbol)

	cat := put.Params()[0].(*ast.FunctionCallNode)
	require.Equal(t, "vcy_cat", cat.Name)
	require.Equal(t, "hi ", cat.Params()[0].(*ast.StringValueNode).Value)
	require.Equal(t, "var_who", cat.Params()[1].(*ast.LocalVariableRefNode).Name)

	require.Equal(t, "var_it", put.Params()[1].(*ast.LocalVariableRefNode).Name)
}

func TestFunctionWithTwoParams(t *testing.T) {
	tree, p := parseScript(t, "function area w,h\n  return w * h\nend area\n")
	fn := soleHandler(t, tree)

	require.Equal(t, "area", fn.Name)
	require.False(t, fn.IsCommand)

	name, isFunction := p.FirstHandler()
	require.Equal(t, "area", name)
	require.True(t, isFunction)

	cmds := fn.Commands()
	require.Len(t, cmds, 3)
	for i, want := range []string{"var_w", "var_h"} {
		bind := cmds[i].(*ast.GetParamCommandNode)
		require.Equal(t, want, bind.Params()[0].(*ast.LocalVariableRefNode).Name)
		require.Equal(t, int64(i), bind.Params()[1].(*ast.IntValueNode).Value)
	}

	ret := cmds[2].(*ast.CommandNode)
	require.Equal(t, "return", ret.Symbol)
	mul := ret.Params()[0].(*ast.FunctionCallNode)
	require.Equal(t, "vcy_mul", mul.Name)
	require.Equal(t, "var_w", mul.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, "var_h", mul.Params()[1].(*ast.LocalVariableRefNode).Name)
}

func TestRepeatWithCounter(t *testing.T) {
	tree, _ := parseScript(t, "on t\nrepeat with i from 1 to 3\n  add i to total\nend repeat\nend t\n")
	fn := soleHandler(t, tree)

	cmds := fn.Commands()
	require.Len(t, cmds, 2)

	seed := cmds[0].(*ast.AssignCommandNode)
	require.Equal(t, "temp0", seed.Params()[0].(*ast.LocalVariableRefNode).Name)
	toInt := seed.Params()[1].(*ast.FunctionCallNode)
	require.Equal(t, "GetAsInt", toInt.Name)
	require.Equal(t, int64(1), toInt.Params()[0].(*ast.IntValueNode).Value)

	loop := cmds[1].(*ast.WhileLoopNode)
	cond := loop.Condition().(*ast.FunctionCallNode)
	require.Equal(t, "<=", cond.Name)
	require.Equal(t, "temp0", cond.Params()[0].(*ast.LocalVariableRefNode).Name)
	endInt := cond.Params()[1].(*ast.FunctionCallNode)
	require.Equal(t, "GetAsInt", endInt.Name)
	require.Equal(t, int64(3), endInt.Params()[0].(*ast.IntValueNode).Value)

	body := loop.Commands()
	refresh := body[0].(*ast.AssignCommandNode)
	require.Equal(t, "var_i", refresh.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, "temp0", refresh.Params()[1].(*ast.LocalVariableRefNode).Name)

	step := body[len(body)-1].(*ast.CommandNode)
	require.Equal(t, "+=", step.Symbol)
	require.Equal(t, "temp0", step.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, int64(1), step.Params()[1].(*ast.IntValueNode).Value)
}

func TestRepeatWithDownTo(t *testing.T) {
	tree, _ := parseScript(t, "on t\nrepeat with i from 10 down to 1\nend repeat\nend t\n")
	fn := soleHandler(t, tree)

	loop := fn.Commands()[1].(*ast.WhileLoopNode)
	require.Equal(t, ">=", loop.Condition().(*ast.FunctionCallNode).Name)
	step := loop.Commands()[len(loop.Commands())-1].(*ast.CommandNode)
	require.Equal(t, "-=", step.Symbol)
}

func TestInlineIfElse(t *testing.T) {
	tree, _ := parseScript(t, "on t x\nif x > 0 then put \"p\" else put \"n\"\nend t\n")
	fn := soleHandler(t, tree)

	ifNode := fn.Commands()[1].(*ast.IfNode)
	cond := ifNode.Condition().(*ast.FunctionCallNode)
	require.Equal(t, "vcy_cmp_gt", cond.Name)
	require.Equal(t, "var_x", cond.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, int64(0), cond.Params()[1].(*ast.IntValueNode).Value)

	require.Len(t, ifNode.Commands(), 1)
	thenPrint := ifNode.Commands()[0].(*ast.PrintCommandNode)
	require.Equal(t, "p", thenPrint.Params()[0].(*ast.StringValueNode).Value)

	require.NotNil(t, ifNode.ElseBlock())
	elsePrint := ifNode.ElseBlock().Commands()[0].(*ast.PrintCommandNode)
	require.Equal(t, "n", elsePrint.Params()[0].(*ast.StringValueNode).Value)
}

func TestInlineIfDoesNotConsumeEndIf(t *testing.T) {
	// With both arms inline, a stray "end if" is left in the stream and
	// trips the handler's own end check.
	err := parseError(t, "on t x\nif x > 0 then put \"p\" else put \"n\"\nend if\nend t\n")
	require.Contains(t, err.Error(), "end t")
}

func TestMultiLineIf(t *testing.T) {
	tree, _ := parseScript(t, "on t x\nif x then\nput 1\nelse\nput 2\nend if\nend t\n")
	fn := soleHandler(t, tree)

	ifNode := fn.Commands()[1].(*ast.IfNode)
	require.Len(t, ifNode.Commands(), 1)
	require.NotNil(t, ifNode.ElseBlock())
	require.Len(t, ifNode.ElseBlock().Commands(), 1)
}

func TestInlineThenWithElseOnNextLine(t *testing.T) {
	tree, _ := parseScript(t, "on t x\nif x then put 1\nelse\nput 2\nend if\nend t\n")
	fn := soleHandler(t, tree)

	ifNode := fn.Commands()[1].(*ast.IfNode)
	require.NotNil(t, ifNode.ElseBlock())
}

func TestInlineThenWithoutElse(t *testing.T) {
	tree, _ := parseScript(t, "on t x\nif x then put 1\nput 2\nend t\n")
	fn := soleHandler(t, tree)

	require.Len(t, fn.Commands(), 3)
	_, ok := fn.Commands()[1].(*ast.IfNode)
	require.True(t, ok)
}

func TestChainedChunkExpression(t *testing.T) {
	tree, _ := parseScript(t, "on t\nput char 2 to 4 of word 1 of name into out\nend t\n")
	fn := soleHandler(t, tree)

	put := fn.Commands()[0].(*ast.CommandNode)
	require.Equal(t, "Put", put.Symbol)

	outer := put.Params()[0].(*ast.ChunkRefNode)
	require.Equal(t, ast.ChunkCharacter, outer.Kind)
	require.True(t, outer.Mutable)
	require.Equal(t, int64(2), outer.Start.(*ast.IntValueNode).Value)
	require.Equal(t, int64(4), outer.End.(*ast.IntValueNode).Value)

	inner := outer.Target.(*ast.ChunkRefNode)
	require.Equal(t, ast.ChunkWord, inner.Kind)
	require.False(t, inner.Mutable)
	require.Equal(t, int64(1), inner.Start.(*ast.IntValueNode).Value)
	// No range clause: the end offset aliases the start node.
	require.Same(t, inner.Start, inner.End)
	require.Equal(t, "var_name", inner.Target.(*ast.LocalVariableRefNode).Name)

	require.Equal(t, "var_out", put.Params()[1].(*ast.LocalVariableRefNode).Name)
}

func TestSetItemDelimiter(t *testing.T) {
	tree, _ := parseScript(t, "on t\nset itemDelimiter to \",\"\nend t\n")
	fn := soleHandler(t, tree)

	put := fn.Commands()[0].(*ast.CommandNode)
	require.Equal(t, "Put", put.Symbol)
	require.Equal(t, ",", put.Params()[0].(*ast.StringValueNode).Value)
	require.Equal(t, "gItemDel", put.Params()[1].(*ast.LocalVariableRefNode).Name)

	require.Contains(t, tree.Globals(), "gItemDel")
}

func TestGetDesugarsToPutIntoIt(t *testing.T) {
	left, _ := parseScript(t, "on t\nget 5\nend t\n")
	right, _ := parseScript(t, "on t\nput 5 into it\nend t\n")
	if diff := cmp.Diff(debugString(right), debugString(left)); diff != "" {
		t.Errorf("get / put into it mismatch (-put +get):\n%s", diff)
	}
}

func TestRepeatTimesDesugaringsMatch(t *testing.T) {
	left, _ := parseScript(t, "on t\nrepeat 3 times\nput 1\nend repeat\nend t\n")
	right, _ := parseScript(t, "on t\nrepeat for 3 times\nput 1\nend repeat\nend t\n")
	if diff := cmp.Diff(debugString(left), debugString(right)); diff != "" {
		t.Errorf("repeat times desugarings diverge (-plain +for):\n%s", diff)
	}
}

func TestRepeatWhileAndUntil(t *testing.T) {
	tree, _ := parseScript(t, "on t\nrepeat while x < 5\nput 1\nend repeat\nend t\n")
	loop := soleHandler(t, tree).Commands()[0].(*ast.WhileLoopNode)
	cond := loop.Condition().(*ast.FunctionCallNode)
	require.Equal(t, "GetAsBool", cond.Name)
	require.Equal(t, "vcy_cmp_lt", cond.Params()[0].(*ast.FunctionCallNode).Name)

	tree, _ = parseScript(t, "on t\nrepeat until x = 5\nput 1\nend repeat\nend t\n")
	loop = soleHandler(t, tree).Commands()[0].(*ast.WhileLoopNode)
	negated := loop.Condition().(*ast.FunctionCallNode)
	require.Equal(t, "vcy_not", negated.Name)
	require.Equal(t, "GetAsBool", negated.Params()[0].(*ast.FunctionCallNode).Name)
}

func TestRepeatForEach(t *testing.T) {
	tree, _ := parseScript(t, "on t\nrepeat for each word w of x\nput w\nend repeat\nend t\n")
	fn := soleHandler(t, tree)

	cmds := fn.Commands()
	require.Len(t, cmds, 4)

	fill := cmds[0].(*ast.CommandNode)
	require.Equal(t, "GetChunkArray", fill.Symbol)
	require.Equal(t, "temp0", fill.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, "var_x", fill.Params()[1].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, int64(ast.ChunkWord), fill.Params()[2].(*ast.IntValueNode).Value)

	loop := cmds[3].(*ast.WhileLoopNode)
	body := loop.Commands()

	bind := body[0].(*ast.AssignCommandNode)
	require.Equal(t, "var_w", bind.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, "GetConstElementAtIndex", bind.Params()[1].(*ast.FunctionCallNode).Name)

	// The counter increment is emitted exactly once, as the last body
	// command.
	increments := 0
	for _, cmd := range body {
		if c, ok := cmd.(*ast.CommandNode); ok && c.Symbol == "+=" {
			increments++
		}
	}
	require.Equal(t, 1, increments)
}

func TestExitAndNextRepeat(t *testing.T) {
	tree, _ := parseScript(t, "on t\nrepeat 2 times\nexit repeat\nnext repeat\nend repeat\nend t\n")
	fn := soleHandler(t, tree)
	loop := fn.Commands()[1].(*ast.WhileLoopNode)

	var symbols []string
	for _, cmd := range loop.Commands() {
		if c, ok := cmd.(*ast.CommandNode); ok {
			symbols = append(symbols, c.Symbol)
		}
	}
	require.Equal(t, []string{"ExitRepeat", "NextRepeat", "+="}, symbols)
}

func TestExitHandlerReturnsEmpty(t *testing.T) {
	tree, _ := parseScript(t, "on t\nexit t\nend t\n")
	fn := soleHandler(t, tree)

	ret := fn.Commands()[0].(*ast.CommandNode)
	require.Equal(t, "return", ret.Symbol)
	require.Equal(t, "", ret.Params()[0].(*ast.StringValueNode).Value)
}

func TestHandlerCallAssignsTheResult(t *testing.T) {
	tree, _ := parseScript(t, "on t\nfoo 1, 2\nend t\n")
	fn := soleHandler(t, tree)

	assign := fn.Commands()[0].(*ast.AssignCommandNode)
	require.Equal(t, "theResult", assign.Params()[0].(*ast.LocalVariableRefNode).Name)
	call := assign.Params()[1].(*ast.FunctionCallNode)
	require.Equal(t, "foo", call.Name)
	require.True(t, call.IsCommand)
	require.Len(t, call.Params(), 2)
}

func TestArithmeticIntoContainerStatements(t *testing.T) {
	tree, _ := parseScript(t, "on t\nadd 1 to x\nsubtract 2 from x\nmultiply x with 3\ndivide x by 4\nend t\n")
	fn := soleHandler(t, tree)

	add := fn.Commands()[0].(*ast.CommandNode)
	require.Equal(t, "AddTo", add.Symbol)
	require.Equal(t, int64(1), add.Params()[0].(*ast.IntValueNode).Value)
	require.Equal(t, "var_x", add.Params()[1].(*ast.LocalVariableRefNode).Name)

	sub := fn.Commands()[1].(*ast.CommandNode)
	require.Equal(t, "SubtractFrom", sub.Symbol)

	// Multiply and divide take the container first.
	mul := fn.Commands()[2].(*ast.CommandNode)
	require.Equal(t, "MultiplyWith", mul.Symbol)
	require.Equal(t, "var_x", mul.Params()[0].(*ast.LocalVariableRefNode).Name)
	require.Equal(t, int64(3), mul.Params()[1].(*ast.IntValueNode).Value)

	div := fn.Commands()[3].(*ast.CommandNode)
	require.Equal(t, "DivideBy", div.Symbol)
	require.Equal(t, "var_x", div.Params()[0].(*ast.LocalVariableRefNode).Name)
}

func TestDeleteStatement(t *testing.T) {
	tree, _ := parseScript(t, "on t\ndelete item 2 of x\nend t\n")
	fn := soleHandler(t, tree)

	del := fn.Commands()[0].(*ast.FunctionCallNode)
	require.Equal(t, "Delete", del.Name)
	chunk := del.Params()[0].(*ast.ChunkRefNode)
	require.Equal(t, ast.ChunkItem, chunk.Kind)
	require.True(t, chunk.Mutable)
}

func TestGlobalDeclarations(t *testing.T) {
	tree, _ := parseScript(t, "on t\nprivate global gCount\npublic global gShared\nend t\n")
	fn := soleHandler(t, tree)

	require.Contains(t, fn.Locals(), "var_gcount")
	require.True(t, fn.Locals()["var_gcount"].IsGlobal)
	require.Contains(t, tree.Globals(), "var_gshared")
}

func TestBareGlobalIsAnError(t *testing.T) {
	err := parseError(t, "on t\nglobal gCount\nend t\n")
	require.Contains(t, err.Error(), "private globals")
}

func TestSetOfObjectIsReserved(t *testing.T) {
	err := parseError(t, "on t\nset name of foo to 5\nend t\n")
	require.Contains(t, err.Error(), "Object properties are not yet implemented")
}

func TestSetUnknownProperty(t *testing.T) {
	err := parseError(t, "on t\nset blorp to 5\nend t\n")
	require.Contains(t, err.Error(), "Unknown global property")
	require.Contains(t, err.Error(), "blorp")
}

func TestErrorFidelity(t *testing.T) {
	err := parseError(t, "on t\nput 5 into 7\nend t\n")
	msg := err.Error()
	require.True(t, strings.HasPrefix(msg, "test.talk:2: error:"), msg)
	require.Contains(t, msg, "number 7")
}

func TestMismatchedHandlerEnd(t *testing.T) {
	err := parseError(t, "on t\nput 1\nend u\n")
	require.Contains(t, err.Error(), "end t")
}

func TestMissingEndRepeat(t *testing.T) {
	err := parseError(t, "on t\nrepeat 2 times\nput 1\nend if\nend t\n")
	require.Contains(t, err.Error(), "end repeat")
}

func TestUnterminatedHandler(t *testing.T) {
	err := parseError(t, "on t\nput 1\n")
	require.Contains(t, err.Error(), "end of script")
}

func TestExitUnknownTarget(t *testing.T) {
	err := parseError(t, "on t\nexit u\nend t\n")
	require.Contains(t, err.Error(), "exit repeat")
	require.Contains(t, err.Error(), "exit t")
}

func TestNextRequiresRepeat(t *testing.T) {
	err := parseError(t, "on t\nnext u\nend t\n")
	require.Contains(t, err.Error(), "next repeat")
}

func TestUnknownTopLevelConstructWarnsAndSkips(t *testing.T) {
	toks, err := lexer.NewScanner([]byte("bogus stuff here\non t\nput 1\nend t\n")).ScanAll()
	require.NoError(t, err)
	tree := ast.NewTree(nil)
	p := parser.New()
	require.NoError(t, p.Parse("test.talk", toks, tree))

	require.Len(t, tree.Roots(), 1)
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, 1, msgs[0].Line)
	require.Contains(t, msgs[0].Text, "skipping")
	require.Contains(t, msgs[0].String(), "test.talk:1: warning:")
}

func TestObserverSeesEveryNode(t *testing.T) {
	toks, err := lexer.NewScanner([]byte("on greet who\nput \"hi \" & who into it\nend greet\n")).ScanAll()
	require.NoError(t, err)

	delegate := &countingDelegate{}
	tree := ast.NewTree(delegate)
	require.NoError(t, parser.New().Parse("test.talk", toks, tree))

	require.Equal(t, tree.NodeCount(), delegate.count)
	for _, root := range tree.Roots() {
		require.True(t, tree.Contains(root))
	}
}

func TestTempNamesUniqueAcrossLoops(t *testing.T) {
	tree, _ := parseScript(t, "on t\nrepeat 2 times\nend repeat\nrepeat 3 times\nend repeat\nend t\n")
	fn := soleHandler(t, tree)

	require.Contains(t, fn.Locals(), "temp0")
	require.Contains(t, fn.Locals(), "temp1")
}

func TestFirstHandlerIsNeverOverwritten(t *testing.T) {
	_, p := parseScript(t, "on first\nend first\nfunction second\nend second\n")
	name, isFunction := p.FirstHandler()
	require.Equal(t, "first", name)
	require.False(t, isFunction)
}

func TestParseCommandOrExpressionStatement(t *testing.T) {
	toks, err := lexer.NewScanner([]byte("put 1")).ScanAll()
	require.NoError(t, err)
	tree := ast.NewTree(nil)
	require.NoError(t, parser.New().ParseCommandOrExpression("<eval>", toks, tree))

	fn := soleHandler(t, tree)
	require.Equal(t, ":run", fn.Name)
	_, ok := fn.Commands()[0].(*ast.PrintCommandNode)
	require.True(t, ok)
}

func TestParseCommandOrExpressionBareExpression(t *testing.T) {
	toks, err := lexer.NewScanner([]byte("2 + 3")).ScanAll()
	require.NoError(t, err)
	tree := ast.NewTree(nil)
	require.NoError(t, parser.New().ParseCommandOrExpression("<eval>", toks, tree))

	fn := soleHandler(t, tree)
	push, ok := fn.Commands()[0].(*ast.PushValueCommandNode)
	require.True(t, ok)
	require.Equal(t, "vcy_add", push.Params()[0].(*ast.FunctionCallNode).Name)
}
