// Package parser turns a token stream into a parse tree. The grammar is
// the English-like ntalk surface: handler definitions, natural-language
// statements (put X into Y), repeat loops, conditionals, and chunk
// expressions over characters, words, items and lines.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
)

// Message is a non-fatal diagnostic collected while parsing.
type Message struct {
	File string
	Line int
	Text string
}

func (m Message) String() string {
	return fmt.Sprintf("%s:%d: warning: %s", m.File, m.Line, m.Text)
}

// Parser drives the token cursor and builds nodes inside a parse tree.
// A zero-value Parser is not usable; call New.
type Parser struct {
	fileName               string
	firstHandlerName       string
	firstHandlerIsFunction bool
	messages               []Message
	warn                   io.Writer
}

// New creates a parser. Warnings are collected on the parser; pass a
// writer via SetDiagnostics to also stream them.
func New() *Parser {
	return &Parser{}
}

// SetDiagnostics streams warnings to w as they are found.
func (p *Parser) SetDiagnostics(w io.Writer) { p.warn = w }

// Messages returns the warnings collected so far.
func (p *Parser) Messages() []Message { return p.messages }

// FirstHandler returns the name of the first handler parsed in this
// compilation unit and whether it is a function (as opposed to a
// message handler). It is never overwritten once set.
func (p *Parser) FirstHandler() (name string, isFunction bool) {
	return p.firstHandlerName, p.firstHandlerIsFunction
}

// Parse consumes the whole token stream, adding one node per top-level
// handler to the tree. A parse error aborts the compilation unit.
func (p *Parser) Parse(fname string, toks []lexer.Token, tree *ast.Tree) error {
	p.fileName = fname
	cur := lexer.NewCursor(fname, toks)
	for !cur.AtEnd() {
		if err := p.parseTopLevelConstruct(cur, tree); err != nil {
			return err
		}
	}
	return nil
}

// ParseCommandOrExpression parses a single command or expression into a
// synthetic handler named ":run", for one-liner evaluation. A bare
// expression becomes a PushValue command so its result stays available
// to the caller.
func (p *Parser) ParseCommandOrExpression(fname string, toks []lexer.Token, tree *ast.Tree) error {
	p.fileName = fname
	cur := lexer.NewCursor(fname, toks)

	fn := tree.NewFunctionDefinition(true, ":run", cur.Line(), tree.Globals())
	tree.AddNode(fn)
	fn.AddLocalVar("theResult", "the result", ast.VariantEmptyString, false, false, false)
	fn.AddLocalVar("paramList", "paramList", ast.VariantInvalid, false, false, false)

	mark := cur.Pos()
	if err := p.parseOneLine(":run", cur, tree, fn, false); err == nil {
		return nil
	}
	cur.SeekTo(mark)

	line := cur.Line()
	expr, err := p.parseExpression(cur, tree, fn)
	if err != nil {
		return err
	}
	push := tree.NewPushValueCommand(line)
	push.AddParam(expr)
	fn.AddCommand(push)
	return nil
}

func (p *Parser) errorf(line int, format string, args ...any) error {
	return lexer.Errorf(p.fileName, line, format, args...)
}

func (p *Parser) warnf(line int, format string, args ...any) {
	msg := Message{File: p.fileName, Line: line, Text: fmt.Sprintf(format, args...)}
	p.messages = append(p.messages, msg)
	if p.warn != nil {
		fmt.Fprintln(p.warn, msg)
	}
}

func (p *Parser) parseTopLevelConstruct(cur *lexer.Cursor, tree *ast.Tree) error {
	switch {
	case cur.IsKeyword(lexer.SubNewline):
		return cur.Advance()
	case cur.IsKeyword(lexer.SubFunction):
		if err := cur.Advance(); err != nil {
			return err
		}
		return p.parseFunctionDefinition(false, cur, tree)
	case cur.IsKeyword(lexer.SubOn), cur.IsKeyword(lexer.SubTo):
		if err := cur.Advance(); err != nil {
			return err
		}
		return p.parseFunctionDefinition(true, cur, tree)
	default:
		// Unknown top-level construct: warn and skip to end of line.
		line := cur.Line()
		var skipped strings.Builder
		skipped.WriteString("skipping ")
		skipped.WriteString(cur.Peek().ShortDescription())
		if err := cur.Advance(); err != nil {
			return err
		}
		for !cur.AtEnd() && !cur.IsKeyword(lexer.SubNewline) {
			skipped.WriteString(" ")
			skipped.WriteString(cur.Peek().ShortDescription())
			if err := cur.Advance(); err != nil {
				return err
			}
		}
		p.warnf(line, "%s.", skipped.String())
		return nil
	}
}

func (p *Parser) parseFunctionDefinition(isCommand bool, cur *lexer.Cursor, tree *ast.Tree) error {
	nameTok := cur.Peek()
	if nameTok.Kind != lexer.KindIdentifier {
		return p.errorf(nameTok.Line, "Expected handler name here, found %s.", nameTok.ShortDescription())
	}
	handlerName := nameTok.Normalized
	fcnLine := nameTok.Line
	if err := cur.Advance(); err != nil {
		return err
	}

	if p.firstHandlerName == "" {
		p.firstHandlerName = handlerName
		p.firstHandlerIsFunction = !isCommand
	}

	fn := tree.NewFunctionDefinition(isCommand, handlerName, fcnLine, tree.Globals())
	tree.AddNode(fn)

	// Built-in locals every handler carries.
	fn.AddLocalVar("theResult", "the result", ast.VariantEmptyString, false, false, false)
	fn.AddLocalVar("paramList", "paramList", ast.VariantInvalid, false, false, false)

	paramIdx := int64(0)
	for !cur.IsKeyword(lexer.SubNewline) {
		t := cur.Peek()
		if t.Kind != lexer.KindIdentifier {
			return p.errorf(t.Line, "Expected parameter name or end of line here, found %s.", t.ShortDescription())
		}
		realName := t.Normalized
		varName := "var_" + realName

		copyCmd := tree.NewGetParamCommand(t.Line)
		copyCmd.AddParam(tree.NewLocalVariableRef(fn, varName, realName, t.Line))
		copyCmd.AddParam(tree.NewIntValue(paramIdx, t.Line))
		paramIdx++
		fn.AddCommand(copyCmd)

		fn.AddLocalVar(varName, realName, ast.VariantEmptyString, false, true, false)
		if err := cur.Advance(); err != nil {
			return err
		}
		if !cur.IsKeyword(lexer.SubComma) {
			if cur.IsKeyword(lexer.SubNewline) {
				break
			}
			return p.errorf(cur.Line(), "Expected comma or end of line here, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	for cur.IsKeyword(lexer.SubNewline) {
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	return p.parseFunctionBody(handlerName, cur, tree, fn)
}

func (p *Parser) parseFunctionBody(userHandlerName string, cur *lexer.Cursor, tree *ast.Tree, fn ast.CodeBlockNodeBase) error {
	// Sub-constructs swallow their own "end xxx", so the first bare
	// "end" is ours — or the construct is unbalanced and the name check
	// below catches it.
	for !cur.IsKeyword(lexer.SubEnd) {
		if err := p.parseOneLine(userHandlerName, cur, tree, fn, false); err != nil {
			return err
		}
	}
	if err := cur.Advance(); err != nil {
		return err
	}
	t := cur.Peek()
	if t.Kind != lexer.KindIdentifier || t.Normalized != userHandlerName {
		return p.errorf(t.Line, "Expected \"end %s\" here, found %s.", userHandlerName, t.ShortDescription())
	}
	return cur.Advance()
}

func (p *Parser) parseOneLine(userHandlerName string, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase, dontSwallowReturn bool) error {
	for cur.IsKeyword(lexer.SubNewline) {
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	// Blank bodies: the enclosing construct's "end" is not a statement.
	if cur.IsKeyword(lexer.SubEnd) {
		return nil
	}

	t := cur.Peek()
	var err error
	switch {
	case t.Kind == lexer.KindIdentifier && t.Subtype == lexer.SubNoKeyword:
		err = p.parseHandlerCall(cur, tree, block)
	case t.IsKeyword(lexer.SubPut):
		err = p.parsePutStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubDelete):
		err = p.parseDeleteStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubReturn):
		err = p.parseReturnStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubExit):
		err = p.parseExitStatement(userHandlerName, cur, tree, block)
	case t.IsKeyword(lexer.SubNext):
		err = p.parseNextStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubRepeat):
		err = p.parseRepeatStatement(userHandlerName, cur, tree, block)
	case t.IsKeyword(lexer.SubIf):
		err = p.parseIfStatement(userHandlerName, cur, tree, block)
	case t.IsKeyword(lexer.SubAdd):
		err = p.parseAddStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubSubtract):
		err = p.parseSubtractStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubMultiply):
		err = p.parseMultiplyStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubDivide):
		err = p.parseDivideStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubGet):
		err = p.parseGetStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubSet):
		err = p.parseSetStatement(cur, tree, block)
	case t.IsKeyword(lexer.SubGlobal):
		return p.errorf(t.Line, "We can't do globals yet, only private globals.")
	case t.IsKeyword(lexer.SubPrivate):
		err = p.parseGlobalDeclaration(false, cur, tree, block)
	case t.IsKeyword(lexer.SubPublic):
		err = p.parseGlobalDeclaration(true, cur, tree, block)
	default:
		return p.errorf(t.Line, "Expected command name or \"end %s\" here, found %s.", userHandlerName, t.ShortDescription())
	}
	if err != nil {
		return err
	}

	if !dontSwallowReturn {
		if !cur.IsKeyword(lexer.SubNewline) {
			return p.errorf(cur.Line(), "Expected end of line, found %s.", cur.Peek().ShortDescription())
		}
		for cur.IsKeyword(lexer.SubNewline) {
			if err := cur.Advance(); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseHandlerCall parses a message send to a user handler; the result
// lands in theResult.
func (p *Parser) parseHandlerCall(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	t := cur.Peek()
	handlerName := t.Normalized
	line := t.Line
	if err := cur.Advance(); err != nil {
		return err
	}

	call := tree.NewFunctionCall(true, handlerName, line)
	if err := p.parseParamList(lexer.SubNewline, cur, tree, block, call); err != nil {
		return err
	}

	assign := tree.NewAssignCommand(line)
	assign.AddParam(tree.NewLocalVariableRef(block, "theResult", "the result", line))
	assign.AddParam(call)
	block.AddCommand(assign)
	return nil
}

// parseParamList parses comma-separated argument expressions until the
// terminating keyword, which is not consumed.
func (p *Parser) parseParamList(endSub lexer.Subtype, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase, call *ast.FunctionCallNode) error {
	for !cur.IsKeyword(endSub) {
		arg, err := p.parseExpression(cur, tree, block)
		if err != nil {
			return err
		}
		call.AddParam(arg)

		if !cur.IsKeyword(lexer.SubComma) {
			if cur.IsKeyword(endSub) {
				break
			}
			return p.errorf(cur.Line(), "Expected comma here, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parsePutStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	startLine := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}

	what, err := p.parseValueExpression(cur, tree, block)
	if err != nil {
		return err
	}

	var symbol string
	switch {
	case cur.IsKeyword(lexer.SubInto):
		symbol = "Put"
	case cur.IsKeyword(lexer.SubAfter):
		symbol = "Append"
	case cur.IsKeyword(lexer.SubBefore):
		symbol = "Prepend"
	default:
		// Bare put prints the expression.
		printCmd := tree.NewPrintCommand(startLine)
		printCmd.AddParam(what)
		block.AddCommand(printCmd)
		return nil
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	dest, err := p.parseContainer(false, false, cur, tree, block)
	if err != nil {
		return err
	}
	cmd := tree.NewCommand(symbol, startLine)
	cmd.AddParam(what)
	cmd.AddParam(dest)
	block.AddCommand(cmd)
	return nil
}

// parseGetStatement desugars "get EXPR" into "put EXPR into it".
func (p *Parser) parseGetStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}

	what, err := p.parseValueExpression(cur, tree, block)
	if err != nil {
		return err
	}

	block.AddLocalVar("var_it", "it", ast.VariantInvalid, false, false, false)
	cmd := tree.NewCommand("Put", line)
	cmd.AddParam(what)
	cmd.AddParam(tree.NewLocalVariableRef(block, "var_it", "it", line))
	block.AddCommand(cmd)
	return nil
}

// parseSetStatement handles "set PROPERTY to EXPR" for engine-known
// global properties; it lowers to a put into the property's shared
// global. The "set P of OBJ" form is reserved.
func (p *Parser) parseSetStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	startLine := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}

	t := cur.Peek()
	if t.Kind != lexer.KindIdentifier {
		return p.errorf(t.Line, "Expected property name here, found %s.", t.ShortDescription())
	}
	propertyName := t.Normalized
	subType := t.Subtype
	if err := cur.Advance(); err != nil {
		return err
	}

	t = cur.Peek()
	if t.Kind != lexer.KindIdentifier {
		return p.errorf(t.Line, "Expected \"of\" or \"to\" here, found %s.", t.ShortDescription())
	}
	if t.Subtype == lexer.SubOf {
		return p.errorf(t.Line, "Object properties are not yet implemented.")
	}

	prop := globalPropertyForSubtype(subType)
	if prop == nil {
		return p.errorf(t.Line, "Unknown global property %q.", propertyName)
	}

	if err := cur.ExpectKeyword(lexer.SubTo); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	what, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}

	block.AddLocalVar(prop.varName, prop.varName, ast.VariantInvalid, false, false, true)
	cmd := tree.NewCommand("Put", startLine)
	cmd.AddParam(what)
	cmd.AddParam(tree.NewLocalVariableRef(block, prop.varName, prop.varName, startLine))
	block.AddCommand(cmd)
	return nil
}

func (p *Parser) parseDeleteStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	if err := cur.Advance(); err != nil {
		return err
	}
	container, err := p.parseContainer(false, false, cur, tree, block)
	if err != nil {
		return err
	}
	call := tree.NewFunctionCall(true, "Delete", cur.Line())
	call.AddParam(container)
	block.AddCommand(call)
	return nil
}

func (p *Parser) parseReturnStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}
	what, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	cmd := tree.NewCommand("return", line)
	cmd.AddParam(what)
	block.AddCommand(cmd)
	return nil
}

func (p *Parser) parseExitStatement(userHandlerName string, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	if err := cur.Advance(); err != nil {
		return err
	}
	t := cur.Peek()
	switch {
	case t.IsKeyword(lexer.SubRepeat):
		block.AddCommand(tree.NewCommand("ExitRepeat", t.Line))
		return cur.Advance()
	case t.Kind == lexer.KindIdentifier && t.Normalized == userHandlerName:
		cmd := tree.NewCommand("return", t.Line)
		cmd.AddParam(tree.NewStringValue("", t.Line))
		block.AddCommand(cmd)
		return cur.Advance()
	default:
		return p.errorf(t.Line, "Expected \"exit repeat\" or \"exit %s\", found %s.", userHandlerName, t.ShortDescription())
	}
}

func (p *Parser) parseNextStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	if err := cur.Advance(); err != nil {
		return err
	}
	t := cur.Peek()
	if !t.IsKeyword(lexer.SubRepeat) {
		return p.errorf(t.Line, "Expected \"next repeat\", found %s.", t.ShortDescription())
	}
	block.AddCommand(tree.NewCommand("NextRepeat", t.Line))
	return cur.Advance()
}

// parseAddStatement: add EXPR to CONTAINER.
func (p *Parser) parseAddStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}
	what, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	if err := cur.ExpectKeyword(lexer.SubTo); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}
	dest, err := p.parseContainer(false, false, cur, tree, block)
	if err != nil {
		return err
	}
	cmd := tree.NewCommand("AddTo", line)
	cmd.AddParam(what)
	cmd.AddParam(dest)
	block.AddCommand(cmd)
	return nil
}

// parseSubtractStatement: subtract EXPR from CONTAINER.
func (p *Parser) parseSubtractStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}
	what, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	if err := cur.ExpectKeyword(lexer.SubFrom); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}
	dest, err := p.parseContainer(false, false, cur, tree, block)
	if err != nil {
		return err
	}
	cmd := tree.NewCommand("SubtractFrom", line)
	cmd.AddParam(what)
	cmd.AddParam(dest)
	block.AddCommand(cmd)
	return nil
}

// parseMultiplyStatement: multiply CONTAINER with EXPR.
func (p *Parser) parseMultiplyStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}
	dest, err := p.parseContainer(false, false, cur, tree, block)
	if err != nil {
		return err
	}
	if err := cur.ExpectKeyword(lexer.SubWith); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}
	what, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	cmd := tree.NewCommand("MultiplyWith", line)
	cmd.AddParam(dest)
	cmd.AddParam(what)
	block.AddCommand(cmd)
	return nil
}

// parseDivideStatement: divide CONTAINER by EXPR.
func (p *Parser) parseDivideStatement(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}
	dest, err := p.parseContainer(false, false, cur, tree, block)
	if err != nil {
		return err
	}
	if err := cur.ExpectKeyword(lexer.SubBy); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}
	what, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	cmd := tree.NewCommand("DivideBy", line)
	cmd.AddParam(dest)
	cmd.AddParam(what)
	block.AddCommand(cmd)
	return nil
}

// parseGlobalDeclaration handles "private global NAME" and
// "public global NAME"; the private/public keyword is current.
func (p *Parser) parseGlobalDeclaration(isPublic bool, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	if err := cur.Advance(); err != nil {
		return err
	}
	if !cur.IsKeyword(lexer.SubGlobal) {
		return p.errorf(cur.Line(), "Expected \"global\" after %q, found %s.", visibility(isPublic), cur.Peek().ShortDescription())
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	t := cur.Peek()
	if t.Kind != lexer.KindIdentifier {
		return p.errorf(t.Line, "Expected global variable name here, found %s.", t.ShortDescription())
	}
	globalName := "var_" + t.Normalized
	block.AddLocalVar(globalName, t.Normalized, ast.VariantInvalid, false, false, true)
	return cur.Advance()
}

func visibility(isPublic bool) string {
	if isPublic {
		return "public"
	}
	return "private"
}

func (p *Parser) parseRepeatStatement(userHandlerName string, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	conditionLine := cur.Line()
	if err := cur.Advance(); err != nil {
		return err
	}

	switch {
	case cur.IsKeyword(lexer.SubWhile), cur.IsKeyword(lexer.SubUntil):
		doUntil := cur.IsKeyword(lexer.SubUntil)
		if err := cur.Advance(); err != nil {
			return err
		}

		loop := tree.NewWhileLoop(block, conditionLine)
		condExpr, err := p.parseExpression(cur, tree, loop)
		if err != nil {
			return err
		}
		cond := tree.NewFunctionCall(false, "GetAsBool", conditionLine)
		cond.AddParam(condExpr)
		if doUntil {
			negated := tree.NewFunctionCall(false, "vcy_not", conditionLine)
			negated.AddParam(cond)
			loop.SetCondition(negated)
		} else {
			loop.SetCondition(cond)
		}

		for !cur.IsKeyword(lexer.SubEnd) {
			if err := p.parseOneLine(userHandlerName, cur, tree, loop, false); err != nil {
				return err
			}
		}
		block.AddCommand(loop)
		return p.finishEndRepeat(cur)

	case cur.IsKeyword(lexer.SubWith):
		return p.parseRepeatWithStatement(userHandlerName, conditionLine, cur, tree, block)

	default:
		if cur.IsKeyword(lexer.SubFor) {
			if err := cur.Advance(); err != nil {
				return err
			}
			if cur.IsKeyword(lexer.SubEach) {
				if err := cur.Advance(); err != nil {
					return err
				}
				return p.parseRepeatForEachStatement(userHandlerName, cur, tree, block)
			}
		}
		return p.parseRepeatTimesStatement(userHandlerName, conditionLine, cur, tree, block)
	}
}

// finishEndRepeat swallows the closing "end repeat"; the cursor sits on
// "end" when it is called.
func (p *Parser) finishEndRepeat(cur *lexer.Cursor) error {
	if err := cur.Advance(); err != nil {
		return err
	}
	if !cur.IsKeyword(lexer.SubRepeat) {
		return p.errorf(cur.Line(), "Expected \"end repeat\" here, found %s.", cur.Peek().ShortDescription())
	}
	return cur.Advance()
}
