package parser

import (
	"strconv"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
)

// parseExpression runs the precedence-climbing engine: terms and
// operators accumulate on two stacks, and the stacks collapse
// right-to-left whenever the previous operator binds strictly tighter
// than the incoming one.
func (p *Parser) parseExpression(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	term, err := p.parseTerm(cur, tree, block)
	if err != nil {
		return nil, err
	}
	return p.continueExpression(term, cur, tree, block)
}

// parseValueExpression parses the value side of put and get. A chunk
// expression in leading position is the addressable flavor there, so
// downstream code can update the chunk in place; chained chunk targets
// inside it stay constant.
func (p *Parser) parseValueExpression(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	if chunkType := chunkTypeForSubtype(cur.Peek().Subtype); chunkType != ast.ChunkInvalid {
		first, err := p.parseChunkExpression(chunkType, true, cur, tree, block)
		if err != nil {
			return nil, err
		}
		return p.continueExpression(first, cur, tree, block)
	}
	return p.parseExpression(cur, tree, block)
}

// continueExpression runs the operator loop with first already parsed.
func (p *Parser) continueExpression(first ast.ValueNode, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	var ops []string
	terms := []ast.ValueNode{first}

	prevPrecedence := 0
	for {
		symbol, precedence, ok, err := p.parseOperator(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		if prevPrecedence > precedence {
			terms, ops = collapseExpressionStack(tree, terms, ops)
		}

		term, err := p.parseTerm(cur, tree, block)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		ops = append(ops, symbol)

		prevPrecedence = precedence
	}

	terms, _ = collapseExpressionStack(tree, terms, ops)
	return terms[0], nil
}

// collapseExpressionStack folds the accumulated operand/operator stacks
// from the right end into a single sub-tree, which becomes the only
// remaining operand.
func collapseExpressionStack(tree *ast.Tree, terms []ast.ValueNode, ops []string) ([]ast.ValueNode, []string) {
	for len(terms) > 1 {
		symbol := ops[len(ops)-1]
		ops = ops[:len(ops)-1]

		operandB := terms[len(terms)-1]
		operandA := terms[len(terms)-2]
		terms = terms[:len(terms)-2]

		op := tree.NewFunctionCall(false, symbol, operandA.Line())
		op.AddParam(operandA)
		op.AddParam(operandB)
		terms = append(terms, op)
	}
	return terms, ops
}

// parseOperator matches a binary operator at the cursor, trying
// two-token operators before their single-token prefixes. A failed
// second-token match restores the cursor.
func (p *Parser) parseOperator(cur *lexer.Cursor) (symbol string, precedence int, ok bool, err error) {
	if cur.Peek().Kind != lexer.KindIdentifier {
		return "", 0, false, nil
	}

	for _, entry := range operators {
		if !cur.IsKeyword(entry.typ) {
			continue
		}
		if err := cur.Advance(); err != nil {
			return "", 0, false, err
		}
		if entry.secondTyp == lexer.SubNoKeyword {
			return entry.symbol, entry.precedence, true, nil
		}
		if cur.IsKeyword(entry.secondTyp) {
			if err := cur.Advance(); err != nil {
				return "", 0, false, err
			}
			return entry.symbol, entry.precedence, true, nil
		}
		// Not the two-token operator: back off and try the next entry.
		cur.Retreat()
	}

	return "", 0, false, nil
}

// parseTerm parses one operand. Unary operators bind here, tighter than
// any binary operator.
func (p *Parser) parseTerm(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	t := cur.Peek()
	switch t.Kind {
	case lexer.KindString:
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		return tree.NewStringValue(t.StringValue, t.Line), nil

	case lexer.KindNumber:
		return p.parseNumberTerm(cur, tree)

	case lexer.KindIdentifier:
		return p.parseIdentifierTerm(cur, tree, block)
	}

	return nil, p.errorf(t.Line, "Expected a term here, found %s.", t.ShortDescription())
}

// parseNumberTerm reads an integer literal, gluing an integer / period
// / integer sequence into a float. A period not followed by a number is
// backed out of and left for the caller.
func (p *Parser) parseNumberTerm(cur *lexer.Cursor, tree *ast.Tree) (ast.ValueNode, error) {
	t := cur.Peek()
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	if !cur.IsKeyword(lexer.SubPeriod) {
		return tree.NewIntValue(t.NumberValue, t.Line), nil
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}
	frac := cur.Peek()
	if frac.Kind != lexer.KindNumber {
		cur.Retreat()
		return tree.NewIntValue(t.NumberValue, t.Line), nil
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(t.Text+"."+frac.Text, 64)
	if err != nil {
		return nil, p.errorf(t.Line, "Malformed number %s.%s.", t.Text, frac.Text)
	}
	return tree.NewFloatValue(f, t.Line), nil
}

func (p *Parser) parseIdentifierTerm(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	t := cur.Peek()
	switch t.Subtype {
	case lexer.SubNoKeyword:
		return p.parseCallOrContainerTerm(cur, tree, block)

	case lexer.SubEntry:
		return p.parseArrayItem(cur, tree, block)

	case lexer.SubID:
		return p.parseHandlerAddress(cur, tree)

	case lexer.SubNumber, lexer.SubNum:
		return p.parseChunkCount(cur, tree, block)

	case lexer.SubOpenParen:
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression(cur, tree, block)
		if err != nil {
			return nil, err
		}
		if !cur.IsKeyword(lexer.SubCloseParen) {
			return nil, p.errorf(cur.Line(), "Expected closing bracket here, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		return expr, nil

	case lexer.SubThe:
		return p.parseTheTerm(cur, tree, block)

	case lexer.SubParamCount:
		return p.parseParamCountTerm(cur, tree, block)

	case lexer.SubParam:
		return p.parseParamTerm(true, cur, tree, block)

	case lexer.SubParameter:
		return p.parseParamTerm(false, cur, tree, block)

	case lexer.SubResult, lexer.SubIt, lexer.SubItemDel, lexer.SubItemDelim, lexer.SubItemDelimiter:
		return p.parseContainer(false, true, cur, tree, block)
	}

	// Chunk expression in value position: constant flavor.
	if chunkType := chunkTypeForSubtype(t.Subtype); chunkType != ast.ChunkInvalid {
		return p.parseChunkExpression(chunkType, false, cur, tree, block)
	}

	// Keyword literal constant.
	if makeConstant := constantForSubtype(t.Subtype); makeConstant != nil {
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		return makeConstant(tree, t.Line), nil
	}

	// Unary operator.
	if symbol, ok := unaryOperators[t.Subtype]; ok {
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseTerm(cur, tree, block)
		if err != nil {
			return nil, err
		}
		call := tree.NewFunctionCall(false, symbol, t.Line)
		call.AddParam(operand)
		return call, nil
	}

	return nil, p.errorf(t.Line, "Expected a term here, found %s.", t.ShortDescription())
}

// parseCallOrContainerTerm handles a user identifier: a function call
// when an opening bracket follows, a native system constant when the
// name is known, a container reference otherwise.
func (p *Parser) parseCallOrContainerTerm(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	t := cur.Peek()
	handlerName := t.Normalized
	callLine := t.Line
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	if cur.IsKeyword(lexer.SubOpenParen) {
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		call := tree.NewFunctionCall(false, handlerName, callLine)
		if err := p.parseParamList(lexer.SubCloseParen, cur, tree, block, call); err != nil {
			return nil, err
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		return call, nil
	}

	if v, ok := systemConstants[t.Text]; ok {
		return tree.NewIntValue(v, callLine), nil
	}

	cur.Retreat()
	return p.parseContainer(false, true, cur, tree, block)
}

// parseHandlerAddress handles "id of [function|message] handler NAME",
// capturing the handler's address under its fun_/hdl_ canonical name.
func (p *Parser) parseHandlerAddress(cur *lexer.Cursor, tree *ast.Tree) (ast.ValueNode, error) {
	if err := cur.Advance(); err != nil {
		return nil, err
	}
	if err := cur.ExpectKeyword(lexer.SubOf); err != nil {
		return nil, err
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	var prefix string
	switch {
	case cur.IsKeyword(lexer.SubFunction):
		prefix = "fun_"
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		if cur.IsKeyword(lexer.SubHandler) {
			if err := cur.Advance(); err != nil {
				return nil, err
			}
		}
	case cur.IsKeyword(lexer.SubMessage):
		prefix = "hdl_"
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		if !cur.IsKeyword(lexer.SubHandler) {
			return nil, p.errorf(cur.Line(), "Expected \"function handler\" or \"message handler\" here, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	default:
		prefix = "hdl_"
		if !cur.IsKeyword(lexer.SubHandler) {
			return nil, p.errorf(cur.Line(), "Expected \"function handler\" or \"message handler\" here, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}

	nameTok := cur.Peek()
	if nameTok.Kind != lexer.KindIdentifier {
		return nil, p.errorf(nameTok.Line, "Expected handler name here, found %s.", nameTok.ShortDescription())
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	call := tree.NewFunctionCall(false, "vcy_fcn_addr", nameTok.Line)
	call.AddParam(tree.NewStringValue(prefix+nameTok.Normalized, nameTok.Line))
	return call, nil
}

// parseChunkCount handles "number of CHUNKTYPE of EXPR".
func (p *Parser) parseChunkCount(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	if err := cur.Advance(); err != nil {
		return nil, err
	}
	if err := cur.ExpectKeyword(lexer.SubOf); err != nil {
		return nil, err
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	chunkType := chunkTypeForSubtype(cur.Peek().Subtype)
	if chunkType == ast.ChunkInvalid {
		return nil, p.errorf(cur.Line(), "Expected a chunk type like \"character\", \"item\", \"word\" or \"line\" here, found %s.", cur.Peek().ShortDescription())
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	if err := cur.ExpectKeyword(lexer.SubOf); err != nil {
		return nil, err
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	line := cur.Line()
	value, err := p.parseTerm(cur, tree, block)
	if err != nil {
		return nil, err
	}
	call := tree.NewFunctionCall(false, "vcy_chunk_count", line)
	call.AddParam(tree.NewIntValue(int64(chunkType), line))
	call.AddParam(value)
	return call, nil
}

// parseTheTerm handles "the"-introduced terms: "the paramCount", "the
// long|short|abbreviated NAME" wrappers, and otherwise a container.
func (p *Parser) parseTheTerm(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	t := cur.Peek()
	switch {
	case t.IsKeyword(lexer.SubParamCount):
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		return p.paramCountCall(tree, block, t.Line), nil

	case t.IsKeyword(lexer.SubLong), t.IsKeyword(lexer.SubShort), t.IsKeyword(lexer.SubAbbr),
		t.IsKeyword(lexer.SubAbbrev), t.IsKeyword(lexer.SubAbbreviated):
		// "the long NAME" wraps fun_NAME with a one-item parameter list
		// holding the length qualifier.
		tempName := tree.NewTempName()
		block.AddLocalVar(tempName, tempName, ast.VariantInvalid, false, false, false)
		qualifier := t.Normalized

		makeList := tree.NewFunctionCall(true, "vcy_list_assign_items", t.Line)
		makeList.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, t.Line))
		makeList.AddParam(tree.NewIntValue(1, t.Line))
		makeList.AddParam(tree.NewStringValue(qualifier, t.Line))
		if err := cur.Advance(); err != nil {
			return nil, err
		}

		nameTok := cur.Peek()
		if nameTok.Kind != lexer.KindIdentifier {
			return nil, p.errorf(nameTok.Line, "Expected function name here, found %s.", nameTok.ShortDescription())
		}
		call := tree.NewFunctionCall(false, "fun_"+nameTok.Normalized, nameTok.Line)
		call.AddParam(makeList)
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		return call, nil

	default:
		// Back up so the container parser sees "the" too.
		cur.Retreat()
		return p.parseContainer(false, true, cur, tree, block)
	}
}

func (p *Parser) paramCountCall(tree *ast.Tree, block ast.CodeBlockNodeBase, line int) ast.ValueNode {
	params := tree.NewLocalVariableRef(block, "paramList", "paramList", line)
	call := tree.NewFunctionCall(false, "vcy_list_count", line)
	call.AddParam(params)
	return call
}

// parseParamCountTerm handles the bare "paramCount()" spelling, which
// requires its empty bracket pair.
func (p *Parser) parseParamCountTerm(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	hadBrackets := false
	if cur.IsKeyword(lexer.SubOpenParen) {
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		if cur.IsKeyword(lexer.SubCloseParen) {
			if err := cur.Advance(); err != nil {
				return nil, err
			}
			hadBrackets = true
		}
	}
	if !hadBrackets {
		return nil, p.errorf(cur.Line(), "Expected \"(\" and \")\" after function name, found %s.", cur.Peek().ShortDescription())
	}

	return p.paramCountCall(tree, block, line), nil
}

// parseParamTerm handles "param( EXPR )" (bracketed) and "parameter
// EXPR" (bare), both of which index into the handler's parameter list.
func (p *Parser) parseParamTerm(bracketed bool, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	line := cur.Line()
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	if bracketed {
		if !cur.IsKeyword(lexer.SubOpenParen) {
			return nil, p.errorf(cur.Line(), "Expected \"(\" after function name, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}

	call := tree.NewFunctionCall(false, "vcy_list_get", line)
	call.AddParam(tree.NewLocalVariableRef(block, "paramList", "paramList", line))
	index, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return nil, err
	}
	call.AddParam(index)

	if bracketed {
		if !cur.IsKeyword(lexer.SubCloseParen) {
			return nil, p.errorf(cur.Line(), "Expected \")\" after parameter number, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}

	return call, nil
}

// parseArrayItem handles "entry EXPR of CONTAINER".
func (p *Parser) parseArrayItem(cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	index, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return nil, err
	}

	if err := cur.ExpectKeyword(lexer.SubOf); err != nil {
		return nil, err
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	containerLine := cur.Line()
	target, err := p.parseContainer(false, true, cur, tree, block)
	if err != nil {
		return nil, err
	}

	call := tree.NewFunctionCall(true, "GetItemOfListWithKey", containerLine)
	call.AddParam(target)
	call.AddParam(index)
	return call, nil
}

// parseContainer parses anything assignable: a chunk expression (the
// mutable flavor), a global property's shared global, or a plain
// variable. initWithName marks variables whose first read should yield
// their own name.
func (p *Parser) parseContainer(asPointer, initWithName bool, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	_ = asPointer // reserved for reference semantics

	if chunkType := chunkTypeForSubtype(cur.Peek().Subtype); chunkType != ast.ChunkInvalid {
		return p.parseChunkExpression(chunkType, true, cur, tree, block)
	}

	if cur.IsKeyword(lexer.SubThe) {
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}

	t := cur.Peek()
	if t.Kind != lexer.KindIdentifier {
		return nil, p.errorf(t.Line, "Expected container here, found %s.", t.ShortDescription())
	}

	realVarName := t.Normalized
	var varName string
	switch {
	case t.IsKeyword(lexer.SubResult):
		varName = "theResult"
		block.AddLocalVar(varName, realVarName, ast.VariantInvalid, initWithName, false, false)
	case t.IsKeyword(lexer.SubItemDelimiter), t.IsKeyword(lexer.SubItemDel), t.IsKeyword(lexer.SubItemDelim):
		varName = "gItemDel"
		realVarName = "itemDelimiter"
		block.AddLocalVar(varName, realVarName, ast.VariantInvalid, initWithName, false, true)
	default:
		varName = "var_" + realVarName
		block.AddLocalVar(varName, realVarName, ast.VariantInvalid, initWithName, false, false)
	}

	if err := cur.Advance(); err != nil {
		return nil, err
	}

	return tree.NewLocalVariableRef(block, varName, realVarName, t.Line), nil
}

// parseChunkExpression parses "CHUNKTYPE START [to|through|thru END] of
// TARGET". The target is a term, not a full expression, so chained
// chunks nest. Without a range clause the end offset aliases the start
// node. Mutable chunks carry their target twice for in-place updates.
func (p *Parser) parseChunkExpression(chunkType ast.ChunkType, mutable bool, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) (ast.ValueNode, error) {
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	start, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return nil, err
	}
	end := start
	hadTo := false

	line := cur.Line()

	if cur.IsKeyword(lexer.SubTo) || cur.IsKeyword(lexer.SubThrough) || cur.IsKeyword(lexer.SubThru) {
		if err := cur.Advance(); err != nil {
			return nil, err
		}
		end, err = p.parseExpression(cur, tree, block)
		if err != nil {
			return nil, err
		}
		hadTo = true
	}

	if !cur.IsKeyword(lexer.SubOf) {
		if hadTo {
			return nil, p.errorf(cur.Line(), "Expected \"of\" here, found %s.", cur.Peek().ShortDescription())
		}
		return nil, p.errorf(cur.Line(), "Expected \"to\" or \"of\" here, found %s.", cur.Peek().ShortDescription())
	}
	if err := cur.Advance(); err != nil {
		return nil, err
	}

	target, err := p.parseTerm(cur, tree, block)
	if err != nil {
		return nil, err
	}

	return tree.NewChunkRef(chunkType, start, end, target, mutable, line), nil
}
