package parser

import (
	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
)

// parseRepeatWithStatement handles "repeat with i [from|=] START [down]
// to END". It desugars into a while loop over a fresh integer temp:
// the temp is seeded with GetAsInt(START), compared against
// GetAsInt(END), the counter variable is refreshed from the temp at the
// top of each turn, and the temp is stepped by one after the body.
func (p *Parser) parseRepeatWithStatement(userHandlerName string, conditionLine int, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	if err := cur.Advance(); err != nil {
		return err
	}

	t := cur.Peek()
	if t.Kind != lexer.KindIdentifier {
		return p.errorf(t.Line, "Expected counter variable name here, found %s.", t.ShortDescription())
	}
	counterReal := t.Normalized
	counterVar := "var_" + counterReal
	block.AddLocalVar(counterVar, counterReal, ast.VariantInvalid, false, false, false)
	if err := cur.Advance(); err != nil {
		return err
	}

	if !cur.IsKeyword(lexer.SubFrom) && !cur.IsKeyword(lexer.SubEquals) {
		return p.errorf(cur.Line(), "Expected \"from\" or \"=\" here, found %s.", cur.Peek().ShortDescription())
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	startExpr, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}

	incrementOp := "+="
	compareOp := "<="
	if cur.IsKeyword(lexer.SubDown) {
		incrementOp = "-="
		compareOp = ">="
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	if err := cur.ExpectKeyword(lexer.SubTo); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	endExpr, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}

	tempName := tree.NewTempName()
	block.AddLocalVar(tempName, tempName, ast.VariantInt, false, false, false)

	loop := tree.NewWhileLoop(block, conditionLine)

	// temp = GetAsInt(start)
	seed := tree.NewAssignCommand(conditionLine)
	toInt := tree.NewFunctionCall(false, "GetAsInt", conditionLine)
	toInt.AddParam(startExpr)
	seed.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, conditionLine))
	seed.AddParam(toInt)
	block.AddCommand(seed)

	// while( temp <= GetAsInt(end) )
	comparison := tree.NewFunctionCall(false, compareOp, conditionLine)
	endInt := tree.NewFunctionCall(false, "GetAsInt", conditionLine)
	endInt.AddParam(endExpr)
	comparison.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, conditionLine))
	comparison.AddParam(endInt)
	loop.SetCondition(comparison)

	// counter = temp
	refresh := tree.NewAssignCommand(conditionLine)
	refresh.AddParam(tree.NewLocalVariableRef(block, counterVar, counterVar, conditionLine))
	refresh.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, conditionLine))
	loop.AddCommand(refresh)

	for !cur.IsKeyword(lexer.SubEnd) {
		if err := p.parseOneLine(userHandlerName, cur, tree, loop, false); err != nil {
			return err
		}
	}

	// temp += 1 (or -= 1 counting down)
	step := tree.NewCommand(incrementOp, cur.Line())
	step.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, cur.Line()))
	step.AddParam(tree.NewIntValue(1, cur.Line()))
	loop.AddCommand(step)

	block.AddCommand(loop)
	return p.finishEndRepeat(cur)
}

// parseRepeatForEachStatement handles "repeat for each CHUNKTYPE v of
// EXPR"; the cursor sits on the chunk type token. The chunks are
// materialized into a temp list which a counter walks.
func (p *Parser) parseRepeatForEachStatement(userHandlerName string, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	chunkType := chunkTypeForSubtype(cur.Peek().Subtype)
	if chunkType == ast.ChunkInvalid {
		return p.errorf(cur.Line(), "Expected chunk type identifier here, found %s.", cur.Peek().ShortDescription())
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	t := cur.Peek()
	if t.Kind != lexer.KindIdentifier {
		return p.errorf(t.Line, "Expected counter variable name here, found %s.", t.ShortDescription())
	}
	counterReal := t.Normalized
	counterVar := "var_" + counterReal
	block.AddLocalVar(counterVar, counterReal, ast.VariantInvalid, false, false, false)
	if err := cur.Advance(); err != nil {
		return err
	}

	if err := cur.ExpectKeyword(lexer.SubOf); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	currLine := cur.Line()
	expr, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}

	tempList := tree.NewTempName()
	tempCounter := tree.NewTempName()
	tempMaxCount := tree.NewTempName()
	for _, name := range []string{tempList, tempCounter, tempMaxCount} {
		block.AddLocalVar(name, name, ast.VariantInvalid, false, false, false)
	}

	// GetChunkArray( tempList, expr, chunkType )
	fill := tree.NewCommand("GetChunkArray", currLine)
	fill.AddParam(tree.NewLocalVariableRef(block, tempList, tempList, currLine))
	fill.AddParam(expr)
	fill.AddParam(tree.NewIntValue(int64(chunkType), currLine))
	block.AddCommand(fill)

	// tempCounter = 0
	zero := tree.NewAssignCommand(currLine)
	zero.AddParam(tree.NewLocalVariableRef(block, tempCounter, tempCounter, currLine))
	zero.AddParam(tree.NewIntValue(0, currLine))
	block.AddCommand(zero)

	// tempMaxCount = GetNumListItems( tempList )
	countCall := tree.NewFunctionCall(false, "GetNumListItems", currLine)
	countCall.AddParam(tree.NewLocalVariableRef(block, tempList, tempList, currLine))
	maxAssign := tree.NewAssignCommand(currLine)
	maxAssign.AddParam(tree.NewLocalVariableRef(block, tempMaxCount, tempMaxCount, currLine))
	maxAssign.AddParam(countCall)
	block.AddCommand(maxAssign)

	// while( tempCounter < tempMaxCount )
	loop := tree.NewWhileLoop(block, currLine)
	comparison := tree.NewFunctionCall(false, "<", currLine)
	comparison.AddParam(tree.NewLocalVariableRef(block, tempCounter, tempCounter, currLine))
	comparison.AddParam(tree.NewLocalVariableRef(block, tempMaxCount, tempMaxCount, currLine))
	loop.SetCondition(comparison)
	block.AddCommand(loop)

	// counter = GetConstElementAtIndex( tempList, tempCounter )
	element := tree.NewFunctionCall(false, "GetConstElementAtIndex", currLine)
	element.AddParam(tree.NewLocalVariableRef(block, tempList, tempList, currLine))
	element.AddParam(tree.NewLocalVariableRef(block, tempCounter, tempCounter, currLine))
	bind := tree.NewAssignCommand(currLine)
	bind.AddParam(tree.NewLocalVariableRef(block, counterVar, counterVar, currLine))
	bind.AddParam(element)
	loop.AddCommand(bind)

	for !cur.IsKeyword(lexer.SubEnd) {
		if err := p.parseOneLine(userHandlerName, cur, tree, loop, false); err != nil {
			return err
		}
	}

	// tempCounter += 1, emitted exactly once.
	step := tree.NewCommand("+=", cur.Line())
	step.AddParam(tree.NewLocalVariableRef(block, tempCounter, tempCounter, cur.Line()))
	step.AddParam(tree.NewIntValue(1, cur.Line()))
	loop.AddCommand(step)

	return p.finishEndRepeat(cur)
}

// parseRepeatTimesStatement handles "repeat [for] N [times]". The
// cursor sits on the count expression.
func (p *Parser) parseRepeatTimesStatement(userHandlerName string, conditionLine int, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	countExpr, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	if cur.IsKeyword(lexer.SubTimes) {
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	tempName := tree.NewTempName()
	block.AddLocalVar(tempName, tempName, ast.VariantInt, false, false, false)

	loop := tree.NewWhileLoop(block, conditionLine)

	// temp = 0
	zero := tree.NewAssignCommand(conditionLine)
	zero.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, conditionLine))
	zero.AddParam(tree.NewIntValue(0, conditionLine))
	block.AddCommand(zero)

	// while( temp < GetAsInt(count) )
	comparison := tree.NewFunctionCall(false, "<", conditionLine)
	countInt := tree.NewFunctionCall(false, "GetAsInt", conditionLine)
	countInt.AddParam(countExpr)
	comparison.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, conditionLine))
	comparison.AddParam(countInt)
	loop.SetCondition(comparison)

	for !cur.IsKeyword(lexer.SubEnd) {
		if err := p.parseOneLine(userHandlerName, cur, tree, loop, false); err != nil {
			return err
		}
	}

	// temp += 1
	step := tree.NewCommand("+=", cur.Line())
	step.AddParam(tree.NewLocalVariableRef(block, tempName, tempName, cur.Line()))
	step.AddParam(tree.NewIntValue(1, cur.Line()))
	loop.AddCommand(step)

	block.AddCommand(loop)
	return p.finishEndRepeat(cur)
}

// parseIfStatement handles both the multi-line and the inline shapes.
// Inline arms parse exactly one statement and must not consume a
// closing "end if".
func (p *Parser) parseIfStatement(userHandlerName string, cur *lexer.Cursor, tree *ast.Tree, block ast.CodeBlockNodeBase) error {
	conditionLine := cur.Line()
	ifNode := tree.NewIfNode(block, conditionLine)
	if err := cur.Advance(); err != nil {
		return err
	}

	condition, err := p.parseExpression(cur, tree, block)
	if err != nil {
		return err
	}
	ifNode.SetCondition(condition)

	for cur.IsKeyword(lexer.SubNewline) {
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	if err := cur.ExpectKeyword(lexer.SubThen); err != nil {
		return err
	}
	if err := cur.Advance(); err != nil {
		return err
	}

	needEndIf := true
	if cur.IsKeyword(lexer.SubNewline) {
		if err := cur.Advance(); err != nil {
			return err
		}
		for !cur.IsKeyword(lexer.SubEnd) && !cur.IsKeyword(lexer.SubElse) {
			if err := p.parseOneLine(userHandlerName, cur, tree, ifNode, false); err != nil {
				return err
			}
		}
	} else {
		if err := p.parseOneLine(userHandlerName, cur, tree, ifNode, true); err != nil {
			return err
		}
		needEndIf = false
	}

	// Look ahead for an else on a following line without losing the
	// statement terminator when there is none.
	mark := cur.Pos()
	for cur.IsKeyword(lexer.SubNewline) {
		if err := cur.Advance(); err != nil {
			return err
		}
	}
	if !cur.IsKeyword(lexer.SubElse) {
		cur.SeekTo(mark)
		if needEndIf {
			for cur.IsKeyword(lexer.SubNewline) {
				if err := cur.Advance(); err != nil {
					return err
				}
			}
		}
	}

	if cur.IsKeyword(lexer.SubElse) {
		elseBlock := ifNode.CreateElseBlock(cur.Line())
		if err := cur.Advance(); err != nil {
			return err
		}

		if cur.IsKeyword(lexer.SubNewline) {
			if err := cur.Advance(); err != nil {
				return err
			}
			for !cur.IsKeyword(lexer.SubEnd) {
				if err := p.parseOneLine(userHandlerName, cur, tree, elseBlock, false); err != nil {
					return err
				}
			}
			needEndIf = true
		} else {
			if err := p.parseOneLine(userHandlerName, cur, tree, elseBlock, true); err != nil {
				return err
			}
			needEndIf = false
		}
	}

	if needEndIf && cur.IsKeyword(lexer.SubEnd) {
		if err := cur.Advance(); err != nil {
			return err
		}
		if !cur.IsKeyword(lexer.SubIf) {
			return p.errorf(cur.Line(), "Expected \"end if\" here, found %s.", cur.Peek().ShortDescription())
		}
		if err := cur.Advance(); err != nil {
			return err
		}
	}

	block.AddCommand(ifNode)
	return nil
}
