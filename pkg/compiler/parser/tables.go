package parser

import (
	"math"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
)

// operatorEntry describes one binary operator: its token (or token
// pair), precedence, the instruction symbol it lowers to, and the
// subtype naming the operator (parseOperator does not read it).
type operatorEntry struct {
	typ        lexer.Subtype
	secondTyp  lexer.Subtype // SubNoKeyword for single-token operators
	precedence int
	symbol     string
	result     lexer.Subtype
}

// operators is ordered so that two-token operators are tried before the
// single-token operator sharing their first token. Higher precedence
// binds tighter.
var operators = []operatorEntry{
	{lexer.SubAnd, lexer.SubNoKeyword, 100, "vcy_op_and", lexer.SubAnd},
	{lexer.SubOr, lexer.SubNoKeyword, 100, "vcy_op_or", lexer.SubOr},
	{lexer.SubLessThan, lexer.SubGreaterThan, 200, "vcy_cmp_ne", lexer.SubNotEqual},
	{lexer.SubLessThan, lexer.SubEquals, 200, "vcy_cmp_le", lexer.SubLessThanEqual},
	{lexer.SubLessThan, lexer.SubNoKeyword, 200, "vcy_cmp_lt", lexer.SubLessThan},
	{lexer.SubGreaterThan, lexer.SubEquals, 200, "vcy_cmp_ge", lexer.SubGreaterThanEqual},
	{lexer.SubGreaterThan, lexer.SubNoKeyword, 200, "vcy_cmp_gt", lexer.SubGreaterThan},
	{lexer.SubEquals, lexer.SubNoKeyword, 200, "vcy_cmp", lexer.SubEquals},
	{lexer.SubIs, lexer.SubNot, 200, "vcy_cmp_ne", lexer.SubNotEqual},
	{lexer.SubIs, lexer.SubNoKeyword, 200, "vcy_cmp", lexer.SubEquals},
	{lexer.SubAmpersand, lexer.SubAmpersand, 300, "vcy_cat_space", lexer.SubDoubleAmpersand},
	{lexer.SubAmpersand, lexer.SubNoKeyword, 300, "vcy_cat", lexer.SubAmpersand},
	{lexer.SubPlus, lexer.SubNoKeyword, 500, "vcy_add", lexer.SubPlus},
	{lexer.SubMinus, lexer.SubNoKeyword, 500, "vcy_sub", lexer.SubMinus},
	{lexer.SubStar, lexer.SubNoKeyword, 1000, "vcy_mul", lexer.SubStar},
	{lexer.SubSlash, lexer.SubNoKeyword, 1000, "vcy_div", lexer.SubSlash},
	{lexer.SubMod, lexer.SubNoKeyword, 1000, "vcy_mod", lexer.SubModulo},
	{lexer.SubModulo, lexer.SubNoKeyword, 1000, "vcy_mod", lexer.SubModulo},
	{lexer.SubCaret, lexer.SubNoKeyword, 1100, "vcy_pow", lexer.SubCaret},
}

// unaryOperators bind tighter than any binary operator and are handled
// at term level.
var unaryOperators = map[lexer.Subtype]string{
	lexer.SubNot:   "vcy_not",
	lexer.SubMinus: "vcy_neg",
}

// chunkTypeEntry maps a chunk noun (and its plural) to the runtime
// chunk-type constant.
type chunkTypeEntry struct {
	typ    lexer.Subtype
	plural lexer.Subtype
	chunk  ast.ChunkType
}

var chunkTypes = []chunkTypeEntry{
	{lexer.SubChar, lexer.SubChars, ast.ChunkCharacter},
	{lexer.SubCharacter, lexer.SubCharacters, ast.ChunkCharacter},
	{lexer.SubLine, lexer.SubLines, ast.ChunkLine},
	{lexer.SubItem, lexer.SubItems, ast.ChunkItem},
	{lexer.SubWord, lexer.SubWords, ast.ChunkWord},
}

// chunkTypeForSubtype returns the chunk constant for a chunk noun, or
// ChunkInvalid when the subtype is not a chunk noun.
func chunkTypeForSubtype(sub lexer.Subtype) ast.ChunkType {
	for _, entry := range chunkTypes {
		if sub == entry.typ || sub == entry.plural {
			return entry.chunk
		}
	}
	return ast.ChunkInvalid
}

// constantEntry builds the literal node a keyword constant stands for.
type constantEntry struct {
	typ  lexer.Subtype
	make func(t *ast.Tree, line int) ast.ValueNode
}

func stringConstant(s string) func(t *ast.Tree, line int) ast.ValueNode {
	return func(t *ast.Tree, line int) ast.ValueNode { return t.NewStringValue(s, line) }
}

var constants = []constantEntry{
	{lexer.SubTrue, func(t *ast.Tree, line int) ast.ValueNode { return t.NewBoolValue(true, line) }},
	{lexer.SubFalse, func(t *ast.Tree, line int) ast.ValueNode { return t.NewBoolValue(false, line) }},
	{lexer.SubEmpty, stringConstant("")},
	{lexer.SubCommaWord, stringConstant(",")},
	{lexer.SubColonWord, stringConstant(":")},
	{lexer.SubCr, stringConstant("\r")},
	{lexer.SubLineFeed, stringConstant("\n")},
	{lexer.SubNull, stringConstant("\x00")},
	{lexer.SubQuote, stringConstant("\"")},
	{lexer.SubReturn, stringConstant("\r")},
	{lexer.SubNewlineWord, stringConstant("\n")},
	{lexer.SubSpace, stringConstant(" ")},
	{lexer.SubTab, stringConstant("\t")},
	{lexer.SubPi, func(t *ast.Tree, line int) ast.ValueNode { return t.NewFloatValue(math.Pi, line) }},
}

func constantForSubtype(sub lexer.Subtype) func(t *ast.Tree, line int) ast.ValueNode {
	for _, entry := range constants {
		if entry.typ == sub {
			return entry.make
		}
	}
	return nil
}

// globalPropertyEntry maps a property keyword to the shared global
// variable backing it and to its getter/setter instruction symbols.
type globalPropertyEntry struct {
	typ     lexer.Subtype
	varName string
	getter  string
	setter  string
}

var globalProperties = []globalPropertyEntry{
	{lexer.SubItemDel, "gItemDel", "vcy_get_itemdel", "vcy_set_itemdel"},
	{lexer.SubItemDelim, "gItemDel", "vcy_get_itemdel", "vcy_set_itemdel"},
	{lexer.SubItemDelimiter, "gItemDel", "vcy_get_itemdel", "vcy_set_itemdel"},
}

func globalPropertyForSubtype(sub lexer.Subtype) *globalPropertyEntry {
	for i := range globalProperties {
		if globalProperties[i].typ == sub {
			return &globalProperties[i]
		}
	}
	return nil
}

// systemConstants maps native system constant names to their integer
// values. The native-header loader that used to populate it is gone, so
// it stays empty; the term parser still consults it.
var systemConstants = map[string]int64{}
