package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanKeywordsCaseInsensitive(t *testing.T) {
	toks, err := NewScanner([]byte("PUT x INTO y")).ScanAll()
	require.NoError(t, err)

	require.Len(t, toks, 5) // put x into y \n
	require.Equal(t, SubPut, toks[0].Subtype)
	require.Equal(t, "PUT", toks[0].Text)
	require.Equal(t, "put", toks[0].Normalized)
	require.Equal(t, SubNoKeyword, toks[1].Subtype)
	require.Equal(t, SubInto, toks[2].Subtype)
	require.Equal(t, SubNewline, toks[4].Subtype)
}

func TestScanStringEscapes(t *testing.T) {
	toks, err := NewScanner([]byte(`put "a\tb\"c"`)).ScanAll()
	require.NoError(t, err)
	require.Equal(t, KindString, toks[1].Kind)
	require.Equal(t, "a\tb\"c", toks[1].StringValue)
}

func TestScanNumbersAndPunctuation(t *testing.T) {
	toks, err := NewScanner([]byte("3 + 4.25")).ScanAll()
	require.NoError(t, err)

	require.Equal(t, KindNumber, toks[0].Kind)
	require.Equal(t, int64(3), toks[0].NumberValue)
	require.Equal(t, SubPlus, toks[1].Subtype)
	// The scanner emits integer / period / integer; the parser glues
	// floats together.
	require.Equal(t, int64(4), toks[2].NumberValue)
	require.Equal(t, SubPeriod, toks[3].Subtype)
	require.Equal(t, int64(25), toks[4].NumberValue)
}

func TestScanLineNumbersAndComments(t *testing.T) {
	src := "put 1\n-- a comment\nput 2\n"
	toks, err := NewScanner([]byte(src)).ScanAll()
	require.NoError(t, err)

	var lines []int
	for _, tok := range toks {
		if tok.IsKeyword(SubPut) {
			lines = append(lines, tok.Line)
		}
	}
	require.Equal(t, []int{1, 3}, lines)
}

func TestScanAppendsFinalNewline(t *testing.T) {
	toks, err := NewScanner([]byte("put 1")).ScanAll()
	require.NoError(t, err)
	require.Equal(t, SubNewline, toks[len(toks)-1].Subtype)
}

func TestScanUnterminatedString(t *testing.T) {
	_, err := NewScanner([]byte("put \"oops")).ScanAll()
	require.Error(t, err)
}

func TestScanTwoCharOperatorsStaySplit(t *testing.T) {
	toks, err := NewScanner([]byte("a <= b && c")).ScanAll()
	require.NoError(t, err)

	var subs []Subtype
	for _, tok := range toks[:7] {
		subs = append(subs, tok.Subtype)
	}
	require.Equal(t, []Subtype{
		SubNoKeyword, SubLessThan, SubEquals, SubNoKeyword,
		SubAmpersand, SubAmpersand, SubNoKeyword,
	}, subs)
}
