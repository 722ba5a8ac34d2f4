package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func tokensFor(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewScanner([]byte(src)).ScanAll()
	require.NoError(t, err)
	return toks
}

func TestCursorAdvanceRetreat(t *testing.T) {
	cur := NewCursor("test.talk", tokensFor(t, "put 1 into x"))

	require.True(t, cur.IsKeyword(SubPut))
	require.NoError(t, cur.Advance())
	require.Equal(t, KindNumber, cur.Peek().Kind)
	cur.Retreat()
	require.True(t, cur.IsKeyword(SubPut))
}

func TestCursorAdvancePastEndIsFatal(t *testing.T) {
	cur := NewCursor("test.talk", tokensFor(t, "put"))
	require.NoError(t, cur.Advance()) // put
	require.NoError(t, cur.Advance()) // trailing newline
	require.True(t, cur.AtEnd())

	err := cur.Advance()
	require.Error(t, err)
	require.Contains(t, err.Error(), "test.talk:1:")
	require.Contains(t, err.Error(), "premature end of script")
}

func TestCursorPeekPastEnd(t *testing.T) {
	cur := NewCursor("test.talk", tokensFor(t, "put"))
	require.NoError(t, cur.Advance())
	require.NoError(t, cur.Advance())

	eof := cur.Peek()
	require.Equal(t, KindEOF, eof.Kind)
	require.Equal(t, "end of script", eof.ShortDescription())
	require.Equal(t, 1, eof.Line)
}

func TestCursorExpectKeyword(t *testing.T) {
	cur := NewCursor("greet.talk", tokensFor(t, "put 5"))

	require.NoError(t, cur.ExpectKeyword(SubPut))

	err := cur.ExpectKeyword(SubInto)
	require.Error(t, err)
	msg := err.Error()
	require.True(t, strings.HasPrefix(msg, "greet.talk:1: error:"), msg)
	require.Contains(t, msg, `"into"`)
	require.Contains(t, msg, `"put"`)
}

func TestCursorSeek(t *testing.T) {
	cur := NewCursor("test.talk", tokensFor(t, "a b c"))
	mark := cur.Pos()
	require.NoError(t, cur.Advance())
	require.NoError(t, cur.Advance())
	cur.SeekTo(mark)
	require.Equal(t, "a", cur.Peek().Text)
}
