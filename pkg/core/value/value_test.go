package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	require.True(t, NewInt(5).Equal(NewInt(5)))
	require.False(t, NewInt(5).Equal(NewInt(6)))
	require.False(t, NewInt(1).Equal(NewBool(true)))
	require.True(t, NewString("a").Equal(NewString("a")))
	require.True(t, NewFloat(2.5).Equal(NewFloat(2.5)))
}

func TestString(t *testing.T) {
	require.Equal(t, "5", NewInt(5).String())
	require.Equal(t, "true", NewBool(true).String())
	require.Equal(t, "2.5", NewFloat(2.5).String())
	require.Equal(t, `"hi"`, NewString("hi").String())
	require.Equal(t, "void", Value{}.String())
}
