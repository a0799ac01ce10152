package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateBytes(t *testing.T) {
	out, cut := TruncateBytes("hello", 10)
	assert.Equal(t, "hello", out)
	assert.False(t, cut)

	out, cut = TruncateBytes("hello world", 5)
	assert.Equal(t, "hello"+TruncatedMarker, out)
	assert.True(t, cut)

	// "é" is two bytes; cutting inside it backs off to the rune start.
	out, cut = TruncateBytes("aé", 2)
	assert.Equal(t, "a"+TruncatedMarker, out)
	assert.True(t, cut)

	out, cut = TruncateBytes("anything", 0)
	assert.Equal(t, "anything", out)
	assert.False(t, cut)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "你好...", TruncateRunes("你好世界", 2))
	assert.Equal(t, "你好", TruncateRunes("你好", 2))
	assert.Equal(t, "abc", TruncateRunes("abc", 0))
}
