package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "hello", tp.TruncateText("hello", 100))
	})

	t.Run("zero max disables truncation", func(t *testing.T) {
		long := strings.Repeat("a", 10000)
		assert.Equal(t, long, tp.TruncateText(long, 0))
	})

	t.Run("long text truncated with marker", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		out := tp.TruncateText(long, 10)
		assert.Equal(t, strings.Repeat("a", 10)+"\n[... truncated ...]", out)
	})

	t.Run("multibyte rune never split", func(t *testing.T) {
		// "héllo" with the cut landing in the middle of é's two bytes.
		out := tp.TruncateText("héllo", 2)
		assert.True(t, strings.HasPrefix(out, "h"))
		assert.True(t, strings.HasSuffix(out, "[... truncated ...]"))
	})
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean", tp.SanitizeUTF8("clean"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.ProcessText(strings.Repeat("x", 50)+"\xff", 10)
	assert.Equal(t, strings.Repeat("x", 10)+"\n[... truncated ...]", out)
}
