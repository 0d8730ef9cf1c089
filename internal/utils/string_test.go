package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateWithEllipsis(t *testing.T) {
	short := strings.Repeat("a", 500)
	assert.Equal(t, short, TruncateWithEllipsis(short, 500))

	long := strings.Repeat("b", 501)
	out := TruncateWithEllipsis(long, 500)
	assert.Equal(t, 503, len(out))
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestTruncateRunes_MultiByte(t *testing.T) {
	assert.Equal(t, "héllo", TruncateRunes("héllo wörld", 5))
	assert.Equal(t, "", TruncateRunes("abc", 0))
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
}

func TestContainsAnyFold(t *testing.T) {
	assert.True(t, ContainsAnyFold("CONGRATULATIONS You Have Won", []string{"congratulations you have won"}))
	assert.False(t, ContainsAnyFold("hello", []string{"bye"}))
}

func TestAppendUnique(t *testing.T) {
	out := AppendUnique([]string{"a@x.com"}, "b@x.com", "a@x.com", "", "b@x.com")
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, out)
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("msg", 12)
	assert.True(t, strings.HasPrefix(id, "msg_"))
	assert.Len(t, id, len("msg_")+12)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "plain text", CleanText("plain text"))
	assert.Equal(t, "hello  world \uFFFD", CleanText("hello \x00 world \xff\xfe"))

	out := CleanText("bad \xff\xfe bytes\x00")
	assert.True(t, utf8.ValidString(out))
	assert.NotContains(t, out, "\x00")
}
