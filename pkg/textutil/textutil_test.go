package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/echobell/echobell/pkg/textutil"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hi this is fedex", textutil.Normalize("  hi\tthis  is\nfedex \n"))
	assert.Equal(t, "", textutil.Normalize(" \n\t "))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, textutil.IsBlank(""))
	assert.True(t, textutil.IsBlank(" \t\n"))
	assert.False(t, textutil.IsBlank(" x "))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 5, "hello..."},
		{"multibyte", "héllo wörld", 4, "héll..."},
		{"zero", "hello", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textutil.Truncate(tt.in, tt.n))
		})
	}
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "the police...", textutil.TruncateWords("the police officer is here", 14))
	assert.Equal(t, "short", textutil.TruncateWords("short", 14))
}
