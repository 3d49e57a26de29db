package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"nbsp", "hello world", "hello world"},
		{"space runs", "too   many \t spaces", "too many spaces"},
		{"newline runs", "para one\n\n\n\npara two", "para one\npara two"},
		{"crlf runs", "line one\r\n\r\nline two", "line one\nline two"},
		{"non printable", "bell\x07char", "bellchar"},
		{"trimmed", "  padded  \n", "padded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}
