package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeClasses(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"trims and lowercases", []string{" CSE-A ", "ece-B"}, []string{"cse-a", "ece-b"}},
		{"drops empties", []string{"", "  ", "cse-a"}, []string{"cse-a"}},
		{"dedupes case-insensitively", []string{"CSE-A", "cse-a", " Cse-A"}, []string{"cse-a"}},
		{"empty input", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeClasses(tt.in))
		})
	}
}

func TestParseAndJoinClasses(t *testing.T) {
	assert.Equal(t, []string{"cse-a", "ece-b"}, ParseClasses(" CSE-A , ece-b ,"))
	assert.Equal(t, "cse-a,ece-b", JoinClasses([]string{" CSE-A ", "ECE-B", "cse-a"}))
}

func TestHasClass(t *testing.T) {
	st := Student{Classes: []string{"cse-a", "ece-b"}}
	assert.True(t, st.HasClass("CSE-A"))
	assert.True(t, st.HasClass("  ece-b "))
	assert.False(t, st.HasClass("cse-b"))
	assert.False(t, st.HasClass(""))
}
