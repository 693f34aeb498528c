package levenshtein_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/gitport/pkg/levenshtein"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "identical", a: "jdoe", b: "jdoe", want: 0},
		{name: "empty against word", a: "", b: "jane", want: 4},
		{name: "word against empty", a: "jane", b: "", want: 4},
		{name: "single substitution", a: "jdoe", b: "jdoa", want: 1},
		{name: "insertion", a: "doe", b: "jdoe", want: 1},
		{name: "deletion", a: "jdoe", b: "joe", want: 1},
		{name: "transposition costs two", a: "jdoe", b: "djoe", want: 2},
		{name: "unrelated names", a: "alice", b: "bob", want: 5},
		{name: "unicode runes", a: "müller", b: "mueller", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := &levenshtein.Context{}
			assert.Equal(t, tt.want, ctx.Distance(tt.a, tt.b))
		})
	}
}

func TestDistanceContextReuse(t *testing.T) {
	t.Parallel()

	ctx := &levenshtein.Context{}

	assert.Equal(t, 3, ctx.Distance("kitten", "sitting"))
	// A shorter pair after a longer one must not read stale column state.
	assert.Equal(t, 1, ctx.Distance("ab", "ac"))
	assert.Equal(t, 0, ctx.Distance("", ""))
}
