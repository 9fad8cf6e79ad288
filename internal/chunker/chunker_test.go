package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSplitEmptyTextYieldsNoChunks(t *testing.T) {
	t.Parallel()

	require.Empty(t, Split("", 1000))
	require.Empty(t, New(0).Split(""))
}

func TestSplitWindowSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		length    int
		size      int
		wantCount int
		wantLast  int
	}{
		{name: "shorter than window", length: 10, size: 1000, wantCount: 1, wantLast: 10},
		{name: "exact multiple", length: 3000, size: 1000, wantCount: 3, wantLast: 1000},
		{name: "policy document", length: 2500, size: 1000, wantCount: 3, wantLast: 500},
		{name: "size one", length: 4, size: 1, wantCount: 4, wantLast: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text := strings.Repeat("a", tt.length)
			chunks := Split(text, tt.size)
			require.Len(t, chunks, tt.wantCount)
			require.Equal(t, tt.wantLast, utf8.RuneCountInString(chunks[len(chunks)-1]))
		})
	}
}

func TestSplitReassemblesAndKeepsFullWindows(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"The refund window is thirty days from delivery. ",
		strings.Repeat("Política de reembolso: 30 días. ", 97),
		strings.Repeat("日本語のテキスト", 333),
		"emoji 😀 split 😀 across 😀 windows",
	}
	sizes := []int{1, 3, 7, 100, 1000}

	for _, text := range inputs {
		for _, size := range sizes {
			chunks := Split(text, size)
			require.Equal(t, text, strings.Join(chunks, ""), "size %d", size)
			for i, chunk := range chunks {
				require.True(t, utf8.ValidString(chunk), "chunk %d is not valid utf-8", i)
				if i < len(chunks)-1 {
					require.Equal(t, size, utf8.RuneCountInString(chunk), "chunk %d of size %d", i, size)
				}
			}
		}
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("deterministic chunking ", 200)
	require.Equal(t, Split(text, 333), Split(text, 333))
}

func TestNewDefaultsSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultSize, New(-5).Size)
	require.Equal(t, 250, New(250).Size)
	require.Len(t, Split(strings.Repeat("x", 2001), 0), 3)
}
