package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	svc := NewService(WithHardWraps())

	tests := []struct {
		name     string
		source   string
		contains []string
		excludes []string
	}{
		{
			name:     "emphasis",
			source:   "Use **recursion** with a *base case*.",
			contains: []string{"<strong>recursion</strong>", "<em>base case</em>"},
		},
		{
			name:     "fenced code",
			source:   "```go\nfunc f() {}\n```",
			contains: []string{`<code class="language-go">`, "func f() {}"},
		},
		{
			name:     "table",
			source:   "| n | f(n) |\n|---|---|\n| 0 | 1 |",
			contains: []string{"<table>", "<td>0</td>"},
		},
		{
			name:     "strikethrough",
			source:   "~~wrong~~ right",
			contains: []string{"<del>wrong</del>"},
		},
		{
			name:     "raw html is dropped",
			source:   "before <script>alert(1)</script> after",
			excludes: []string{"<script>"},
		},
		{
			name:     "javascript links are neutralized",
			source:   "[click](javascript:alert(1))",
			excludes: []string{"javascript:"},
		},
		{
			name:     "hard wraps",
			source:   "line one\nline two",
			contains: []string{"line one<br>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.RenderHTML([]byte(tt.source))
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestHeadingID(t *testing.T) {
	out, err := NewService(WithHeadingID()).RenderHTML([]byte("## Base case"))
	require.NoError(t, err)
	assert.Contains(t, out, `<h2 id="base-case">`)
}
