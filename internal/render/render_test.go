package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownBold(t *testing.T) {
	assert.Equal(t, "<p><strong>Hello</strong></p>", Markdown("**Hello**"))
}

func TestMarkdownIsStable(t *testing.T) {
	inputs := []string{
		"**Hello**",
		"## Package 1\n\n- Koh Kradan\n- Night market\n\nTotal: *mid* budget",
		"| Day | Plan |\n|-----|------|\n| 1 | Beach |",
	}
	for _, in := range inputs {
		once := Markdown(in)
		assert.Equal(t, once, Markdown(once), in)
	}
}

func TestMarkdownStructures(t *testing.T) {
	out := Markdown("## Day 1\n\n- Emerald Cave\n- ~~rain~~")
	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "<li>Emerald Cave</li>")
	assert.Contains(t, out, "<del>rain</del>")

	out = Markdown("| a | b |\n|---|---|\n| 1 | 2 |")
	assert.Contains(t, out, "<table>")
}

func TestMarkdownSanitises(t *testing.T) {
	out := Markdown("hello <script>alert(1)</script>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "hello")
}

func TestMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "", Markdown(""))
}
