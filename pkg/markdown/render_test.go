package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmpty(t *testing.T) {
	blocks := Render("")
	require.Len(t, blocks, 1)
	assert.Equal(t, Block{Content: "", IsCode: false}, blocks[0])
}

func TestRenderSingleFenceYieldsThreeBlocks(t *testing.T) {
	blocks := Render("before\n```go\nfmt.Println(1)\n```\nafter")
	require.Len(t, blocks, 3)

	assert.False(t, blocks[0].IsCode)
	assert.Equal(t, "before", blocks[0].Content)

	assert.True(t, blocks[1].IsCode)
	assert.Equal(t, "fmt.Println(1)", blocks[1].Content)
	assert.Equal(t, "go", blocks[1].Language)

	assert.False(t, blocks[2].IsCode)
	assert.Equal(t, "after", blocks[2].Content)
}

func TestRenderFenceOnlyKeepsEmptyOuterBlocks(t *testing.T) {
	blocks := Render("```\nx := 1\n```")
	require.Len(t, blocks, 3)
	assert.Equal(t, "", blocks[0].Content)
	assert.Equal(t, Block{Content: "x := 1", IsCode: true}, blocks[1])
	assert.Equal(t, "", blocks[2].Content)
}

func TestRenderTwoFencesKeepOrder(t *testing.T) {
	blocks := Render("a\n```\none\n```\nb\n```sh\ntwo\n```\nc")
	require.Len(t, blocks, 5)
	var got []string
	for _, b := range blocks {
		got = append(got, b.Content)
	}
	assert.Equal(t, []string{"a", "one", "b", "two", "c"}, got)
	assert.Equal(t, "sh", blocks[3].Language)
}

func TestRenderCodeIsVerbatim(t *testing.T) {
	blocks := Render("```\n**not bold** <b>\n```")
	require.Len(t, blocks, 3)
	assert.Equal(t, "**not bold** <b>", blocks[1].Content)
}

func TestRenderHeadingBoldAndInlineCode(t *testing.T) {
	blocks := Render("# Title\n**bold** and `code`")
	require.Len(t, blocks, 1)
	assert.False(t, blocks[0].IsCode)
	assert.Equal(t,
		"<span size='xx-large'><b>Title</b></span>\n"+
			"<b>bold</b> and <span foreground='#bbb' background='#181825'><tt>code</tt></span>",
		blocks[0].Content,
	)

	plain := StripMarkup(blocks[0].Content)
	assert.Equal(t, "Title\nbold and code", plain)
	for _, c := range []string{"#", "*", "`"} {
		assert.NotContains(t, plain, c)
	}
}

func TestRenderLine(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		expected string
	}{
		{"escape", "a < b && c > d", "a &lt; b &amp;&amp; c &gt; d"},
		{"comment", "x <!-- hidden --> y", "x  y"},
		{"bold italic", "***both***", "<b><i>both</i></b>"},
		{"bold", "a **b** c", "a <b>b</b> c"},
		{"italic", "*it*", "<i>it</i>"},
		{"lone asterisks", "2 * 3 * 4", "2 * 3 * 4"},
		{"strikethrough", "~~gone~~", "<s>gone</s>"},
		{"link", "[site](https://x.org)", "<a href='https://x.org'>site</a>"},
		{"h2", "## Sub", "<span size='x-large'><b>Sub</b></span>"},
		{"h3", "### Sub", "<span size='large'><b>Sub</b></span>"},
		{"h6", "###### tiny", "<span size='x-small'><b>tiny</b></span>"},
		{"not a heading", "#hashtag", "#hashtag"},
		{"quote", "> quoted", "<span foreground='#89b4fa'>▎</span> <span foreground='#a6adc8'><i>quoted</i></span>"},
		{
			"code in heading",
			"## use `go test`",
			"<span size='x-large'><b>use <span foreground='#bbb' background='#181825'><tt>go test</tt></span></b></span>",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blocks := Render(tc.in)
			require.Len(t, blocks, 1)
			assert.Equal(t, tc.expected, blocks[0].Content)
		})
	}
}

func TestRenderBullets(t *testing.T) {
	blocks := Render("list:\n* one\n- two")
	require.Len(t, blocks, 1)
	assert.Equal(t, "list:\n • one\n • two", blocks[0].Content)
}

func TestRenderWithTheme(t *testing.T) {
	r := NewRenderer(WithTheme(Theme{CodeForeground: "red", CodeBackground: "$1"}))
	blocks := r.Render("`x`")
	require.Len(t, blocks, 1)
	assert.Equal(t, "<span foreground='red' background='$1'><tt>x</tt></span>", blocks[0].Content)

	blocks = r.Render("> q")
	assert.True(t, strings.HasPrefix(blocks[0].Content, "<span foreground='#89b4fa'>"))
}

func TestStripMarkupUnescapes(t *testing.T) {
	blocks := Render("a < b & c")
	assert.Equal(t, "a < b & c", StripMarkup(blocks[0].Content))
}
