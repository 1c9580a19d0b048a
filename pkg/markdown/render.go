// Package markdown turns raw model output into an ordered list of blocks that a
// front-end can display. Text blocks carry Pango-style markup, code blocks carry
// the verbatim fenced content.
//
// This is a line oriented substitution pipeline, not a markdown parser. Each rule
// runs once per line, in a fixed order, and later rules see the output of earlier
// ones. There is no nesting of emphasis and no list structure.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

type Block struct {
	Content  string `json:"content" yaml:"content"`
	IsCode   bool   `json:"is_code" yaml:"is_code"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

type substitution struct {
	re   *regexp.Regexp
	repl string
}

func sub(pattern, repl string) substitution {
	return substitution{re: regexp.MustCompile(pattern), repl: repl}
}

var fencePattern = regexp.MustCompile("(?s)```.*?```")

// escapes run before any styling so generated tags are never escaped again.
// Comments are stripped after & is escaped but before < and > are.
var escapes = []substitution{
	sub(`&`, "&amp;"),
	sub(`<!--.*?-->`, ""),
	sub(`<`, "&lt;"),
	sub(`>`, "&gt;"),
}

// styles is ordered. Headings go from six hashes down to one.
var styles = []substitution{
	sub(`^(\s*)[*+-]\s+`, "${1} • "),
	sub(`\*\*\*(.+?)\*\*\*`, "<b><i>${1}</i></b>"),
	sub(`\*\*(.+?)\*\*`, "<b>${1}</b>"),
	sub(`\*([^*\s][^*]*?)\*`, "<i>${1}</i>"),
	sub(`~~(.+?)~~`, "<s>${1}</s>"),
	sub(`\[([^\]]*)\]\(([^)]*)\)`, "<a href='${2}'>${1}</a>"),
	sub(`^######\s+(.*)$`, "<span size='x-small'><b>${1}</b></span>"),
	sub(`^#####\s+(.*)$`, "<span size='small'><b>${1}</b></span>"),
	sub(`^####\s+(.*)$`, "<span size='medium'><b>${1}</b></span>"),
	sub(`^###\s+(.*)$`, "<span size='large'><b>${1}</b></span>"),
	sub(`^##\s+(.*)$`, "<span size='x-large'><b>${1}</b></span>"),
	sub(`^#\s+(.*)$`, "<span size='xx-large'><b>${1}</b></span>"),
}

var (
	quotePattern      = regexp.MustCompile(`^\s*&gt;\s?(.*)$`)
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
	fenceOpenPattern  = regexp.MustCompile("^```([^\n`]*)")
)

const quoteGlyph = "▎"

// Renderer renders text with a fixed Theme.
type Renderer struct {
	theme      Theme
	quoteRepl  string
	inlineRepl string
}

type Option func(*Renderer)

func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme.withDefaults()
	}
}

func NewRenderer(options ...Option) *Renderer {
	r := &Renderer{theme: DefaultTheme()}
	for _, o := range options {
		o(r)
	}
	r.quoteRepl = fmt.Sprintf(
		"<span foreground='%s'>%s</span> <span foreground='%s'><i>${1}</i></span>",
		escapeRepl(r.theme.QuoteIndicator), quoteGlyph, escapeRepl(r.theme.QuoteForeground),
	)
	r.inlineRepl = fmt.Sprintf(
		"<span foreground='%s' background='%s'><tt>${1}</tt></span>",
		escapeRepl(r.theme.CodeForeground), escapeRepl(r.theme.CodeBackground),
	)
	return r
}

// Render renders text with the default theme.
func Render(text string) []Block {
	return NewRenderer().Render(text)
}

// Render splits text at fenced code spans and returns the segments in order.
// The result always holds at least one block.
func (r *Renderer) Render(text string) []Block {
	blocks := []Block{}
	last := 0
	for _, loc := range fencePattern.FindAllStringIndex(text, -1) {
		blocks = append(blocks, r.textBlock(text[last:loc[0]]))
		blocks = append(blocks, codeBlock(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	blocks = append(blocks, r.textBlock(text[last:]))
	return blocks
}

func (r *Renderer) textBlock(segment string) Block {
	lines := strings.Split(segment, "\n")
	for i, line := range lines {
		lines[i] = r.renderLine(line)
	}
	return Block{Content: strings.TrimSpace(strings.Join(lines, "\n"))}
}

func (r *Renderer) renderLine(line string) string {
	for _, s := range escapes {
		line = s.re.ReplaceAllString(line, s.repl)
	}
	for _, s := range styles {
		line = s.re.ReplaceAllString(line, s.repl)
	}
	line = quotePattern.ReplaceAllString(line, r.quoteRepl)
	line = inlineCodePattern.ReplaceAllString(line, r.inlineRepl)
	return line
}

func codeBlock(fenced string) Block {
	inner := strings.TrimSuffix(strings.TrimPrefix(fenced, "```"), "```")
	if !strings.Contains(inner, "\n") {
		return Block{Content: strings.TrimSpace(inner), IsCode: true}
	}
	lang := ""
	if m := fenceOpenPattern.FindStringSubmatch(fenced); m != nil {
		lang = strings.TrimSpace(m[1])
	}
	// drop the rest of the opening fence line
	inner = inner[strings.Index(inner, "\n")+1:]
	return Block{Content: strings.TrimSpace(inner), IsCode: true, Language: lang}
}

// escapeRepl protects theme values from regexp template expansion.
func escapeRepl(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
