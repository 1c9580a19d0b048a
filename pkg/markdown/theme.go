package markdown

import (
	"html"
	"regexp"
	"strings"
)

// Theme holds the colors the renderer writes into generated markup.
type Theme struct {
	QuoteIndicator  string `mapstructure:"quote_indicator" yaml:"quote_indicator"`
	QuoteForeground string `mapstructure:"quote_foreground" yaml:"quote_foreground"`
	CodeForeground  string `mapstructure:"code_foreground" yaml:"code_foreground"`
	CodeBackground  string `mapstructure:"code_background" yaml:"code_background"`
}

func DefaultTheme() Theme {
	return Theme{
		QuoteIndicator:  "#89b4fa",
		QuoteForeground: "#a6adc8",
		CodeForeground:  "#bbb",
		CodeBackground:  "#181825",
	}
}

func (t Theme) withDefaults() Theme {
	d := DefaultTheme()
	if t.QuoteIndicator == "" {
		t.QuoteIndicator = d.QuoteIndicator
	}
	if t.QuoteForeground == "" {
		t.QuoteForeground = d.QuoteForeground
	}
	if t.CodeForeground == "" {
		t.CodeForeground = d.CodeForeground
	}
	if t.CodeBackground == "" {
		t.CodeBackground = d.CodeBackground
	}
	return t
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripMarkup turns rendered markup back into plain text, for terminals that
// cannot display it. Every literal < and > was escaped by the renderer, so any
// remaining angle bracket pair is a tag.
func StripMarkup(markup string) string {
	plain := tagPattern.ReplaceAllString(markup, "")
	return strings.TrimSpace(html.UnescapeString(plain))
}
