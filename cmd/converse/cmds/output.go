package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/converse/pkg/markdown"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

// BlockPrinter writes rendered blocks to a terminal. Text blocks lose their
// markup; code blocks are highlighted with glamour when the output is a TTY.
type BlockPrinter struct {
	w      io.Writer
	styled bool
}

func NewBlockPrinter(w io.Writer) *BlockPrinter {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd())
	}
	return &BlockPrinter{w: w, styled: styled}
}

func (p *BlockPrinter) Print(blocks []markdown.Block) error {
	for i, b := range blocks {
		if i > 0 && b.Content == "" {
			continue
		}
		var s string
		if b.IsCode {
			s = p.code(b)
		} else {
			s = markdown.StripMarkup(b.Content)
		}
		if s == "" {
			continue
		}
		if _, err := fmt.Fprintln(p.w, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *BlockPrinter) code(b markdown.Block) string {
	if !p.styled {
		return b.Content
	}
	styled, err := glamour.Render("```"+b.Language+"\n"+b.Content+"\n```\n", "dark")
	if err != nil {
		log.Debug().Err(err).Msg("Could not highlight code block")
		return b.Content
	}
	return strings.TrimRight(styled, "\n")
}

// RenderMarkdown styles a whole markdown document for a TTY, and returns it
// unchanged otherwise.
func RenderMarkdown(w io.Writer, md string) string {
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return md
	}
	styled, err := glamour.Render(md, "dark")
	if err != nil {
		log.Debug().Err(err).Msg("Could not style markdown")
		return md
	}
	return styled
}
