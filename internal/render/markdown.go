package render

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// Markdown renders helpful notes for the terminal. Raw HTML is dropped and
// never interpreted; links keep their text with the destination appended.
func (r *Renderer) Markdown(input string, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	walker := &markdownWalker{source: source, width: width, renderer: r}
	_ = ast.Walk(document, walker.walk)
	return strings.TrimRight(walker.output.String(), "\n")
}

type markdownWalker struct {
	source   []byte
	width    int
	renderer *Renderer

	output strings.Builder
	inline strings.Builder

	indent   int
	bullet   string
	lists    []listState
	bold     int
	italic   int
	strike   int
	trailing int
}

type listState struct {
	ordered bool
	counter int
	tight   bool
}

func (w *markdownWalker) write(s string) {
	if s == "" {
		return
	}
	w.output.WriteString(s)
	n := len(s) - len(strings.TrimRight(s, "\n"))
	if n == len(s) {
		w.trailing += n
	} else {
		w.trailing = n
	}
}

func (w *markdownWalker) blank() {
	if w.output.Len() == 0 {
		return
	}
	for w.trailing < 2 {
		w.write("\n")
	}
}

func (w *markdownWalker) tight() bool {
	return len(w.lists) > 0 && w.lists[len(w.lists)-1].tight
}

func (w *markdownWalker) flush() {
	content := w.inline.String()
	w.inline.Reset()
	if strings.TrimSpace(ansi.Strip(content)) == "" {
		return
	}
	width := w.width - w.indent
	if width < 10 {
		width = 10
	}
	lines := strings.Split(ansi.Wrap(content, width, " ,.;-"), "\n")
	pad := strings.Repeat(" ", w.indent)
	for i, line := range lines {
		prefix := pad
		if i == 0 && w.bullet != "" {
			prefix = strings.Repeat(" ", w.indent-len(w.bullet)) + w.bullet
			w.bullet = ""
		}
		w.write(prefix + line + "\n")
	}
	if !w.tight() {
		w.blank()
	}
}

func (w *markdownWalker) styled(s string) string {
	style := w.renderer.style()
	if w.bold > 0 {
		style = style.Bold(true)
	}
	if w.italic > 0 {
		style = style.Italic(true)
	}
	if w.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(s)
}

func (w *markdownWalker) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			w.inline.Reset()
		} else {
			w.flush()
		}

	case ast.KindHeading:
		if entering {
			w.inline.Reset()
			return ast.WalkContinue, nil
		}
		content := ansi.Strip(w.inline.String())
		w.inline.Reset()
		if content != "" {
			w.blank()
			w.write(w.renderer.style().Bold(true).Foreground(w.renderer.theme.Heading).Render(content) + "\n")
		}

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			w.codeBlock(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			w.indent += 2
		} else {
			w.indent -= 2
		}

	case ast.KindList:
		list := node.(*ast.List)
		if entering {
			start := list.Start
			if start == 0 {
				start = 1
			}
			w.lists = append(w.lists, listState{ordered: list.IsOrdered(), counter: start, tight: list.IsTight})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
			if len(w.lists) == 0 {
				w.blank()
			}
		}

	case ast.KindListItem:
		if len(w.lists) == 0 {
			return ast.WalkContinue, nil
		}
		top := &w.lists[len(w.lists)-1]
		marker := "- "
		if top.ordered {
			marker = strconv.Itoa(top.counter) + ". "
		}
		if entering {
			w.indent += len(marker)
			w.bullet = marker
		} else {
			w.indent -= len(marker)
			top.counter++
		}

	case ast.KindThematicBreak:
		if entering {
			w.blank()
			w.write(w.renderer.faint(strings.Repeat("─", max(w.width-w.indent, 10))) + "\n")
			w.blank()
		}

	case ast.KindHTMLBlock, ast.KindRawHTML:
		return ast.WalkSkipChildren, nil

	case ast.KindText:
		if entering {
			t := node.(*ast.Text)
			w.inline.WriteString(w.styled(string(t.Segment.Value(w.source))))
			if t.SoftLineBreak() || t.HardLineBreak() {
				w.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			w.inline.WriteString(w.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		level := node.(*ast.Emphasis).Level
		delta := 1
		if !entering {
			delta = -1
		}
		if level >= 2 {
			w.bold += delta
		} else {
			w.italic += delta
		}

	case extast.KindStrikethrough:
		if entering {
			w.strike++
		} else {
			w.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if t, ok := child.(*ast.Text); ok {
					code.Write(t.Segment.Value(w.source))
				}
			}
			w.inline.WriteString(w.renderer.code(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			label := w.plain(node)
			dest := string(link.Destination)
			w.inline.WriteString(w.renderer.link(label))
			if dest != "" && dest != label {
				w.inline.WriteString(w.renderer.faint(" (" + dest + ")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			w.inline.WriteString(w.renderer.link(string(node.(*ast.AutoLink).URL(w.source))))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindImage:
		if entering {
			w.inline.WriteString(w.renderer.faint("[image: " + w.plain(node) + "]"))
			return ast.WalkSkipChildren, nil
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				w.inline.WriteString("[x] ")
			} else {
				w.inline.WriteString("[ ] ")
			}
		}
	}
	return ast.WalkContinue, nil
}

// plain collects the unstyled text under node.
func (w *markdownWalker) plain(node ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(w.source))
		case *ast.String:
			b.Write(t.Value)
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func (w *markdownWalker) codeBlock(node ast.Node) {
	var code strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		code.Write(segment.Value(w.source))
	}
	body := strings.TrimRight(code.String(), "\n")
	pad := strings.Repeat(" ", w.indent+2)
	w.blank()
	for _, line := range strings.Split(body, "\n") {
		w.write(pad + w.renderer.code(line) + "\n")
	}
	w.blank()
}
