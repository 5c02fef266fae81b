package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a contiguous region of a markdown document headed by an H1 or
// H2, carrying the header hierarchy for attribution.
type Section struct {
	Title string // "Installation > Prerequisites"; "" for content before the first header
	Start int
	End   int
}

// Markdown splits markdown documents at H1/H2 boundaries before length-based
// chunking, so each chunk stays inside one titled section.
type Markdown struct {
	parser goldmark.Markdown
}

// NewMarkdown creates a markdown section splitter backed by goldmark.
func NewMarkdown() *Markdown {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Markdown{parser: md}
}

// Sections partitions source into titled sections covering the whole
// document. A document without H1/H2 headers yields a single untitled
// section. Empty source yields no sections.
func (m *Markdown) Sections(source []byte) ([]Section, error) {
	if len(source) == 0 {
		return nil, nil
	}

	reader := text.NewReader(source)
	doc := m.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var marks []Section
	collectMarks(doc, source, tree.Items, nil, &marks)

	if len(marks) == 0 {
		return []Section{{Title: "", Start: 0, End: len(source)}}, nil
	}

	sort.Slice(marks, func(i, j int) bool { return marks[i].Start < marks[j].Start })

	var sections []Section
	if marks[0].Start > 0 {
		sections = append(sections, Section{Title: "", Start: 0, End: marks[0].Start})
	}
	for i, mk := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1].Start
		}
		sections = append(sections, Section{Title: mk.Title, Start: mk.Start, End: end})
	}
	return sections, nil
}

// collectMarks walks the TOC tree recording each header's byte offset and
// its hierarchy title.
func collectMarks(doc ast.Node, source []byte, items toc.Items, ancestors []string, marks *[]Section) {
	for _, item := range items {
		path := append(append([]string{}, ancestors...), string(item.Title))

		header := findHeaderByID(doc, string(item.ID))
		if header != nil && header.Lines().Len() > 0 {
			start := lineStart(source, header.Lines().At(0).Start)
			*marks = append(*marks, Section{
				Title: strings.Join(path, " > "),
				Start: start,
			})
		}

		if len(item.Items) > 0 {
			collectMarks(doc, source, item.Items, path, marks)
		}
	}
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart walks back from a heading's text offset to the beginning of its
// line, so the "#" markers stay with the section they open.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}
