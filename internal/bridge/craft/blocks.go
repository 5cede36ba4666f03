package craft

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Block is a Craft document block.
type Block struct {
	ID          string  `json:"id,omitempty"`
	Type        string  `json:"type"`
	TextStyle   string  `json:"textStyle,omitempty"`
	ListStyle   string  `json:"listStyle,omitempty"`
	IndentLevel int     `json:"indentationLevel,omitempty"`
	Markdown    string  `json:"markdown"`
	Content     []Block `json:"content,omitempty"`
}

// Position places new blocks relative to an existing page or block.
type Position struct {
	Position string `json:"position"` // before, after, end
	PageID   string `json:"pageId,omitempty"`
	BlockID  string `json:"blockId,omitempty"`
}

// markdownParser is shared; goldmark parsers keep per-call state in the
// reader passed to Parse.
var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// headingStyles maps markdown heading levels to Craft text styles.
var headingStyles = map[int]string{
	1: "title",
	2: "subtitle",
	3: "heading",
}

// MarkdownToBlocks splits a markdown document into top-level Craft blocks.
//
// Headings become styled text blocks, each list item becomes its own bullet
// (or numbered) block, fenced code becomes a code block, and everything else
// keeps its raw markdown in a body text block. Inline markup is preserved
// verbatim in each block's Markdown field. Empty list items are kept so note
// scaffolding survives the round trip.
func MarkdownToBlocks(markdown string) []Block {
	source := []byte(markdown)
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	var blocks []Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = appendNode(blocks, n, source, 0)
	}
	return blocks
}

func appendNode(blocks []Block, n ast.Node, source []byte, indent int) []Block {
	switch node := n.(type) {
	case *ast.Heading:
		style, ok := headingStyles[node.Level]
		if !ok {
			style = "strong"
		}
		return append(blocks, Block{Type: "text", TextStyle: style, Markdown: lines(node, source)})

	case *ast.List:
		listStyle := "bullet"
		if node.IsOrdered() {
			listStyle = "numbered"
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			blocks = append(blocks, Block{
				Type:        "text",
				ListStyle:   listStyle,
				IndentLevel: indent,
				Markdown:    firstLines(item, source),
			})
			// Nested lists become indented siblings.
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				if _, ok := child.(*ast.List); ok {
					blocks = appendNode(blocks, child, source, indent+1)
				}
			}
		}
		return blocks

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return append(blocks, Block{Type: "code", Markdown: lines(n, source)})

	case *ast.ThematicBreak:
		return append(blocks, Block{Type: "line", Markdown: "---"})

	default:
		md := collectLines(n, source)
		if md == "" {
			return blocks
		}
		return append(blocks, Block{Type: "text", Markdown: md})
	}
}

// lines joins the raw source lines of a leaf block.
func lines(n ast.Node, source []byte) string {
	segs := n.Lines()
	parts := make([]string, 0, segs.Len())
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// firstLines returns the text of the first leaf child of a list item.
func firstLines(item ast.Node, source []byte) string {
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Type() == ast.TypeBlock && child.Lines().Len() > 0 {
			return lines(child, source)
		}
	}
	return ""
}

// collectLines gathers the lines of every leaf block below n.
func collectLines(n ast.Node, source []byte) string {
	if n.Lines().Len() > 0 {
		return lines(n, source)
	}
	var parts []string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if s := collectLines(child, source); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
