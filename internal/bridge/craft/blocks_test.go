package craft

import (
	"strings"
	"testing"
)

func TestMarkdownToBlocksNoteTemplate(t *testing.T) {
	body := `**Authors:** A. Smith, J. Doe
**Year:** 2023
**Journal:** Nature
**Link:** https://example.org
**Tags:** #machine_learning

## Summary
_AI summary disabled._

## Key Ideas
-

## Quotes
-
`
	blocks := MarkdownToBlocks(body)

	want := []Block{
		{Type: "text", Markdown: "**Authors:** A. Smith, J. Doe\n**Year:** 2023\n**Journal:** Nature\n**Link:** https://example.org\n**Tags:** #machine_learning"},
		{Type: "text", TextStyle: "subtitle", Markdown: "Summary"},
		{Type: "text", Markdown: "_AI summary disabled._"},
		{Type: "text", TextStyle: "subtitle", Markdown: "Key Ideas"},
		{Type: "text", ListStyle: "bullet", Markdown: ""},
		{Type: "text", TextStyle: "subtitle", Markdown: "Quotes"},
		{Type: "text", ListStyle: "bullet", Markdown: ""},
	}

	if len(blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(blocks), len(want), blocks)
	}
	for i := range want {
		got := blocks[i]
		if got.Type != want[i].Type || got.TextStyle != want[i].TextStyle ||
			got.ListStyle != want[i].ListStyle || got.Markdown != want[i].Markdown {
			t.Errorf("block %d = %+v, want %+v", i, got, want[i])
		}
	}
}

func TestMarkdownToBlocksLists(t *testing.T) {
	body := `1. first **bold**
2. second
   - nested

` + "```go\nfmt.Println(1)\n```\n"

	blocks := MarkdownToBlocks(body)
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4: %+v", len(blocks), blocks)
	}

	if blocks[0].ListStyle != "numbered" || blocks[0].Markdown != "first **bold**" {
		t.Errorf("unexpected first item %+v", blocks[0])
	}
	if blocks[1].ListStyle != "numbered" || blocks[1].Markdown != "second" {
		t.Errorf("unexpected second item %+v", blocks[1])
	}
	if blocks[2].ListStyle != "bullet" || blocks[2].IndentLevel != 1 || blocks[2].Markdown != "nested" {
		t.Errorf("unexpected nested item %+v", blocks[2])
	}
	if blocks[3].Type != "code" || !strings.Contains(blocks[3].Markdown, "fmt.Println(1)") {
		t.Errorf("unexpected code block %+v", blocks[3])
	}
}

func TestMarkdownToBlocksEmpty(t *testing.T) {
	if blocks := MarkdownToBlocks(""); len(blocks) != 0 {
		t.Errorf("expected no blocks, got %+v", blocks)
	}
}
