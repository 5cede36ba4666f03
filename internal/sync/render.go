package sync

import (
	"regexp"
	"strings"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/bridge/zotero"
)

// Placeholders used while rendering.
const (
	UntitledPlaceholder        = "Untitled"
	DisabledSummaryPlaceholder = "_AI summary disabled._"
)

// scaffoldSections follow the Summary section, each with one empty bullet.
var scaffoldSections = []string{"Key Ideas", "Quotes", "Critique", "Related Work"}

// whitespaceRun matches runs of any Unicode space, including no-break and
// ideographic spaces.
var whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)

// Fields are the rendering inputs derived from a source item.
type Fields struct {
	Title    string
	Authors  string
	Year     string
	Journal  string
	Link     string
	Tags     []string
	Abstract string
}

// Note is a rendered document ready for submission.
type Note struct {
	Title string
	Body  string
	Tags  []string
}

// DisplayTitle returns title, or UntitledPlaceholder when it is empty.
func DisplayTitle(title string) string {
	if title == "" {
		return UntitledPlaceholder
	}
	return title
}

// FormatTag renders a source tag as "#tag" with whitespace runs replaced
// by underscores.
//
//	FormatTag("machine learning") == "#machine_learning"
func FormatTag(tag string) string {
	return "#" + whitespaceRun.ReplaceAllString(tag, "_")
}

// Transform derives the rendering fields from item.
func Transform(item *bridge.Item) Fields {
	tags := make([]string, 0, len(item.Tags))
	for _, t := range item.Tags {
		tags = append(tags, FormatTag(t.Tag))
	}

	return Fields{
		Title:    DisplayTitle(item.Title),
		Authors:  zotero.FormatAuthors(item.Creators),
		Year:     zotero.ExtractYear(item.Date),
		Journal:  item.PublicationTitle,
		Link:     item.Link(),
		Tags:     tags,
		Abstract: item.AbstractNote,
	}
}

// Render assembles the note body: the metadata block, the Summary section
// and the empty scaffold sections.
func Render(f Fields, summary string) Note {
	var b strings.Builder

	b.WriteString("**Authors:** " + f.Authors + "\n")
	b.WriteString("**Year:** " + f.Year + "\n")
	b.WriteString("**Journal:** " + f.Journal + "\n")
	b.WriteString("**Link:** " + f.Link + "\n")
	b.WriteString("**Tags:** " + strings.Join(f.Tags, " ") + "\n")

	b.WriteString("\n## Summary\n")
	b.WriteString(summary + "\n")

	for _, section := range scaffoldSections {
		b.WriteString("\n## " + section + "\n")
		b.WriteString("- \n")
	}

	return Note{
		Title: f.Title,
		Body:  b.String(),
		Tags:  f.Tags,
	}
}
