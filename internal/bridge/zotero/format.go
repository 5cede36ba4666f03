package zotero

import (
	"regexp"
	"strings"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

// UnknownAuthor is used when an item has no creators.
const UnknownAuthor = "Unknown Author"

var yearPattern = regexp.MustCompile(`\d{4}`)

// FormatAuthors joins creator display names with ", ".
//
// A creator's display name is its Name field if set, otherwise the trimmed
// "FirstName LastName". An empty creator list yields UnknownAuthor.
func FormatAuthors(creators []bridge.Creator) string {
	if len(creators) == 0 {
		return UnknownAuthor
	}

	names := make([]string, 0, len(creators))
	for _, c := range creators {
		if c.Name != "" {
			names = append(names, c.Name)
			continue
		}
		names = append(names, strings.TrimSpace(c.FirstName+" "+c.LastName))
	}
	return strings.Join(names, ", ")
}

// ExtractYear returns the first run of four digits in date, the raw string
// when there is none, or "" for an empty date.
//
//	ExtractYear("2023-05-10")  == "2023"
//	ExtractYear("circa 1990s") == "1990"
//	ExtractYear("Spring")      == "Spring"
func ExtractYear(date string) string {
	if date == "" {
		return ""
	}
	if m := yearPattern.FindString(date); m != "" {
		return m
	}
	return date
}
