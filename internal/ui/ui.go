// Package ui renders command output for the terminal.
//
// Colors are only emitted when the writer is a terminal; piped output is
// plain ASCII so it stays greppable.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/state"
	"github.com/zotero2craft/zotero2craft/internal/sync"
)

// Theme colors.
var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB74D"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#64B5F6"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9E9E9E"}
)

// UI writes styled output to w.
type UI struct {
	w        io.Writer
	renderer *lipgloss.Renderer

	pass   lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	accent lipgloss.Style
	muted  lipgloss.Style
}

// New creates a UI for w. Color is disabled unless w is a terminal.
func New(w io.Writer) *UI {
	r := lipgloss.NewRenderer(w)
	if !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}

	return &UI{
		w:        w,
		renderer: r,
		pass:     r.NewStyle().Foreground(colorPass),
		warn:     r.NewStyle().Foreground(colorWarn),
		fail:     r.NewStyle().Foreground(colorFail).Bold(true),
		accent:   r.NewStyle().Foreground(colorAccent).Bold(true),
		muted:    r.NewStyle().Foreground(colorMuted),
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (u *UI) Pass(s string) string   { return u.pass.Render(s) }
func (u *UI) Warn(s string) string   { return u.warn.Render(s) }
func (u *UI) Fail(s string) string   { return u.fail.Render(s) }
func (u *UI) Accent(s string) string { return u.accent.Render(s) }
func (u *UI) Muted(s string) string  { return u.muted.Render(s) }

// Printf writes to the underlying writer.
func (u *UI) Printf(format string, args ...any) {
	fmt.Fprintf(u.w, format, args...)
}

// Check renders one connection test line.
func (u *UI) Check(name string, ok bool) string {
	if ok {
		return fmt.Sprintf("%s %-8s %s", u.Pass("✓"), name, u.Pass("connected"))
	}
	return fmt.Sprintf("%s %-8s %s", u.Fail("✗"), name, u.Fail("failed"))
}

// Status renders an outcome status with its color and glyph.
func (u *UI) Status(s sync.Status) string {
	switch s {
	case sync.StatusCreated:
		return u.Pass("✓ created")
	case sync.StatusSkipped:
		return u.Muted("- skipped")
	default:
		return u.Fail("✗ error  ")
	}
}

// Report renders a run report: one line per item and a summary line.
func (u *UI) Report(r *sync.Report) string {
	var b strings.Builder

	if len(r.Outcomes) == 0 {
		b.WriteString(u.Muted("No items in collection.") + "\n")
	}
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("  %s  %s", u.Status(o.Status), o.Title)
		if o.Details != "" && o.Status == sync.StatusError {
			line += "  " + u.Fail(o.Details)
		} else if o.Details != "" {
			line += "  " + u.Muted(o.Details)
		}
		b.WriteString(line + "\n")
	}

	summary := fmt.Sprintf("%d created, %d skipped, %d failed", r.Created, r.Skipped, r.Failed)
	switch {
	case r.Failed > 0:
		summary = u.Warn(summary)
	default:
		summary = u.Pass(summary)
	}
	fmt.Fprintf(&b, "\n%s %s %s\n", u.Accent("Sync complete:"), summary,
		u.Muted(fmt.Sprintf("(%s, run %s)", r.Duration.Round(time.Millisecond), r.RunID)))

	return b.String()
}

// SourceCollections renders Zotero collections as "key  name" lines.
func (u *UI) SourceCollections(cols []bridge.Collection) string {
	if len(cols) == 0 {
		return u.Muted("No collections found.") + "\n"
	}
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "%s  %s\n", u.Accent(c.Key), c.Name)
	}
	return b.String()
}

// SinkCollections renders Craft collections as "id  name  (document)" lines.
func (u *UI) SinkCollections(cols []bridge.SinkCollection) string {
	if len(cols) == 0 {
		return u.Muted("No collections found.") + "\n"
	}
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "%s  %s  %s\n", u.Accent(c.ID), c.Name, u.Muted("(document "+c.ContainerID+")"))
	}
	return b.String()
}

// Record renders the dedup record summary.
func (u *UI) Record(r *state.Record, backend string) string {
	last := "never"
	if r.LastSync != nil {
		last = r.LastSync.Local().Format(time.RFC1123)
	}
	return fmt.Sprintf("%s %s\n%s %d\n%s %s\n",
		u.Accent("Backend:"), backend,
		u.Accent("Processed items:"), len(r.ProcessedKeys),
		u.Accent("Last sync:"), last)
}
