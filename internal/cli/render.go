package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/fetchcache/internal/fetchcache"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// isWriterTerminal reports whether w is a terminal. Buffers in tests are not.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// printer formats counts with thousands separators.
func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

func headerColor() lipgloss.Color { return lipgloss.Color("39") }
func freshColor() lipgloss.Color  { return lipgloss.Color("42") }
func staleColor() lipgloss.Color  { return lipgloss.Color("214") }
func mutedColor() lipgloss.Color  { return lipgloss.Color("240") }

// keyRow is one line of the keys listing.
type keyRow struct {
	Key      string
	State    fetchcache.State
	StoredAt time.Time
	Expires  time.Time
}

func relTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// renderKeys writes rows to w, styled on a terminal and tab-separated
// otherwise.
func renderKeys(w io.Writer, rows []keyRow, now time.Time) error {
	if isWriterTerminal(w) {
		return renderStyledKeys(w, rows, now)
	}
	return renderPlainKeys(w, rows, now)
}

func renderPlainKeys(w io.Writer, rows []keyRow, now time.Time) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Key, r.State, r.StoredAt.Format(time.RFC3339), relTime(r.StoredAt, now)); err != nil {
			return err
		}
	}
	return nil
}

func renderStyledKeys(w io.Writer, rows []keyRow, now time.Time) error {
	keyWidth := len("KEY")
	for _, r := range rows {
		keyWidth = max(keyWidth, len(r.Key))
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(headerColor())
	muted := lipgloss.NewStyle().Foreground(mutedColor())
	keyCol := lipgloss.NewStyle().Width(keyWidth + 2)
	stateCol := lipgloss.NewStyle().Width(8)

	var b strings.Builder
	b.WriteString(header.Render(keyCol.Render("KEY") + stateCol.Render("STATE") + "AGE"))
	b.WriteString("\n")
	for _, r := range rows {
		color := freshColor()
		detail := "expires " + relTime(r.Expires, now)
		if r.State != fetchcache.Fresh {
			color = staleColor()
			detail = "expired " + relTime(r.Expires, now)
		}
		b.WriteString(keyCol.Render(r.Key))
		b.WriteString(stateCol.Foreground(color).Render(r.State.String()))
		b.WriteString(relTime(r.StoredAt, now))
		b.WriteString(muted.Render("  (" + detail + ")"))
		b.WriteString("\n")
	}
	b.WriteString(muted.Render(printer().Sprintf("%d entries", len(rows))))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
