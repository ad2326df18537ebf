package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crateship/internal/release"
)

var (
	confirmTitleStyle = lipgloss.NewStyle().Bold(true)
	packageStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	versionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// confirmPrompt returns the interactive confirmation used by the pipeline:
// print the planned version moves and read a y/N answer.
func confirmPrompt(out io.Writer, in io.Reader) func(plans []*release.Plan) bool {
	return func(plans []*release.Plan) bool {
		fmt.Fprintln(out, renderPreview(plans))

		var releasing int
		for _, p := range plans {
			if p.Releasing() {
				releasing++
			}
		}
		if releasing == 1 {
			fmt.Fprint(out, "Release this package? [y/N] ")
		} else {
			fmt.Fprintf(out, "Release these %d packages? [y/N] ", releasing)
		}

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// renderPreview formats the package -> version decisions.
func renderPreview(plans []*release.Plan) string {
	var b strings.Builder
	b.WriteString(confirmTitleStyle.Render("Planned releases"))
	b.WriteString("\n")
	for _, p := range plans {
		if !p.Releasing() {
			b.WriteString(fmt.Sprintf("  %s %s\n",
				packageStyle.Render(p.Member.Name),
				mutedStyle.Render("(no release needed)")))
			continue
		}
		line := fmt.Sprintf("  %s %s -> %s",
			packageStyle.Render(p.Member.Name),
			p.PrevVersion.String(),
			versionStyle.Render(p.NextVersion.String()))
		if p.Tag != "" {
			line += mutedStyle.Render("  tag " + p.Tag)
		}
		if p.PostVersion != nil {
			line += mutedStyle.Render("  then " + p.PostVersion.String())
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
