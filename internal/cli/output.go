package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	keyStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func header(text string) {
	fmt.Println(headerStyle.Render(text))
}

func success(format string, args ...any) {
	fmt.Println(successStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

func kv(key, format string, args ...any) {
	fmt.Printf("  %s %s\n", keyStyle.Render(key+":"), fmt.Sprintf(format, args...))
}

func dim(format string, args ...any) {
	fmt.Println(dimStyle.Render(fmt.Sprintf(format, args...)))
}
