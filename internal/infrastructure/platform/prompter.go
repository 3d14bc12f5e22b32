package platform

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
)

// TerminalPrompter provides interactive terminal prompting for grant requests.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// Character device means a terminal, not a pipe or file
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Decide is a DecisionFunc that asks the user which of the requested
// capabilities to grant. Prompt failure (EOF, cancelled form) denies all.
func (p *TerminalPrompter) Decide(h hosts.Host, set capabilities.Set) []capabilities.ID {
	options := make([]huh.Option[string], 0, set.Len())
	for _, id := range set.IDs() {
		options = append(options, huh.NewOption(string(id), string(id)))
	}

	var selected []string
	err := huh.NewMultiSelect[string]().
		Title(fmt.Sprintf("%s %q requests permissions", h.Kind(), h.ID())).
		Description("Select the capabilities to grant").
		Options(options...).
		Value(&selected).
		Run()
	if err != nil {
		return nil
	}

	granted := make([]capabilities.ID, len(selected))
	for i, s := range selected {
		granted[i] = capabilities.ID(s)
	}
	return granted
}

// FormatNonInteractiveError creates a helpful error message for
// non-interactive mode.
func (p *TerminalPrompter) FormatNonInteractiveError(h hosts.Host, set capabilities.Set) error {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("%s %q requires permissions (running in non-interactive mode)\n\n", h.Kind(), h.ID()))
	msg.WriteString("Required capabilities:\n")

	for _, id := range set.IDs() {
		msg.WriteString(fmt.Sprintf("  - %s\n", id))
	}

	msg.WriteString("\nTo grant these capabilities:\n")
	msg.WriteString("  1. Run interactively and approve when prompted\n")
	msg.WriteString("  2. Pre-grant them: permkit grants add <capability>\n")

	return fmt.Errorf("%s", msg.String())
}
