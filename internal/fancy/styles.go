package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles applied to flow, action, and node-state text in CLI output.
var (
	// RootStyle styles the flow name at the root of a rendered DAG.
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	// HeaderStyle styles section headers.
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	// InfoStyle styles descriptive information, like attempt counts.
	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	// BranchStyle styles tree branch connectors.
	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	// ActionStyle styles an action id.
	ActionStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	// InvokingStyle styles a node currently invoking or retrying.
	InvokingStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	// InvokedOKStyle styles a node that completed its invoke successfully.
	InvokedOKStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	// InvokeFailedStyle styles a node that exhausted invoke retries.
	InvokeFailedStyle = lipgloss.NewStyle().
				Foreground(ColorRed)

	// CompensatingStyle styles a node currently compensating.
	CompensatingStyle = lipgloss.NewStyle().
				Foreground(ColorOrange)

	// SkippedStyle styles a node skipped via continueOnPermanentFailure.
	SkippedStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Faint(true)

	// AsyncStyle styles a node suspended awaiting an external resume.
	AsyncStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)
)

// ActionText styles an action id.
func ActionText(text string) string {
	return ActionStyle.Render(text)
}

// NodeStateText styles text according to a node's lifecycle state, matching
// the state constants in internal/finitestate.
func NodeStateText(state, text string) string {
	switch state {
	case "invoking":
		return InvokingStyle.Render(text)
	case "invoked_ok":
		return InvokedOKStyle.Render(text)
	case "invoke_failed":
		return InvokeFailedStyle.Render(text)
	case "compensating":
		return CompensatingStyle.Render(text)
	case "compensated":
		return InvokedOKStyle.Render(text)
	case "permanent_failure_skipped":
		return SkippedStyle.Render(text)
	default:
		return text
	}
}
