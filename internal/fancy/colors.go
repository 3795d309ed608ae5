package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors used to render flows, steps, and node states in CLI output.
var (
	ColorBlue     = lipgloss.Color("39")  // Blue, flow names
	ColorPurple   = lipgloss.Color("35")  // Purple
	ColorMagenta  = lipgloss.Color("201") // Bright Magenta, async/waiting steps
	ColorOrange   = lipgloss.Color("208") // Orange, compensating
	ColorGreen    = lipgloss.Color("82")  // Green, invoked_ok / reverted
	ColorYellow   = lipgloss.Color("228") // Yellow, invoking
	ColorCyan     = lipgloss.Color("45")  // Cyan, action ids
	ColorRed      = lipgloss.Color("196") // Red, invoke_failed / failed
	ColorGray     = lipgloss.Color("250") // Light gray
	ColorWhite    = lipgloss.Color("15")  // White
	ColorDarkGray = lipgloss.Color("240") // Dark gray, branch connectors
)
