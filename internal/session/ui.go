package session

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// UI is the surface the sync layer produces to. Rendering is an external
// collaborator; the CLI implements this on pterm, tests on a recorder.
type UI interface {
	// ShowDialog presents blocking content with the given button labels.
	ShowDialog(title, content string, buttons ...string)

	// ShowNotification presents a transient message.
	ShowNotification(text string, severity Severity)

	// NavigateToEntry leaves the session towards the entry screen,
	// optionally with a recoverable error message.
	NavigateToEntry(errMsg string)
}
