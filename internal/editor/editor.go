// Package editor defines the boundary between the language host and the
// editor it serves, plus an in-memory headless editor used by the CLI and tests.
package editor

import "github.com/Iron-Ham/cadencehost/internal/protocol"

// WaitingMessage is shown while editor-dependent actions are disabled.
const WaitingMessage = "Please wait, instantiating language service..."

// ChangeKind distinguishes document events on the change stream.
type ChangeKind int

const (
	// ChangeEdit carries the full text of a new or edited document.
	ChangeEdit ChangeKind = iota
	// ChangeClose announces that a document was closed.
	ChangeClose
)

// Change is one event on an editor's document stream.
type Change struct {
	URI  string
	Text string
	Kind ChangeKind
}

// Language describes a language registered with the editor.
type Language struct {
	ID         string
	Extensions []string
	Aliases    []string
}

// DiagnosticsSink receives the full diagnostic set for a document.
type DiagnosticsSink interface {
	PublishDiagnostics(uri string, diags []protocol.Diagnostic)
}

// Editor is what the host needs from an editor.
type Editor interface {
	DiagnosticsSink

	// Changes streams document edits. It is closed when the editor shuts down.
	Changes() <-chan Change
	// SetReady gates editor-dependent actions.
	SetReady(ready bool)
	// Ready reports the gate.
	Ready() bool
	// RegisterLanguage installs a language definition.
	RegisterLanguage(lang Language) error
}

// StatusLine returns WaitingMessage while ed is not ready, "" otherwise.
func StatusLine(ed Editor) string {
	if ed == nil || !ed.Ready() {
		return WaitingMessage
	}
	return ""
}
