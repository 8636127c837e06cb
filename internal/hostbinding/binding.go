// Package hostbinding installs host services into an editor exactly once
// per process.
package hostbinding

import (
	"sync"

	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// Services is a set of host services installable into an editor.
type Services interface {
	Install(ed editor.Editor) error
}

// ServicesFunc adapts a function to Services.
type ServicesFunc func(ed editor.Editor) error

// Install implements Services.
func (f ServicesFunc) Install(ed editor.Editor) error { return f(ed) }

// CadenceServices registers the Cadence language with the editor.
type CadenceServices struct{}

// CadenceLanguage is the language definition CadenceServices installs.
var CadenceLanguage = editor.Language{
	ID:         protocol.LanguageID,
	Extensions: []string{".cdc"},
	Aliases:    []string{"Cadence", "cadence"},
}

// Install implements Services.
func (CadenceServices) Install(ed editor.Editor) error {
	return ed.RegisterLanguage(CadenceLanguage)
}

// Binding guards a one-time installation. The zero value is ready to use.
type Binding struct {
	mu        sync.Mutex
	attempted bool
	count     int
	err       error
}

// Init runs services.Install(ed) on the first call and reports
// installed=true. Every later call is a no-op returning installed=false
// and the first call's error, if any.
func (b *Binding) Init(ed editor.Editor, services Services) (installed bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attempted {
		return false, b.err
	}
	b.attempted = true
	b.count++
	b.err = services.Install(ed)
	return b.err == nil, b.err
}

// Installed reports whether the install ran and succeeded.
func (b *Binding) Installed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempted && b.err == nil
}

// Count returns how many times the underlying install was invoked.
func (b *Binding) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

var defaultBinding Binding

// Default returns the process-wide binding.
func Default() *Binding { return &defaultBinding }

// Install installs CadenceServices through the process-wide binding.
func Install(ed editor.Editor) (bool, error) {
	return Default().Init(ed, CadenceServices{})
}
