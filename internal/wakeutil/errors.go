package wakeutil

import (
	"fmt"

	"github.com/wake-build/wake/internal/loc"
)

// NewError and WrapError are the house error style (fmt.Errorf with %w,
// no dedicated error package) for everything that isn't a source-location
// diagnostic.
func NewError(msg string) error { return fmt.Errorf("%s", msg) }

func WrapError(err error, msg string) error {
	if err == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Diagnostic is a user-facing error anchored to one or two source
// locations. Kind groups diagnostics by pipeline stage, letting the
// driver decide per-kind recovery policy (batch-and-continue before the
// runtime, halt-at-safepoint during it).
type Diagnostic struct {
	Kind    Kind
	Message string
	At      loc.Location
	Also    *loc.Location // second endpoint, for duplicate-definition/cycle errors
	Cause   error
}

type Kind int

const (
	KindLexParse Kind = iota + 1
	KindResolution
	KindType
	KindMatch
	KindRuntime
	KindJob
	KindDB
	KindEnvironmental
)

func (d *Diagnostic) Error() string {
	if d.Also != nil {
		return fmt.Sprintf("%s: %s (also: %s)", d.At, d.Message, *d.Also)
	}
	return fmt.Sprintf("%s: %s", d.At, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.Cause }

func NewDiagnostic(kind Kind, at loc.Location, msg string) *Diagnostic {
	return &Diagnostic{Kind: kind, At: at, Message: msg}
}

func (d *Diagnostic) WithAlso(at loc.Location) *Diagnostic {
	d.Also = &at
	return d
}

// Bag collects diagnostics during lex/parse/resolve/typecheck, rather
// than aborting at the first one, so a user sees every lex error in one
// pass instead of fixing them one at a time.
type Bag struct {
	items []*Diagnostic
}

func (b *Bag) Add(d *Diagnostic) { b.items = append(b.items, d) }
func (b *Bag) Empty() bool       { return len(b.items) == 0 }
func (b *Bag) Items() []*Diagnostic { return b.items }

func (b *Bag) Error() string {
	if len(b.items) == 1 {
		return b.items[0].Error()
	}
	return fmt.Sprintf("%d errors (first: %s)", len(b.items), b.items[0].Error())
}
