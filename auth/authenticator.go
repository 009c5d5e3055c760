package auth

import (
	"context"
	"net/http"
)

// Authenticator validates the credentials carried in request headers.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: credential problems are reported with the sentinel errors of
//   this package; anything else is an internal failure.
type Authenticator interface {
	// Name identifies the authenticator in logs.
	Name() string

	// Supports reports whether header carries credentials this
	// authenticator understands.
	Supports(header http.Header) bool

	// Authenticate validates the credentials and returns the caller.
	Authenticate(ctx context.Context, header http.Header) (*Identity, error)
}

// Composite tries each supporting authenticator in order and returns the
// first success. With none supporting the request it reports
// ErrMissingCredentials; otherwise the last failure is returned.
type Composite struct {
	authenticators []Authenticator
}

// NewComposite returns a Composite over auths. Nil entries are skipped.
func NewComposite(auths ...Authenticator) *Composite {
	c := &Composite{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Len returns the number of configured authenticators.
func (c *Composite) Len() int {
	return len(c.authenticators)
}

func (c *Composite) Name() string { return "composite" }

func (c *Composite) Supports(header http.Header) bool {
	for _, a := range c.authenticators {
		if a.Supports(header) {
			return true
		}
	}
	return false
}

func (c *Composite) Authenticate(ctx context.Context, header http.Header) (*Identity, error) {
	err := ErrMissingCredentials
	for _, a := range c.authenticators {
		if !a.Supports(header) {
			continue
		}
		id, aerr := a.Authenticate(ctx, header)
		if aerr == nil {
			return id, nil
		}
		err = aerr
	}
	return nil, err
}

var _ Authenticator = (*Composite)(nil)
