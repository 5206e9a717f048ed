// Package permission answers capability checks against a user's permission
// list. Permission strings are opaque identifiers such as "Invoices.ViewOwn".
package permission

type Option func(*Evaluator)

// WithWildcards lets a granted "*" or "Prefix.*" (also "Prefix/*") cover every
// permission below that prefix. Wildcards only ever widen an explicit grant.
func WithWildcards() Option {
	return func(e *Evaluator) { e.wildcards = true }
}

type Evaluator struct {
	granted   map[string]struct{}
	wildcards bool
}

// New builds an evaluator over granted. A nil or empty list grants nothing.
func New(granted []string, opts ...Option) *Evaluator {
	e := &Evaluator{granted: make(map[string]struct{}, len(granted))}
	for _, p := range granted {
		if p != "" {
			e.granted[p] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPermission reports whether required is granted.
func (e *Evaluator) HasPermission(required string) bool {
	if e == nil || required == "" {
		return false
	}
	if _, ok := e.granted[required]; ok {
		return true
	}
	return e.wildcards && e.coveredByWildcard(required)
}

// HasAnyPermission reports whether at least one of required is granted. An
// empty requirement means the item is unrestricted and is always true, even
// for a nil evaluator (no session).
func (e *Evaluator) HasAnyPermission(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if e.HasPermission(r) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every entry of required is granted.
func (e *Evaluator) HasAllPermissions(required ...string) bool {
	for _, r := range required {
		if !e.HasPermission(r) {
			return false
		}
	}
	return true
}

func (e *Evaluator) coveredByWildcard(required string) bool {
	if _, ok := e.granted["*"]; ok {
		return true
	}
	for i := len(required) - 1; i > 0; i-- {
		c := required[i]
		if c != '.' && c != '/' {
			continue
		}
		if _, ok := e.granted[required[:i+1]+"*"]; ok {
			return true
		}
	}
	return false
}
