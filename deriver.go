package derive

import "context"

// ComputeFunc is a synchronous derivation body. It reads its inputs
// through the State view and returns the new value for its key.
type ComputeFunc func(s State, g *Graph) any

// Thunk is a pending asynchronous computation returned by a request.
// A nil Thunk means the request declined to produce a result (for
// example because it is throttled).
type Thunk func(ctx context.Context) (any, error)

// RequestFunc is an asynchronous derivation body. Invoking it must
// return immediately; the returned Thunk is run on its own goroutine
// and its result arrives as a later push of {key: value}.
type RequestFunc func(s State, g *Graph) Thunk

// Deriver is an immutable record describing one derived property:
// which keys trigger it, how it computes, and how ties are broken when
// it is part of a dependency cycle.
type Deriver struct {
	key      string
	params   []string
	compute  ComputeFunc
	request  RequestFunc
	tieBreak string
}

// Key returns the property key this deriver computes.
func (d *Deriver) Key() string {
	return d.key
}

// Params returns a copy of the deriver's dependency keys. For a
// request these are the keys whose change triggers a new invocation,
// not necessarily every key the body reads.
func (d *Deriver) Params() []string {
	out := make([]string, len(d.params))
	copy(out, d.params)
	return out
}

// IsRequest reports whether this deriver is asynchronous.
func (d *Deriver) IsRequest() bool {
	return d.request != nil
}

// sortKey is the string used to order this deriver in the accurate
// mode cycle fallback.
func (d *Deriver) sortKey() string {
	if d.tieBreak != "" {
		return d.tieBreak
	}
	return d.key
}

// DeriverOption is a modifier for deriver and request declarations.
type DeriverOption func(*Deriver)

// Params returns an option that declares the dependency keys
// explicitly, bypassing the probe entirely.
func Params(keys ...string) DeriverOption {
	return func(d *Deriver) {
		d.params = keys
	}
}

// TieBreak returns an option that sets the string used to order this
// deriver when the accurate mode cycle fallback sorts the members of a
// dependency cycle. Without it the deriver's own key is used.
func TieBreak(s string) DeriverOption {
	return func(d *Deriver) {
		d.tieBreak = s
	}
}
