package derive

// Batch is a set of raw values to apply to the graph in one push.
type Batch map[string]any

// State is a read-only view over the graph's property values.
// Compute functions receive a State instead of the graph's internal
// storage; reads on keys that were never written return nil.
type State interface {
	Get(key string) any
}

// graphState is the live State view backed by a graph's slots.
type graphState struct {
	g *Graph
}

func (s graphState) Get(key string) any {
	return s.g.read(key)
}

// Value reads a key from a State and asserts it to T.
// It returns the zero value when the key is absent or holds a
// different type, which keeps derivation bodies free of assertion
// boilerplate:
//
//	total := func(s derive.State, g *derive.Graph) any {
//	    return derive.Value[int](s, "price") * derive.Value[int](s, "qty")
//	}
func Value[T any](s State, key string) T {
	v, _ := As[T](s.Get(key))
	return v
}

// ValueOr reads a key from a State and asserts it to T, returning
// fallback when the key is absent or holds a different type.
func ValueOr[T any](s State, key string, fallback T) T {
	raw := s.Get(key)
	if raw == nil {
		return fallback
	}
	v, err := As[T](raw)
	if err != nil {
		return fallback
	}
	return v
}
