package derive

// buildIndex inverts every deriver's params into the reverse adjacency
// used for propagation: key -> deriver keys that depend on it, in
// registration order. The index is a pure function of the registered
// derivers; it is built once during construction, before any default
// values are pushed, and never mutated afterward.
func buildIndex(order []string, derivers map[string]*Deriver) map[string][]string {
	index := make(map[string][]string, len(order))

	for _, key := range order {
		if _, ok := index[key]; !ok {
			index[key] = nil
		}
		for _, param := range derivers[key].params {
			index[param] = append(index[param], key)
		}
	}

	return index
}

// Dependents returns the deriver keys that directly depend on key,
// in registration order. The returned slice is a copy.
func (g *Graph) Dependents(key string) []string {
	deps := g.index[key]
	if len(deps) == 0 {
		return nil
	}
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// ExportIndex returns a copy of the full dependency index. Useful for
// debugging tooling and graph visualization.
func (g *Graph) ExportIndex() map[string][]string {
	out := make(map[string][]string, len(g.index))
	for key, deps := range g.index {
		cp := make([]string, len(deps))
		copy(cp, deps)
		out[key] = cp
	}
	return out
}
