package derive

// probeState is the instrumented stand-in for the state map used
// during dependency extraction. Every Get records the key in
// first-access order and returns nil, the undefined placeholder.
type probeState struct {
	keys []string
	seen map[string]bool
}

func newProbeState() *probeState {
	return &probeState{seen: make(map[string]bool)}
}

func (p *probeState) Get(key string) any {
	if !p.seen[key] {
		p.seen[key] = true
		p.keys = append(p.keys, key)
	}
	return nil
}

// extractParams infers a deriver's dependency keys by invoking its
// body exactly once against a probeState. The body's return value is
// discarded; only the set and order of accessed keys is kept.
//
// If the probe invocation panics (the body asserted a concrete type on
// the nil placeholder, branched on a missing value, and so on)
// extraction fails and the deriver cannot be registered. That is a
// configuration error surfaced at graph construction, not at push
// time; declare the params explicitly instead.
func extractParams(key string, invoke func(State)) (params []string, err error) {
	probe := newProbeState()

	defer func() {
		if r := recover(); r != nil {
			params = nil
			err = newExtractError(key, r)
		}
	}()

	invoke(probe)
	return probe.keys, nil
}

// resolveParams fills in a deriver's params, probing only when no
// explicit declaration was given.
func (g *Graph) resolveParams(d *Deriver) error {
	if d.params != nil {
		return nil
	}

	var invoke func(State)
	if d.request != nil {
		invoke = func(s State) { d.request(s, g) }
	} else {
		invoke = func(s State) { d.compute(s, g) }
	}

	params, err := extractParams(d.key, invoke)
	if err != nil {
		return err
	}
	d.params = params
	return nil
}
