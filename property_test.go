package derive

import (
	"testing"
)

func TestVarGetSetWatch(t *testing.T) {
	p := NewVar(1)

	if p.Value() != 1 {
		t.Errorf("expected 1, got %v", p.Value())
	}

	var seen []any
	stop := p.Watch(func(v any) { seen = append(seen, v) })

	p.SetValue(2)
	if p.Value() != 2 {
		t.Errorf("expected 2, got %v", p.Value())
	}
	if len(seen) != 1 || seen[0] != 2 {
		t.Errorf("expected one notification with 2, got %v", seen)
	}

	stop()
	stop()
	p.SetValue(3)
	if len(seen) != 1 {
		t.Errorf("expected no notification after unwatch, got %v", seen)
	}
}

func TestWrapTransformsBothDirections(t *testing.T) {
	base := NewVar(10)
	doubled := Wrap(base,
		func(v any) any { return v.(int) * 2 },
		func(v any) any { return v.(int) / 2 },
	)

	if doubled.Value() != 20 {
		t.Errorf("expected 20, got %v", doubled.Value())
	}

	var seen []any
	doubled.Watch(func(v any) { seen = append(seen, v) })

	doubled.SetValue(30)
	if base.Value() != 15 {
		t.Errorf("expected base 15, got %v", base.Value())
	}
	if doubled.Value() != 30 {
		t.Errorf("expected 30, got %v", doubled.Value())
	}
	if len(seen) != 1 || seen[0] != 30 {
		t.Errorf("expected transformed notification 30, got %v", seen)
	}
}

func TestWrapNilTransformsPassThrough(t *testing.T) {
	base := NewVar("x")
	pass := Wrap(base, nil, nil)

	pass.SetValue("y")
	if base.Value() != "y" || pass.Value() != "y" {
		t.Errorf("expected pass-through, got base %v wrapped %v", base.Value(), pass.Value())
	}
}

func TestNavigateCopyWithReplacement(t *testing.T) {
	original := map[string]any{"theme": "dark", "lang": "en"}
	settings := NewVar(original)
	theme := Navigate(settings, "theme")

	if theme.Value() != "dark" {
		t.Errorf("expected dark, got %v", theme.Value())
	}

	var seen []any
	theme.Watch(func(v any) { seen = append(seen, v) })

	theme.SetValue("light")

	next := settings.Value().(map[string]any)
	if next["theme"] != "light" || next["lang"] != "en" {
		t.Errorf("expected replaced member with siblings kept, got %v", next)
	}
	// Non-destructive: the original composite is untouched.
	if original["theme"] != "dark" {
		t.Errorf("expected original map untouched, got %v", original)
	}
	if len(seen) != 1 || seen[0] != "light" {
		t.Errorf("expected notification with light, got %v", seen)
	}
}

func TestNavigateMissingComposite(t *testing.T) {
	p := NewVar(nil)
	focused := Navigate(p, "k")

	if focused.Value() != nil {
		t.Errorf("expected nil for missing composite, got %v", focused.Value())
	}

	focused.SetValue(1)
	m := p.Value().(map[string]any)
	if m["k"] != 1 {
		t.Errorf("expected member written into fresh composite, got %v", m)
	}
}

func TestBoundDelegatesToOwner(t *testing.T) {
	external := 5
	p := NewBound(
		func() any { return external },
		func(v any) { external = v.(int) },
	)

	if p.Value() != 5 {
		t.Errorf("expected 5, got %v", p.Value())
	}

	fired := 0
	p.Watch(func(v any) {
		fired++
		if v != 9 {
			t.Errorf("expected 9, got %v", v)
		}
	})

	p.SetValue(9)
	if external != 9 {
		t.Errorf("expected owner-side mutation, got %d", external)
	}
	if fired != 1 {
		t.Errorf("expected one notification, got %d", fired)
	}
}

func TestBoundNilSetterDropsWritesSilently(t *testing.T) {
	p := NewBound(func() any { return 4 }, nil)

	fired := 0
	p.Watch(func(v any) { fired++ })

	// A dropped write must not announce a change.
	p.SetValue(9)
	if p.Value() != 4 {
		t.Errorf("expected value unchanged, got %v", p.Value())
	}
	if fired != 0 {
		t.Errorf("expected no notification for a dropped write, got %d", fired)
	}

	// Explicit owner-side notification still works.
	p.Notify()
	if fired != 1 {
		t.Errorf("expected one notification after Notify, got %d", fired)
	}
}

// External mirror scenario: a bound property registered as graph key N
// follows external mutations once the owner notifies.
func TestExternalMirrorScenario(t *testing.T) {
	n := 0
	prop := NewBound(
		func() any { return n },
		func(v any) { n = v.(int) },
	)

	g, err := NewGraph(
		WithProperty("N", prop),
		WithDeriver("N2", func(s State, g *Graph) any {
			return Value[int](s, "N") * 2
		}, Params("N")),
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	fired := 0
	g.Watch("N", func(v any) {
		fired++
		if v != 7 {
			t.Errorf("expected 7, got %v", v)
		}
	})

	// The owner mutates its own state, then notifies the adapter.
	n = 7
	prop.Notify()

	if got := g.Get("N"); got != 7 {
		t.Errorf("expected state.N == 7, got %v", got)
	}
	if fired != 1 {
		t.Errorf("expected watcher to fire exactly once, got %d", fired)
	}
	if got := g.Get("N2"); got != 14 {
		t.Errorf("expected dependent re-pushed, got %v", got)
	}
}

// Pushing a mirrored key writes through to the owner without echoing
// into a second propagation.
func TestMirroredWriteThrough(t *testing.T) {
	n := 0
	prop := NewBound(
		func() any { return n },
		func(v any) { n = v.(int) },
	)

	g, err := NewGraph(WithProperty("N", prop))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	fired := 0
	g.Watch("N", func(v any) { fired++ })

	g.Push(Batch{"N": 3})

	if n != 3 {
		t.Errorf("expected owner-side value 3, got %d", n)
	}
	if got := g.Get("N"); got != 3 {
		t.Errorf("expected state.N == 3, got %v", got)
	}
	if fired != 1 {
		t.Errorf("expected exactly one notification, got %d", fired)
	}
}

func TestWrappedPropertyAsMirror(t *testing.T) {
	base := NewVar(2)
	scaled := Wrap(base,
		func(v any) any { return v.(int) * 100 },
		func(v any) any { return v.(int) / 100 },
	)

	g, err := NewGraph(WithProperty("pct", scaled))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := g.Get("pct"); got != 200 {
		t.Errorf("expected 200, got %v", got)
	}

	g.Push(Batch{"pct": 500})
	if base.Value() != 5 {
		t.Errorf("expected write transform applied at owner, got %v", base.Value())
	}
}
