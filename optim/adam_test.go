package optim

import (
	"math"
	"testing"
)

func TestStepMovesAgainstGradient(t *testing.T) {
	a := New(Config{LR: 0.1})
	params := map[string][]float32{"w": {1.0, -1.0}}
	grads := map[string][]float32{"w": {0.5, -0.5}}

	if err := a.Step(params, grads); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if params["w"][0] >= 1.0 {
		t.Errorf("positive gradient should lower the parameter, got %v", params["w"][0])
	}
	if params["w"][1] <= -1.0 {
		t.Errorf("negative gradient should raise the parameter, got %v", params["w"][1])
	}
	if a.StepCount() != 1 {
		t.Errorf("StepCount = %d; expected 1", a.StepCount())
	}
}

func TestFirstStepMagnitude(t *testing.T) {
	// With bias correction the very first update is approximately lr * sign(g).
	a := New(Config{LR: 0.01})
	params := map[string][]float32{"w": {0}}
	grads := map[string][]float32{"w": {3.7}}

	if err := a.Step(params, grads); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := float64(params["w"][0]); math.Abs(got+0.01) > 1e-4 {
		t.Errorf("first update = %v; expected about -0.01", got)
	}
}

func TestConvergesOnQuadratic(t *testing.T) {
	// Minimize (w - 3)^2; the gradient is 2(w - 3).
	a := New(Config{LR: 0.1})
	params := map[string][]float32{"w": {0}}
	for i := 0; i < 500; i++ {
		g := 2 * (params["w"][0] - 3)
		if err := a.Step(params, map[string][]float32{"w": {g}}); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if got := float64(params["w"][0]); math.Abs(got-3) > 0.05 {
		t.Errorf("w = %v after 500 steps; expected close to 3", got)
	}
}

func TestGradientClipping(t *testing.T) {
	clipped := New(Config{LR: 0.1, Clip: 0.001})
	free := New(Config{LR: 0.1})
	pc := map[string][]float32{"w": {0}}
	pf := map[string][]float32{"w": {0}}
	g := map[string][]float32{"w": {1000}}

	if err := clipped.Step(pc, g); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := free.Step(pf, g); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if math.Abs(float64(pc["w"][0])) >= math.Abs(float64(pf["w"][0])) {
		t.Errorf("clipped update %v should be no larger than unclipped %v", pc["w"][0], pf["w"][0])
	}
}

func TestStepValidation(t *testing.T) {
	a := New(Config{})
	params := map[string][]float32{"w": {0, 0}}

	if err := a.Step(params, map[string][]float32{}); err == nil {
		t.Error("missing gradient should fail")
	}
	if err := a.Step(params, map[string][]float32{"w": {1}}); err == nil {
		t.Error("gradient size mismatch should fail")
	}
}

func TestStateRoundTrip(t *testing.T) {
	a := New(Config{LR: 0.05})
	params := map[string][]float32{"w": {1, 2}, "b": {3}}
	grads := map[string][]float32{"w": {0.1, -0.2}, "b": {0.3}}
	for i := 0; i < 3; i++ {
		if err := a.Step(params, grads); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	st := a.State()

	// Two optimizers with identical state must produce identical updates.
	b := New(Config{LR: 0.05})
	if err := b.Restore(st); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if b.StepCount() != a.StepCount() {
		t.Errorf("restored StepCount = %d; expected %d", b.StepCount(), a.StepCount())
	}

	pa := map[string][]float32{"w": {1, 2}, "b": {3}}
	pb := map[string][]float32{"w": {1, 2}, "b": {3}}
	if err := a.Step(pa, grads); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := b.Step(pb, grads); err != nil {
		t.Fatalf("Step: %v", err)
	}
	for name := range pa {
		for i := range pa[name] {
			if pa[name][i] != pb[name][i] {
				t.Errorf("divergent update for %s[%d]: %v vs %v", name, i, pa[name][i], pb[name][i])
			}
		}
	}

	// The captured state must be a copy, not an alias.
	st.M["w"][0] = 99
	st2 := b.State()
	if st2.M["w"][0] == 99 {
		t.Error("State must deep-copy the moment slices")
	}
}

func TestRestoreValidation(t *testing.T) {
	a := New(Config{})
	bad := State{
		M: map[string][]float32{"w": {1, 2}},
		V: map[string][]float32{"w": {1}},
	}
	if err := a.Restore(bad); err == nil {
		t.Error("moment size mismatch should fail")
	}
	bad = State{
		M: map[string][]float32{"w": {1}},
		V: map[string][]float32{"b": {1}},
	}
	if err := a.Restore(bad); err == nil {
		t.Error("mismatched moment names should fail")
	}
}
