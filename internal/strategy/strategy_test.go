package strategy

import (
	"errors"
	"math"
	"testing"
)

// constModel returns a Model that scores every point with v.
func constModel(id ModelID, v float64) Model {
	return Model{
		Descriptor: Descriptor{ID: id, DisplayName: string(id), DefaultThreshold: 50},
		Score: func(in Inputs) []float64 {
			out := make([]float64, in.Len())
			for i := range out {
				out[i] = v
			}
			return out
		},
	}
}

func inputsOfLen(n int) Inputs {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return Inputs{Closes: closes, Highs: closes, Lows: closes, Volumes: make([]float64, n)}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(constModel("test-model", 70)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Get("test-model")
	if !ok {
		t.Fatal("Get returned false for registered model")
	}
	if got.ID != "test-model" {
		t.Errorf("Get returned model with ID = %q, want %q", got.ID, "test-model")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered model")
	}
}

func TestRegistryRegister_Rejects(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(constModel("alpha", 1))

	if err := r.Register(constModel("alpha", 2)); !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("duplicate Register error = %v, want ErrDuplicateModel", err)
	}
	if err := r.Register(Model{Descriptor: Descriptor{ID: "nofunc"}}); err == nil {
		t.Error("Register accepted a model without a score function")
	}
	if err := r.Register(constModel("", 1)); err == nil {
		t.Error("Register accepted a model without an id")
	}
	if len(r.List()) != 1 {
		t.Errorf("List() has %d ids after rejected registrations, want 1", len(r.List()))
	}
}

func TestRegistryList_RegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(constModel("zeta", 1))
	r.MustRegister(constModel("alpha", 1))
	r.MustRegister(constModel("mid", 1))

	ids := r.List()
	want := []ModelID{"zeta", "alpha", "mid"}
	if len(ids) != len(want) {
		t.Fatalf("List returned %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	descs := r.Descriptors()
	if len(descs) != 3 || descs[0].ID != "zeta" || descs[2].ID != "mid" {
		t.Errorf("Descriptors() = %+v, want registration order", descs)
	}
}

func TestRegistryScore_UnknownModel(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Score("missing", inputsOfLen(5)); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Score error = %v, want ErrUnknownModel", err)
	}
}

func TestRegistryScore_Clamps(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(constModel("high", 250))
	r.MustRegister(constModel("low", -40))
	r.MustRegister(constModel("nan", math.NaN()))
	r.MustRegister(Model{
		Descriptor: Descriptor{ID: "short"},
		Score:      func(Inputs) []float64 { return []float64{55} },
	})

	in := inputsOfLen(4)
	cases := map[ModelID]float64{"high": 100, "low": 0, "nan": 0}
	for id, want := range cases {
		got, err := r.Score(id, in)
		if err != nil {
			t.Fatalf("Score(%q): %v", id, err)
		}
		for i, v := range got {
			if v != want {
				t.Errorf("Score(%q)[%d] = %v, want %v", id, i, v, want)
			}
		}
	}

	got, err := r.Score("short", in)
	if err != nil {
		t.Fatalf("Score(short): %v", err)
	}
	if len(got) != 4 || got[0] != 55 || got[3] != 0 {
		t.Errorf("Score(short) = %v, want [55 0 0 0]", got)
	}
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Label
	}{
		{100, StrongBuy},
		{80, StrongBuy},
		{79.9, Buy},
		{60, Buy},
		{50, Neutral},
		{40.1, Neutral},
		{40, Sell},
		{20.5, Sell},
		{20, StrongSell},
		{0, StrongSell},
	}
	for _, tt := range tests {
		if got := LabelFor(tt.score); got != tt.want {
			t.Errorf("LabelFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(constModel("bull", 85))
	r.MustRegister(constModel("bear", 10))

	if got := Evaluate(r, inputsOfLen(MinEvaluationPoints-1)); got != nil {
		t.Errorf("Evaluate on short history = %v, want nil", got)
	}

	got := Evaluate(r, inputsOfLen(MinEvaluationPoints))
	if len(got) != 2 {
		t.Fatalf("Evaluate returned %d signals, want 2", len(got))
	}
	if got[0].Model != "bull" || got[0].Score != 85 || got[0].Label != StrongBuy {
		t.Errorf("signal[0] = %+v", got[0])
	}
	if got[1].Model != "bear" || got[1].Label != StrongSell {
		t.Errorf("signal[1] = %+v", got[1])
	}
}
