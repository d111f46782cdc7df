package clarity

import (
	"errors"
	"math"
	"testing"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func TestSignalValidate(t *testing.T) {
	cases := []struct {
		name    string
		sig     Signal
		wantErr bool
	}{
		{name: "empty", sig: Signal{}},
		{name: "known traits", sig: Signal{Adjustments: map[types.TraitName]float64{types.TraitDepth: 0.4, types.TraitLogic: -1}}},
		{name: "unknown trait", sig: Signal{Adjustments: map[types.TraitName]float64{"charisma": 0.1}}, wantErr: true},
		{name: "nan", sig: Signal{Adjustments: map[types.TraitName]float64{types.TraitHumor: math.NaN()}}, wantErr: true},
		{name: "inf", sig: Signal{Adjustments: map[types.TraitName]float64{types.TraitHumor: math.Inf(1)}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sig.Validate()
			if tc.wantErr {
				if !errors.Is(err, types.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSignalEmpty(t *testing.T) {
	if !(Signal{Reflection: "noted", Issues: []string{"Too blunt"}}).Empty() {
		t.Fatal("issues and reflection alone should not count as applicable")
	}
	if (Signal{Negative: true}).Empty() {
		t.Fatal("negative signal is not empty")
	}
}
