package collector

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

func TestBuildVehicleKey_GaragePrecedence(t *testing.T) {
	is := is.New(t)

	key := BuildVehicleKey(strPtr("P93123"), strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "1234")
	is.Equal(key, "garage:P93123")

	// an empty garage number falls through to the hash form
	key = BuildVehicleKey(strPtr(""), strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "1234")
	is.True(strings.HasPrefix(key, "hash:"))
}

func TestBuildVehicleKey_Deterministic(t *testing.T) {
	is := is.New(t)

	first := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "1234")
	second := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "1234")
	is.Equal(first, second)
	is.True(strings.HasPrefix(first, "hash:"))
	is.Equal(len(first), len("hash:")+16)
}

func TestBuildVehicleKey_CoordinateRounding(t *testing.T) {
	is := is.New(t)

	// sub-meter jitter inside the fifth decimal place collapses to one key
	jittered := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.792149), floatPtr(20.449112), "1234")
	canonical := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "1234")
	is.Equal(jittered, canonical)

	// movement past the rounding boundary produces a new key
	moved := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79216), floatPtr(20.44911), "1234")
	is.True(moved != canonical)
}

func TestBuildVehicleKey_StopCodeFoldedWhenPositionMissing(t *testing.T) {
	is := is.New(t)

	atStopA := BuildVehicleKey(nil, strPtr("31"), strPtr("A"), nil, nil, "1234")
	atStopB := BuildVehicleKey(nil, strPtr("31"), strPtr("A"), nil, nil, "5678")
	is.True(atStopA != atStopB)

	// with a full position the stop code does not influence the key
	positionedA := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "1234")
	positionedB := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), floatPtr(20.44911), "5678")
	is.Equal(positionedA, positionedB)

	// a single missing coordinate also folds the stop code
	halfA := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), nil, "1234")
	halfB := BuildVehicleKey(nil, strPtr("31"), strPtr("A"),
		floatPtr(44.79215), nil, "5678")
	is.True(halfA != halfB)
}

func TestRoundCoordinate(t *testing.T) {
	tests := []struct {
		name          string
		value         *float64
		decimalPlaces int
		expect        *float64
	}{
		{
			name:          "rounds to five places",
			value:         floatPtr(44.792145678),
			decimalPlaces: 5,
			expect:        floatPtr(44.79215),
		},
		{
			name:          "rounds down",
			value:         floatPtr(20.449112),
			decimalPlaces: 5,
			expect:        floatPtr(20.44911),
		},
		{
			name:          "nil passes through",
			value:         nil,
			decimalPlaces: 5,
			expect:        nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := roundCoordinate(tt.value, tt.decimalPlaces)
			if tt.expect == nil {
				if result != nil {
					t.Errorf("expected nil, got %v", *result)
				}
				return
			}
			if result == nil || *result != *tt.expect {
				t.Errorf("expected %v, got %v", *tt.expect, result)
			}
		})
	}
}
