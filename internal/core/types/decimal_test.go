package types

import (
	"encoding/json"
	"testing"
)

func TestQuantityString(t *testing.T) {
	tests := []struct {
		in   Quantity
		want string
	}{
		{0, "0.0000"},
		{NewQuantityFromFloat64(5), "5.0000"},
		{NewQuantityFromFloat64(0.5), "0.5000"},
		{NewQuantityFromFloat64(12.3456), "12.3456"},
		{NewQuantityFromFloat64(-3.25), "-3.2500"},
		{NewQuantityFromInt64Scaled(1), "0.0001"},
		{NewQuantityFromInt64Scaled(-1), "-0.0001"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Quantity(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuantityUnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{`5`, NewQuantityFromFloat64(5)},
		{`5.25`, NewQuantityFromFloat64(5.25)},
		{`"5.25"`, NewQuantityFromFloat64(5.25)},
		{`-0.0001`, NewQuantityFromInt64Scaled(-1)},
		{`null`, 0},
	}

	for _, tt := range tests {
		var got Quantity
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	in := NewQuantityFromFloat64(12.3456)
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "12.3456" {
		t.Errorf("Marshal = %s, want a bare number", data)
	}

	var out Quantity
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip: got %d, want %d", out, in)
	}
}

func TestQuantityMulMoney(t *testing.T) {
	qty := NewQuantityFromFloat64(2.5)
	if got, want := qty.MulMoney(MustMoney("10.00")), MustMoney("25.00"); !got.Equal(want) {
		t.Errorf("MulMoney = %s, want %s", got, want)
	}

	// Fractional quantity keeps full precision.
	qty = NewQuantityFromFloat64(0.3333)
	if got, want := qty.MulMoney(MustMoney("3.00")), MustMoney("0.9999"); !got.Equal(want) {
		t.Errorf("MulMoney = %s, want %s", got, want)
	}
}

func TestQuantityMinAbs(t *testing.T) {
	a, b := NewQuantityFromFloat64(3), NewQuantityFromFloat64(7)
	if a.Min(b) != a || b.Min(a) != a {
		t.Error("Min must return the smaller quantity")
	}
	if NewQuantityFromFloat64(-4).Abs() != NewQuantityFromFloat64(4) {
		t.Error("Abs must drop the sign")
	}
}
