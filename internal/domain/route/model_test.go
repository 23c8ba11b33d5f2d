package route

import "testing"

func TestFare(t *testing.T) {
	a := RouteStop{ID: "rs-a", FareFromOrigin: 0}
	b := RouteStop{ID: "rs-b", FareFromOrigin: 25}
	c := RouteStop{ID: "rs-c", FareFromOrigin: 40}

	tests := []struct {
		from, to RouteStop
		want     int64
	}{
		{a, b, 25},
		{b, a, 25},
		{b, c, 15},
		{a, a, 0},
	}
	for _, tt := range tests {
		if got := Fare(tt.from, tt.to); got != tt.want {
			t.Errorf("Fare(%s, %s) = %d, want %d", tt.from.ID, tt.to.ID, got, tt.want)
		}
	}
}
