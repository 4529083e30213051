package locations

import "testing"

func TestValidLatLng(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"san francisco", 37.7749, -122.4194, true},
		{"lat max", 90, 0, true},
		{"lat min", -90, 0, true},
		{"lng max", 0, 180, true},
		{"lng min", 0, -180, true},
		{"lat too high", 90.0001, 0, false},
		{"lat too low", -91, 0, false},
		{"lng too high", 0, 180.5, false},
		{"lng too low", 0, -181, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidLatLng(tt.lat, tt.lng); got != tt.want {
				t.Errorf("ValidLatLng(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}
