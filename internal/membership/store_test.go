package membership

import (
	"testing"
	"time"
)

func TestValidRole(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleManager, true},
		{RoleDeveloper, true},
		{RoleTester, true},
		{"admin", false},
		{"", false},
		{"Manager", false},
	}
	for _, tt := range tests {
		if got := ValidRole(tt.role); got != tt.want {
			t.Errorf("ValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestMinutesBetween(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{"zero", 0, 0},
		{"under a minute", 59 * time.Second, 0},
		{"exactly one minute", time.Minute, 1},
		{"125 seconds floors to 2", 125 * time.Second, 2},
		{"two hours", 2 * time.Hour, 120},
		{"clock went backwards", -5 * time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinutesBetween(t0, t0.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("MinutesBetween(+%v) = %d, want %d", tt.elapsed, got, tt.want)
			}
		})
	}
}
