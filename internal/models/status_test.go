package models

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []MessageStatus{StatusSent, StatusDelivered, StatusRead} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range []MessageStatus{"", "seen", "SENT"} {
		if s.Valid() {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestStatusCanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to MessageStatus
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusRead, StatusRead, false},
		{StatusRead, StatusDelivered, false},
		{StatusDelivered, StatusSent, false},
		{StatusSent, StatusSent, false},
		{StatusSent, "seen", false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Errorf("CanAdvanceTo(%q -> %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
