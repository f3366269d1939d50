package sim

import "testing"

// TestOriginKeyRoundTrip verifies the canonical spatial key, negatives
// included.
func TestOriginKeyRoundTrip(t *testing.T) {
	testCases := []struct {
		o    Origin
		want string
	}{
		{Origin{0, 0}, "0|0"},
		{Origin{12, -7}, "12|-7"},
		{Origin{-3, -4}, "-3|-4"},
	}
	for _, tc := range testCases {
		if got := tc.o.Key(); got != tc.want {
			t.Errorf("Key(%+v) = %q, want %q", tc.o, got, tc.want)
		}
		back, err := ParseOriginKey(tc.want)
		if err != nil || back != tc.o {
			t.Errorf("ParseOriginKey(%q) = %+v, %v", tc.want, back, err)
		}
	}

	for _, bad := range []string{"", "3", "3|", "|4", "a|b", "1|2|3"} {
		if _, err := ParseOriginKey(bad); err == nil {
			t.Errorf("ParseOriginKey(%q) accepted", bad)
		}
	}
}

// TestSignalListenCancel verifies listener registration and idempotent
// unsubscription.
func TestSignalListenCancel(t *testing.T) {
	var s Signal[int]
	var a, b []int

	cancelA := s.Listen(func(v int) { a = append(a, v) })
	s.Listen(func(v int) { b = append(b, v) })

	s.Notify(1)
	cancelA()
	cancelA()
	s.Notify(2)

	if len(a) != 1 || a[0] != 1 {
		t.Fatalf("cancelled listener saw %v", a)
	}
	if len(b) != 2 {
		t.Fatalf("surviving listener saw %v", b)
	}
}
