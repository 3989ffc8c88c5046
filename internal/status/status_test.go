package status

import "testing"

var all = []Health{Green, Amber, Red}

func TestWorstKnownValues(t *testing.T) {
	cases := []struct {
		name string
		in   []Health
		want Health
	}{
		{"red dominates", []Health{Red, Green}, Red},
		{"red with amber", []Health{Amber, Red}, Red},
		{"amber over green", []Health{Amber, Green}, Amber},
		{"single green", []Health{Green}, Green},
		{"empty", nil, Green},
		{"lowercase input", []Health{"amber", "green"}, Amber},
		{"unknown treated as green", []Health{"PURPLE"}, Green},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Worst(tc.in...); got != tc.want {
				t.Fatalf("Worst(%v) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestWorstLatticeLaws(t *testing.T) {
	for _, a := range all {
		if Worst(a, a) != a {
			t.Fatalf("not idempotent for %s", a)
		}
		if Worst(Red, a) != Red {
			t.Fatalf("RED must absorb %s", a)
		}
		for _, b := range all {
			if Worst(a, b) != Worst(b, a) {
				t.Fatalf("not commutative for %s,%s", a, b)
			}
			for _, c := range all {
				left := Worst(Worst(a, b), c)
				right := Worst(a, Worst(b, c))
				if left != right || left != Worst(a, b, c) {
					t.Fatalf("not associative for %s,%s,%s", a, b, c)
				}
			}
		}
	}
}

func TestSLAStateToHealth(t *testing.T) {
	cases := map[SLAState]Health{
		SLABreach: Red,
		SLAAtRisk: Amber,
		SLAOK:     Green,
		"":        Green,
		"breach":  Red,
	}
	for in, want := range cases {
		if got := SLAStateToHealth(in); got != want {
			t.Fatalf("SLAStateToHealth(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestClassifySLA(t *testing.T) {
	intp := func(v int) *int { return &v }

	if got := ClassifySLA(true, 60, intp(10)); got != SLABreach {
		t.Fatalf("breach flag must win, got %s", got)
	}
	if got := ClassifySLA(false, 60, intp(49)); got != SLAAtRisk {
		t.Fatalf("49s of 60s should be AT_RISK, got %s", got)
	}
	if got := ClassifySLA(false, 60, intp(48)); got != SLAOK {
		t.Fatalf("exactly 80%% is not over the threshold, got %s", got)
	}
	if got := ClassifySLA(false, 60, nil); got != SLAOK {
		t.Fatalf("missing response without breach should be OK, got %s", got)
	}
}
