package etag

import (
	"math"
	"regexp"
	"testing"
)

var tokenPattern = regexp.MustCompile(`^"[0-9a-f]{32}"$`)

func TestHash_TokenShape(t *testing.T) {
	token, err := Hash(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tokenPattern.MatchString(token) {
		t.Errorf("token %q is not a quoted 32-hex digest", token)
	}
}

func TestHash_Deterministic(t *testing.T) {
	type payload struct {
		Items []string `json:"items"`
		TS    string   `json:"ts"`
	}
	v := payload{Items: []string{"a", "b"}, TS: "2026-08-30T00:00:00Z"}

	first, err := Hash(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := Hash(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next != first {
			t.Fatalf("hash changed between invocations: %s vs %s", first, next)
		}
	}
}

func TestHash_FieldOrderSensitive(t *testing.T) {
	type ab struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	type ba struct {
		B int `json:"b"`
		A int `json:"a"`
	}

	h1, err := Hash(ab{A: 1, B: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := Hash(ba{A: 1, B: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 == h2 {
		t.Errorf("tokens must differ for different serialization order, both %s", h1)
	}
}

func TestHash_DifferentValuesDiffer(t *testing.T) {
	h1, _ := Hash([]int{1, 2, 3})
	h2, _ := Hash([]int{1, 2, 4})
	if h1 == h2 {
		t.Errorf("distinct payloads produced the same token %s", h1)
	}
}

func TestWeakHash_Prefix(t *testing.T) {
	strong, err := Hash("body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weak, err := WeakHash("body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if weak != "W/"+strong {
		t.Errorf("weak token %q does not wrap strong token %q", weak, strong)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical quoted", `"abc"`, `"abc"`, true},
		{"quoted vs bare", `"abc"`, "abc", true},
		{"bare vs quoted", "abc", `"abc"`, true},
		{"mismatch", `"abc"`, `"abd"`, false},
		{"empty left", "", `"abc"`, false},
		{"empty right", `"abc"`, "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestHash_NonFiniteValueFails(t *testing.T) {
	if _, err := Hash(map[string]float64{"v": math.Inf(1)}); err == nil {
		t.Error("expected error for non-finite value")
	}
}
