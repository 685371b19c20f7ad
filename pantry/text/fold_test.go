package text

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"laptop", "laptop"},
		{"  Laptop Gaming ", "laptop gaming"},
		{"Café Ñandú", "cafe nandu"},
		{"STRASSE ß", "strasse ß"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrefixRange(t *testing.T) {
	lo, hi := PrefixRange("Smárt")
	if lo != "smart" || hi != "smart"+High {
		t.Errorf("PrefixRange = (%q, %q)", lo, hi)
	}
	for _, s := range []string{"smart", "smartphone", "smart 😀"} {
		if !(s >= lo && s < hi) {
			t.Errorf("%q should fall inside [%q, hi)", s, lo)
		}
	}
	if "smarr" >= lo || "smaru" < hi {
		t.Error("neighbours should fall outside the range")
	}

	if lo, hi := PrefixRange("  "); lo != "" || hi != "" {
		t.Errorf("blank PrefixRange = (%q, %q), want empty", lo, hi)
	}
}

func TestPrefixFilter(t *testing.T) {
	got := PrefixFilter("name_ci", "Lap")
	r, ok := got["name_ci"].(bson.M)
	if !ok || r["$gte"] != "lap" || r["$lt"] != "lap"+High {
		t.Errorf("PrefixFilter = %v", got)
	}
	if len(PrefixFilter("name_ci", "")) != 0 {
		t.Error("empty query should match everything")
	}
}
