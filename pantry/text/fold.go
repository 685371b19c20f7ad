// pantry/text/fold.go
package text

import (
	"strings"
	"sync"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// High closes a prefix range. U+10FFFD is the highest scalar value that is
// not a noncharacter, so astral-plane runes still sort inside [p, p+High).
const High = "\U0010FFFD"

// NFD, drop combining marks, NFC. Pooled because transform.Chain holds
// buffers.
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		)
	},
}

// Fold lowercases s and strips combining diacritics, so "Citrá" and
// "citra" compare equal. The result is not guaranteed ASCII ("ß" stays).
// Blank input folds to "".
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || isASCIIAndLower(s) {
		return s
	}

	s = strings.ToLower(s)

	t := chainPool.Get().(transform.Transformer)
	defer func() {
		t.Reset()
		chainPool.Put(t)
	}()

	out, _, _ := transform.String(t, s)
	return out
}

// PrefixRange returns the half-open range [lo, hi) of folded strings that
// start with Fold(q). Both are "" when q folds to "".
func PrefixRange(q string) (lo, hi string) {
	lo = Fold(q)
	if lo == "" {
		return "", ""
	}
	return lo, lo + High
}

// PrefixFilter matches documents whose folded field starts with Fold(q).
// Unlike an unanchored case-insensitive regex it is a bounded index scan.
// An empty query matches everything.
func PrefixFilter(field, q string) bson.M {
	lo, hi := PrefixRange(q)
	if lo == "" {
		return bson.M{}
	}
	return bson.M{field: bson.M{"$gte": lo, "$lt": hi}}
}

func isASCIIAndLower(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x80 || (b >= 'A' && b <= 'Z') {
			return false
		}
	}
	return true
}
