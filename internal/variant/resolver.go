// Package variant resolves a shopper's partial attribute selection against the
// variants of a product. Everything here is a pure function of its inputs; the
// selection itself is held by the caller.
package variant

import "sort"

// Attributes is the key/value set describing one variant, e.g. {"color": "red"}.
type Attributes map[string]string

// Selection maps attribute keys to the values chosen so far. It may be
// partial or empty.
type Selection map[string]string

// Keys returns every attribute key that appears in at least one variant,
// sorted.
func Keys(variants []Attributes) []string {
	seen := map[string]struct{}{}
	for _, attrs := range variants {
		for k := range attrs {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the distinct values of key across variants in first-seen
// order.
func Values(variants []Attributes, key string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, attrs := range variants {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Matches reports whether every selected pair equals the variant's attribute.
// A variant lacking a selected key does not match.
func Matches(attrs Attributes, sel Selection) bool {
	for k, want := range sel {
		got, ok := attrs[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// AvailableValues returns the values of key that keep the selection
// satisfiable by at least one variant, holding the other selected keys fixed.
// A key that is already selected yields only its current value; deselecting is
// the caller's job.
func AvailableValues(variants []Attributes, sel Selection, key string) []string {
	if current, ok := sel[key]; ok {
		return []string{current}
	}
	out := make([]string, 0)
	for _, candidate := range Values(variants, key) {
		trial := with(sel, key, candidate)
		for _, attrs := range variants {
			if Matches(attrs, trial) {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// Available computes AvailableValues for every key.
func Available(variants []Attributes, sel Selection) map[string][]string {
	out := make(map[string][]string)
	for _, k := range Keys(variants) {
		out[k] = AvailableValues(variants, sel, k)
	}
	return out
}

// IsComplete is true when every key is selected and the selection matches
// exactly one variant. A product without variants is always complete.
func IsComplete(variants []Attributes, sel Selection) bool {
	if len(variants) == 0 {
		return true
	}
	for _, k := range Keys(variants) {
		if _, ok := sel[k]; !ok {
			return false
		}
	}
	_, n := match(variants, sel)
	return n == 1
}

// Resolve returns the index of the variant a complete selection identifies.
// ok is false while the selection is partial or contradictory, which is a
// normal state, not an error. With no variants Resolve returns (-1, true):
// the base product applies.
func Resolve(variants []Attributes, sel Selection) (index int, ok bool) {
	if len(variants) == 0 {
		return -1, true
	}
	if !IsComplete(variants, sel) {
		return -1, false
	}
	i, _ := match(variants, sel)
	return i, true
}

// match returns the first matching index and the number of matches.
func match(variants []Attributes, sel Selection) (int, int) {
	first, n := -1, 0
	for i, attrs := range variants {
		if Matches(attrs, sel) {
			if first < 0 {
				first = i
			}
			n++
		}
	}
	return first, n
}

func with(sel Selection, key, value string) Selection {
	out := make(Selection, len(sel)+1)
	for k, v := range sel {
		out[k] = v
	}
	out[key] = value
	return out
}
