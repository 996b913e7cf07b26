package match

import (
	"github.com/Comcast/gobj/value"
)

// Simple reports whether kw (borrowed) passes filter (borrowed).
//
// A nil filter, or an empty object, passes everything.  An array
// filter passes if any of its elements does; an empty array passes
// nothing.  An object filter passes if every key matches: the key is
// a "`" path into kw (or, failing that, a plain key), and the value
// found there must compare equal to the filter value with
// value.CompareSimple.  A structured filter value is applied to the
// sub-record at its key.
func Simple(kw, filter *value.Value) bool {
	if filter == nil {
		return true
	}
	if filter.IsObject() && filter.Len() == 0 {
		return true
	}
	return simple(kw, filter)
}

func simple(kw, filter *value.Value) bool {
	switch filter.Kind() {
	case value.Array:
		for i := 0; i < filter.Len(); i++ {
			if simple(kw, filter.At(i)) {
				return true
			}
		}
		return false

	case value.Object:
		if filter.Len() == 0 {
			return false
		}
		matched := true
		filter.Each(func(path string, want *value.Value) bool {
			got := kw.GetPath(path)
			if got == nil {
				matched = false
				return false
			}
			if want.IsArray() || want.IsObject() {
				if got.IsObject() && want.IsObject() && want.Len() == 0 {
					return true
				}
				matched = simple(got, want)
				return matched
			}
			if value.CompareSimple(got, want) != 0 {
				matched = false
				return false
			}
			return true
		})
		return matched
	}
	return false
}
