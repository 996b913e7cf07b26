package match

import (
	"testing"

	"github.com/Comcast/gobj/value"
)

func TestSimple(t *testing.T) {
	kw := value.MustParse(`{"topic":"temp","n":"10","ok":true,"msg":{"id":3,"tags":["a"]},"a.b":1}`)
	defer kw.Decref()

	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"empty", `{}`, true},
		{"equal", `{"topic":"temp"}`, true},
		{"differ", `{"topic":"hum"}`, false},
		{"coerced", `{"n":10}`, true},
		{"bool as int", `{"ok":1}`, true},
		{"missing", `{"nope":1}`, false},
		{"path", "{\"msg`id\":3}", true},
		{"full key", `{"a.b":1}`, true},
		{"all keys", `{"topic":"temp","n":11}`, false},
		{"any element", `[{"topic":"hum"},{"n":"10"}]`, true},
		{"empty array", `[]`, false},
		{"nested", `{"msg":{"id":3}}`, true},
		{"nested differ", `{"msg":{"id":4}}`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := value.MustParse(test.filter)
			defer f.Decref()
			if got := Simple(kw, f); got != test.want {
				t.Fatalf("%s: %v", test.filter, got)
			}
		})
	}

	if !Simple(kw, nil) {
		t.Fatal("nil filter")
	}
}

func TestMatchBindings(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		fact    string
		n       int
		check   map[string]string
	}{
		{"constant", `{"a":1}`, `{"a":1.0,"b":2}`, 1, nil},
		{"no match", `{"a":1}`, `{"a":2}`, 0, nil},
		{"variable", `{"a":"?x"}`, `{"a":[1,2]}`, 1, map[string]string{"?x": `[1,2]`}},
		{"repeated variable", `{"a":"?x","b":"?x"}`, `{"a":1,"b":2}`, 0, nil},
		{"anonymous", `{"a":"?"}`, `{"a":{}}`, 1, nil},
		{"optional", `{"a":"??x"}`, `{}`, 1, nil},
		{"property variable", `{"?k":1}`, `{"x":1,"y":2}`, 1, map[string]string{"?k": `"x"`}},
		{"array set", `["b","?x"]`, `["a","b","c"]`, 2, nil},
		{"array structured", `[{"id":"?id"}]`, `[{"id":1},{"id":2}]`, 2, nil},
		{"array missing", `["z"]`, `["a"]`, 0, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := value.MustParse(test.pattern)
			f := value.MustParse(test.fact)
			defer p.Decref()
			defer f.Decref()

			bss, err := DefaultMatcher.Matches(p, f)
			if err != nil {
				t.Fatal(err)
			}
			if len(bss) != test.n {
				t.Fatalf("%d bindings: %v", len(bss), bss)
			}
			for k, want := range test.check {
				if got := bss[0][k].String(); got != want {
					t.Fatalf("%s: %s != %s", k, got, want)
				}
			}
		})
	}
}

func TestInequality(t *testing.T) {
	p := value.MustParse(`{"n":"?<n"}`)
	defer p.Decref()
	limit := value.NewInt(10)
	defer limit.Decref()

	for _, test := range []struct {
		fact string
		ok   bool
	}{
		{`{"n":3}`, true},
		{`{"n":10}`, false},
		{`{"n":"x"}`, false},
	} {
		f := value.MustParse(test.fact)
		bss, err := Match(p, f, Bindings{"?<n": limit})
		if err != nil {
			t.Fatal(err)
		}
		if ok := len(bss) == 1; ok != test.ok {
			t.Fatalf("%s: %v", test.fact, bss)
		}
		if test.ok && bss[0]["?n"].Int() != 3 {
			t.Fatal(bss[0])
		}
		f.Decref()
	}
}

func TestBadPropertyVariable(t *testing.T) {
	p := value.MustParse(`{"?k":1,"b":2}`)
	defer p.Decref()
	f := value.MustParse(`{"b":2}`)
	defer f.Decref()
	if _, err := DefaultMatcher.Matches(p, f); err == nil {
		t.Fatal("accepted")
	}
}
