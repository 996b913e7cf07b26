package value

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseKinds(t *testing.T) {
	v := MustParse(`{"i":42,"r":1.5,"e":1e3,"big":2.0,"s":"<&>","n":null,"a":[true,false]}`)
	defer v.Decref()

	kinds := map[string]Kind{
		"i":   Integer,
		"r":   Real,
		"e":   Real,
		"big": Real,
		"s":   String,
		"n":   Null,
		"a":   Array,
	}
	for k, want := range kinds {
		if got := v.Get(k).Kind(); got != want {
			t.Fatalf("%s: %s != %s", k, got, want)
		}
	}

	if got := v.String(); got != `{"i":42,"r":1.5,"e":1000.0,"big":2.0,"s":"<&>","n":null,"a":[true,false]}` {
		t.Fatal(got)
	}
}

func TestParseErrors(t *testing.T) {
	for _, js := range []string{``, `{`, `{"a":1} 2`, `[1,]`} {
		if v, err := ParseString(js); err == nil {
			t.Fatalf("parsed %q as %s", js, v)
		}
	}
}

func TestIndent(t *testing.T) {
	v := MustParse(`{"a":[1,{"b":2}],"c":{}}`)
	defer v.Decref()
	want := strings.Join([]string{
		`{`,
		`  "a": [`,
		`    1,`,
		`    {`,
		`      "b": 2`,
		`    }`,
		`  ],`,
		`  "c": {}`,
		`}`,
	}, "\n")
	if got := v.Indent(); got != want {
		t.Fatalf("\n%s\n!=\n%s", got, want)
	}
}

func TestMarshalInStruct(t *testing.T) {
	v := MustParse(`{"z":1,"a":2}`)
	defer v.Decref()
	x := struct {
		Kw *Value `json:"kw"`
	}{v}
	js, err := json.Marshal(&x)
	if err != nil {
		t.Fatal(err)
	}
	if string(js) != `{"kw":{"z":1,"a":2}}` {
		t.Fatal(string(js))
	}
}
