package testutil

import (
	"testing"

	"github.com/Comcast/gobj/value"
)

type Person struct {
	Name string
	Age  int
}

func TestJS(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want string
	}{
		{
			name: "simple struct",
			arg:  Person{"John Doe", 30},
			want: `{"Name":"John Doe","Age":30}`,
		},
		{
			name: "nested struct",
			arg: struct {
				Person Person
				ID     int
			}{Person{"Jane Doe", 25}, 1},
			want: `{"Person":{"Name":"Jane Doe","Age":25},"ID":1}`,
		},
		{
			name: "value",
			arg:  value.Obj("b", true),
			want: `{"b":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JS(tt.arg); got != tt.want {
				t.Errorf("JS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDwim(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want string
	}{
		{"string", `{"name":"John Doe","age":30}`, `{"age":30,"name":"John Doe"}`},
		{"bytes", []byte(`["a",1]`), `["a",1]`},
		{"literal", `"hello world"`, `"hello world"`},
		{"native", map[string]interface{}{"n": 2}, `{"n":2}`},
		{"value", value.NewString("x"), `"x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Dwim(t, tt.arg)
			defer v.Decref()
			Same(t, v, tt.want)
		})
	}
}

func TestV(t *testing.T) {
	v := V(t, `{"count":3,"tags":["a","b"]}`)
	defer v.Decref()
	if n := v.GetInt("count", 0); n != 3 {
		t.Fatal(n)
	}
	if s := v.GetStr("tags`1", ""); s != "b" {
		t.Fatal(s)
	}
}

func TestAuditBalanced(t *testing.T) {
	done := Audit(t)
	v := V(t, `{"a":[1,2,3]}`)
	w := v.Incref()
	w.Decref()
	v.Decref()
	done()
}
