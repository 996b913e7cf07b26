package value

import (
	"testing"
)

func TestRefcountRelease(t *testing.T) {
	EnableAudit(true)
	defer EnableAudit(false)

	o := NewObject()
	child := NewArray(NewInt(1), NewString("two"))
	if err := o.Set("list", child); err != nil {
		t.Fatal(err)
	}

	held := child.Incref()
	o.Decref()

	if held.Released() {
		t.Fatal("child released while still referenced")
	}
	if held.Len() != 2 {
		t.Fatalf("len %d", held.Len())
	}
	held.Decref()

	s := Audit()
	if !s.Balanced() {
		t.Fatalf("unbalanced %#v", s)
	}
	if s.Created != 4 {
		t.Fatalf("created %d", s.Created)
	}
}

func TestUnderflowIsCounted(t *testing.T) {
	EnableAudit(true)
	defer EnableAudit(false)

	v := NewString("once")
	v.Decref()
	v.Decref()

	s := Audit()
	if s.Underflows != 1 {
		t.Fatalf("underflows %d", s.Underflows)
	}
	if s.Live != 0 {
		t.Fatalf("live %d", s.Live)
	}
}

func TestSharedMutation(t *testing.T) {
	o := MustParse(`{"a":1}`)
	o.Incref()
	if err := o.Set("b", NewInt(2)); err != ErrShared {
		t.Fatalf("expected ErrShared, got %v", err)
	}
	o.Decref()
	if err := o.Set("b", NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if o.GetInt("b", 0) != 2 {
		t.Fatal(o)
	}
	o.Decref()
}

func TestSharedNestedMutation(t *testing.T) {
	kw := MustParse(`{"inner":{"x":1,"list":[{"y":2}]}}`)
	other := kw.Incref()

	inner := kw.Get("inner")
	if !inner.Shared() {
		t.Fatal("member of a shared object is not shared")
	}
	if err := inner.Set("x", NewInt(99)); err != ErrShared {
		t.Fatalf("expected ErrShared, got %v", err)
	}
	if err := inner.Get("list").At(0).Set("y", NewInt(99)); err != ErrShared {
		t.Fatalf("expected ErrShared, got %v", err)
	}
	if err := kw.SetPath("inner`x", NewInt(99)); err != ErrShared {
		t.Fatalf("expected ErrShared, got %v", err)
	}
	if got := other.String(); got != `{"inner":{"x":1,"list":[{"y":2}]}}` {
		t.Fatal(got)
	}

	// A clone is private all the way down.
	c := Writable(kw.Incref())
	if err := c.Get("inner").Set("x", NewInt(99)); err != nil {
		t.Fatal(err)
	}
	c.Decref()

	other.Decref()
	if err := inner.Set("x", NewInt(99)); err != nil {
		t.Fatal(err)
	}
	if kw.GetInt("inner`x", 0) != 99 {
		t.Fatal(kw)
	}
	kw.Decref()
}

func TestSharedMember(t *testing.T) {
	// A member held by a shared and a private container stays frozen
	// after the private one lets go.
	m := MustParse(`{"x":1}`)
	a := Obj("m", m.Incref())
	b := Obj("m", m)
	a.Incref()
	if err := b.Delete("m"); err != nil {
		t.Fatal(err)
	}
	if err := a.Get("m").Set("x", NewInt(2)); err != ErrShared {
		t.Fatalf("expected ErrShared, got %v", err)
	}
	a.Decref()
	if err := a.Get("m").Set("x", NewInt(2)); err != nil {
		t.Fatal(err)
	}
	a.Decref()
	b.Decref()
}

func TestWritable(t *testing.T) {
	o := MustParse(`{"a":1}`)
	o.Incref()
	w := Writable(o)
	if w == o {
		t.Fatal("shared value returned as writable")
	}
	if o.Refs() != 1 {
		t.Fatalf("refs %d", o.Refs())
	}
	if err := w.Set("a", NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if o.GetInt("a", 0) != 1 {
		t.Fatal("clone shares members")
	}
	w.Decref()
	o.Decref()
}

func TestSelfAppend(t *testing.T) {
	a := NewArray()
	if err := a.Append(a.Incref()); err == nil {
		t.Fatal("array contains itself")
	}
	if a.Refs() != 1 {
		t.Fatalf("refs %d", a.Refs())
	}
	a.Decref()
}

func TestObjectOrder(t *testing.T) {
	o := NewObject()
	for _, k := range []string{"z", "a", "m"} {
		o.Set(k, NewString(k))
	}
	o.Set("a", NewInt(1))
	if got := o.String(); got != `{"z":"z","a":1,"m":"m"}` {
		t.Fatal(got)
	}
	o.Delete("z")
	if got := o.String(); got != `{"a":1,"m":"m"}` {
		t.Fatal(got)
	}
	o.Decref()
}

func TestDefaults(t *testing.T) {
	v := MustParse(`{"s":"str","n":3,"r":2.5,"b":true,"d":{"x":[10,20]}}`)
	defer v.Decref()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"str", v.GetStr("s", "def"), "str"},
		{"str mismatch", v.GetStr("n", "def"), "def"},
		{"int", v.GetInt("n", -1), int64(3)},
		{"int from real", v.GetInt("r", -1), int64(-1)},
		{"real from int", v.GetReal("n", 0), float64(3)},
		{"bool", v.GetBool("b", false), true},
		{"bool missing", v.GetBool("nope", true), true},
		{"path", v.GetInt("d`x`1", 0), int64(20)},
		{"bad index", v.GetInt("d`x`9", 7), int64(7)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.got != test.want {
				t.Fatalf("%#v != %#v", test.got, test.want)
			}
		})
	}
}

func TestSetPath(t *testing.T) {
	v := NewObject()
	if err := v.SetPath("a`b`c", NewInt(1)); err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != `{"a":{"b":{"c":1}}}` {
		t.Fatal(got)
	}
	if err := v.DeletePath("a`b`c"); err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != `{"a":{"b":{}}}` {
		t.Fatal(got)
	}
	v.Decref()
}

func TestUpdate(t *testing.T) {
	a := MustParse(`{"x":1,"y":2}`)
	b := MustParse(`{"y":3,"z":{"q":true}}`)
	if err := a.Update(b); err != nil {
		t.Fatal(err)
	}
	if got := a.String(); got != `{"x":1,"y":3,"z":{"q":true}}` {
		t.Fatal(got)
	}
	if b.Get("z").Refs() != 2 {
		t.Fatalf("refs %d", b.Get("z").Refs())
	}
	a.Decref()
	b.Decref()
}

func TestIdenticalAndSimple(t *testing.T) {
	a := MustParse(`{"x":1,"y":[1,2]}`)
	b := MustParse(`{"y":[1,2],"x":1}`)
	c := MustParse(`{"x":1.0,"y":[1,2]}`)
	defer a.Decref()
	defer b.Decref()
	defer c.Decref()

	if !Identical(a, b) {
		t.Fatal("order matters")
	}
	if Identical(a, c) {
		t.Fatal("1 identical to 1.0")
	}
	if !SimpleEqual(a.Get("x"), c.Get("x")) {
		t.Fatal("1 != 1.0")
	}

	s := NewString("10")
	n := NewInt(10)
	if !SimpleEqual(s, n) {
		t.Fatal(`"10" != 10`)
	}
	if CompareSimple(NewInt(1), NewInt(2)) != -1 {
		t.Fatal("1 >= 2")
	}
	s.Decref()
	n.Decref()
}

func TestNative(t *testing.T) {
	v, err := FromNative(map[string]interface{}{
		"b": []interface{}{1, "two", 3.5, nil},
		"a": map[interface{}]interface{}{"k": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != `{"a":{"k":true},"b":[1,"two",3.5,null]}` {
		t.Fatal(got)
	}
	x := v.Export().(map[string]interface{})
	if x["b"].([]interface{})[0] != int64(1) {
		t.Fatalf("%#v", x)
	}
	v.Decref()
}

func TestFromYAML(t *testing.T) {
	v, err := FromYAML([]byte("name: counter\nattrs:\n  - count\nmax: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	if v.GetStr("name", "") != "counter" || v.GetInt("max", 0) != 3 {
		t.Fatal(v)
	}
	if v.GetStr("attrs`0", "") != "count" {
		t.Fatal(v)
	}
	v.Decref()
}
