package sdata

import (
	"errors"
	"testing"

	"github.com/Comcast/gobj/value"
)

var testSchema = Schema{
	{Name: "url", Type: String, Flag: RD | Required, Default: "tcp://localhost", Description: "Peer url"},
	{Name: "timeout", Type: Integer, Flag: Writable | Persist, Default: "1000"},
	{Name: "ratio", Type: Real, Flag: Writable, Default: "0.5"},
	{Name: "enabled", Type: Boolean, Flag: RD | Volatil, Default: "true"},
	{Name: "tags", Type: List, Flag: Writable, Default: `["a"]`},
	{Name: "secret", Type: String, Flag: AuthzR | AuthzW},
	{Name: "hidden", Type: Dict, Flag: NotAccess},
	{Name: "rx", Type: Integer, Flag: RStats},
	{Name: "total", Type: Integer, Flag: PStats},
	{Name: "conn", Type: Pointer},
}

func newTestStore(t *testing.T) *Store {
	s, err := NewStore(testSchema)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
	}{
		{"empty name", Schema{{Type: String}}},
		{"duplicate", Schema{{Name: "a", Type: String}, {Name: "a", Type: Integer}}},
		{"bad type", Schema{{Name: "a"}}},
		{"bad int default", Schema{{Name: "a", Type: Integer, Default: "ten"}}},
		{"list default not a list", Schema{{Name: "a", Type: List, Default: `{}`}}},
		{"string stats", Schema{{Name: "a", Type: String, Flag: Stats}}},
		{"pointer default", Schema{{Name: "a", Type: Pointer, Default: "x"}}},
		{"required without default", Schema{{Name: "a", Type: String, Flag: Required}}},
		{"required int without default", Schema{{Name: "a", Type: Integer, Flag: Required}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.schema.Validate()
			if err == nil {
				t.Fatal("accepted")
			}
			if _, is := err.(*BadSchema); !is {
				t.Fatalf("%T", err)
			}
		})
	}
	if err := testSchema.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	if got := s.Get("timeout").Int(); got != 1000 {
		t.Fatal(got)
	}
	if got := s.Get("ratio").Real(); got != 0.5 {
		t.Fatal(got)
	}
	if !s.Get("enabled").Bool() {
		t.Fatal("enabled")
	}
	if got := s.Get("tags").String(); got != `["a"]` {
		t.Fatal(got)
	}
	if !s.Get("conn").IsNull() {
		t.Fatal(s.Get("conn"))
	}
}

func TestAccess(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	tests := []struct {
		name  string
		authz Authz
		attr  string
		write bool
		err   error
	}{
		{"read public", Anonymous, "timeout", false, nil},
		{"read unknown", Admin, "nope", false, ErrUnknownAttr},
		{"read private", Anonymous, "conn", false, ErrNotReadable},
		{"read hidden", Admin, "hidden", false, ErrNotAccess},
		{"read hidden internal", Internal, "hidden", false, nil},
		{"read authz anon", Anonymous, "secret", false, ErrUnauthorized},
		{"read authz granted", GrantRead, "secret", false, nil},
		{"write read-only", Admin, "url", true, ErrReadOnly},
		{"write authz anon", GrantRead, "secret", true, ErrUnauthorized},
		{"write authz granted", GrantWrite, "secret", true, nil},
		{"write internal", Internal, "url", true, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var err error
			if test.write {
				err = s.Write(test.authz, test.attr, value.NewString("x"))
			} else {
				_, err = s.Read(test.authz, test.attr)
			}
			if !errors.Is(err, test.err) {
				t.Fatalf("%v != %v", err, test.err)
			}
		})
	}
}

func TestWriteTypes(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	if err := s.Write(Admin, "timeout", value.NewString("10")); !errors.Is(err, ErrWrongType) {
		t.Fatal(err)
	}
	if s.Get("timeout").Int() != 1000 {
		t.Fatal("slot changed on failed write")
	}
	if err := s.Write(Admin, "timeout", value.NewReal(20)); err != nil {
		t.Fatal(err)
	}
	if v := s.Get("timeout"); !v.IsInteger() || v.Int() != 20 {
		t.Fatal(v)
	}
	if err := s.Write(Admin, "timeout", value.NewReal(2.5)); !errors.Is(err, ErrWrongType) {
		t.Fatal(err)
	}
	if err := s.Write(Admin, "ratio", value.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if v := s.Get("ratio"); !v.IsReal() || v.Real() != 2 {
		t.Fatal(v)
	}
	if err := s.Set("conn", value.NewOpaque(s)); err != nil {
		t.Fatal(err)
	}
}

func TestBulk(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	kw := value.MustParse(`{"timeout":5,"ratio":1.5,"url":"x","bogus":1}`)
	written, unknown, err := s.WriteAttrs(Anonymous, kw, 0)
	kw.Decref()
	if len(unknown) != 1 || unknown[0] != "bogus" {
		t.Fatal(unknown)
	}
	// url is read-only for Anonymous.
	if len(written) != 2 || written[0] != "timeout" || written[1] != "ratio" {
		t.Fatal(written)
	}
	es, is := err.(Errors)
	if !is || len(es) != 1 || !errors.Is(es[0], ErrReadOnly) {
		t.Fatal(err)
	}
	if s.Get("timeout").Int() != 5 || s.Get("ratio").Real() != 1.5 {
		t.Fatal("bulk write")
	}

	all := s.ReadAttrs(Anonymous, 0)
	if got := all.Keys(); len(got) != 5 {
		t.Fatal(got)
	}
	all.Decref()

	persisted := s.Persistent()
	if got := persisted.String(); got != `{"timeout":5,"total":0}` {
		t.Fatal(got)
	}
	persisted.Decref()
}

func TestStatsAndReset(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	if _, err := s.Incr("timeout", 1); !errors.Is(err, ErrNotStats) {
		t.Fatal(err)
	}
	s.Incr("rx", 3)
	if n, _ := s.Incr("total", 2); n != 2 {
		t.Fatal(n)
	}
	held := s.Stats(Admin)
	s.Incr("rx", 1)
	if held.GetInt("rx", 0) != 3 {
		t.Fatal("stats snapshot changed")
	}
	held.Decref()

	s.ResetStats()
	if s.Get("rx").Int() != 0 || s.Get("total").Int() != 2 {
		t.Fatal("reset")
	}

	s.Set("enabled", value.NewBool(false))
	s.ResetVolatile()
	if !s.Get("enabled").Bool() {
		t.Fatal("volatile not reset")
	}
}

func TestMissing(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	if got := s.Missing(); len(got) != 0 {
		t.Fatal(got)
	}
	// A required value emptied after creation is missing again.
	s.Set("url", value.NewString(""))
	if got := s.Missing(); len(got) != 1 || got[0] != "url" {
		t.Fatal(got)
	}
}

func TestLoadPersistent(t *testing.T) {
	s := newTestStore(t)
	defer s.Release()

	kw := value.MustParse(`{"timeout":7,"ratio":9.0,"total":40}`)
	if err := s.LoadPersistent(kw); err != nil {
		t.Fatal(err)
	}
	kw.Decref()
	if s.Get("timeout").Int() != 7 || s.Get("total").Int() != 40 {
		t.Fatal("not loaded")
	}
	if s.Get("ratio").Real() != 0.5 {
		t.Fatal("non-persistent attribute loaded")
	}
}

func TestFlagText(t *testing.T) {
	f, err := ParseFlag("sdf_rd|WR, persist")
	if err != nil {
		t.Fatal(err)
	}
	if f != RD|WR|Persist {
		t.Fatal(f)
	}
	if f.String() != "RD|WR|PERSIST" {
		t.Fatal(f.String())
	}
	if _, err := ParseFlag("RD|FAST"); err == nil {
		t.Fatal("accepted FAST")
	}
	var typ Type
	if err := typ.UnmarshalText([]byte("int")); err != nil || typ != Integer {
		t.Fatal(typ, err)
	}
}
