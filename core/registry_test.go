package core

import (
	"errors"
	"testing"

	"github.com/Comcast/gobj/sdata"
)

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name string
		gc   *GClass
	}{
		{"bad name", &GClass{Name: "a^b", States: []State{{Name: "S"}}}},
		{"no states", &GClass{Name: "Empty"}},
		{"duplicate state", &GClass{Name: "X", States: []State{{Name: "S"}, {Name: "S"}}}},
		{"duplicate event", &GClass{Name: "X", States: []State{{Name: "S", Actions: []EvAction{{Event: "E"}, {Event: "E"}}}}}},
		{"bad default", &GClass{
			Name:   "X",
			Attrs:  sdata.Schema{{Name: "n", Type: sdata.Integer, Default: "many"}},
			States: []State{{Name: "S"}},
		}},
		{"required without default", &GClass{
			Name:   "X",
			Attrs:  sdata.Schema{{Name: "url", Type: sdata.String, Flag: sdata.Required}},
			States: []State{{Name: "S"}},
		}},
		{"command without handler", &GClass{
			Name:     "X",
			States:   []State{{Name: "S"}},
			Commands: []Command{{Name: "c"}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewRegistry().Register(tc.gc)
			if err == nil {
				t.Fatal("should have failed")
			}
			if _, is := err.(*BadGClass); !is {
				t.Fatalf("%T %s", err, err)
			}
		})
	}
}

func TestRegisterUnknownNextState(t *testing.T) {
	gc := &GClass{
		Name:   "X",
		States: []State{{Name: "S", Actions: []EvAction{{Event: "E", NextState: "NOWHERE"}}}},
	}
	err := NewRegistry().Register(gc)
	if _, is := err.(*UnknownState); !is {
		t.Fatalf("%T %v", err, err)
	}
}

func TestRegisterDuplicateAndSealed(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(counterGClass())
	if err := reg.Register(counterGClass()); !errors.Is(err, ErrDuplicateGClass) {
		t.Fatal(err)
	}

	y := NewYuno(reg)
	g := mustCreate(t, y, "c", "Counter", nil)
	if !reg.Sealed() {
		t.Fatal("not sealed")
	}
	if err := reg.Register(publisherGClass()); err != ErrRegistrySealed {
		t.Fatal(err)
	}
	g.Destroy()

	if _, err := y.Create("x", "Nope", nil, nil); !errors.Is(err, ErrGClassNotFound) {
		t.Fatal(err)
	}
}

func TestRegisterBaseMustBeRegistered(t *testing.T) {
	base := counterGClass()
	child := &GClass{Name: "Child", Base: base}
	if err := NewRegistry().Register(child); err == nil {
		t.Fatal("should have failed")
	}
}

func TestInheritedSchema(t *testing.T) {
	base := counterGClass()
	child := &GClass{
		Name: "Child",
		Base: base,
		Attrs: sdata.Schema{
			{Name: "count", Type: sdata.Integer, Flag: sdata.RD | sdata.WR, Default: "10"},
			{Name: "extra", Type: sdata.String, Flag: sdata.RD},
		},
	}
	reg := NewRegistry()
	reg.MustRegister(base, child)

	names := child.Schema().Names()
	if !sameStrings(names, []string{"count", "secret", "extra"}) {
		t.Fatal(names)
	}
	if d, _ := child.Schema().Find("count"); d.Default != "10" {
		t.Fatal(d.Default)
	}
	if !child.IsA("Counter") || base.IsA("Child") {
		t.Fatal("IsA")
	}
	if child.initialState() != "ST_IDLE" {
		t.Fatal(child.initialState())
	}
	if _, have := child.FindCommand("zero"); !have {
		t.Fatal("alias not inherited")
	}
}

func TestSingleton(t *testing.T) {
	gc := counterGClass()
	gc.Flag = Singleton
	y := newYuno(t, gc)
	g := mustCreate(t, y, "one", "Counter", nil)
	if _, err := y.Create("two", "Counter", nil, nil); err != ErrSingleton {
		t.Fatal(err)
	}
	g.Destroy()
	g = mustCreate(t, y, "three", "Counter", nil)
	g.Destroy()
}

func TestParseFlags(t *testing.T) {
	f, err := ParseGClassFlag("manual_start|GCFLAG_SINGLETON")
	if err != nil {
		t.Fatal(err)
	}
	if f != ManualStart|Singleton {
		t.Fatal(f.Names())
	}
	if _, err := ParseGClassFlag("bogus"); err == nil {
		t.Fatal("should have failed")
	}
	ef, err := ParseEventFlag("output_event no_warn_subs")
	if err != nil {
		t.Fatal(err)
	}
	if ef != EvfOutputEvent|EvfNoWarnSubs {
		t.Fatal(ef.Names())
	}
	gf, err := ParseGObjFlag("service|autostart")
	if err != nil {
		t.Fatal(err)
	}
	if gf != FlagService|FlagAutostart {
		t.Fatal(gf.Names())
	}
}
