package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

var kinds = []struct {
	kind    string
	durable bool
}{
	{"bolt", true},
	{"json", true},
	{"mem", false},
}

func open(t *testing.T, kind, filename string) Storage {
	t.Helper()
	s, err := New(kind, filename, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	for _, k := range kinds {
		t.Run(k.kind, func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), "attrs")
			s := open(t, k.kind, filename)

			v, err := s.LoadAttrs(ctx, "nope")
			if err != nil || v != nil {
				t.Fatal(v, err)
			}

			attrs := value.Obj("count", 3, "tags", value.MustParse(`["a","b"]`))
			if err := s.SaveAttrs(ctx, "C^c", attrs); err != nil {
				t.Fatal(err)
			}
			attrs.Decref()
			if err := s.SaveAttrs(ctx, "C^b", value.NewObject()); err != nil {
				t.Fatal(err)
			}

			keys, err := s.Keys(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(keys) != 2 || keys[0] != "C^b" || keys[1] != "C^c" {
				t.Fatal(keys)
			}

			if k.durable {
				if err := s.Close(ctx); err != nil {
					t.Fatal(err)
				}
				s = open(t, k.kind, filename)
			}
			defer s.Close(ctx)

			v, err = s.LoadAttrs(ctx, "C^c")
			if err != nil {
				t.Fatal(err)
			}
			if v.GetInt("count", 0) != 3 || v.GetStr("tags`1", "") != "b" {
				t.Fatal(v.String())
			}
			v.Decref()

			if err := s.RemoveAttrs(ctx, "C^c"); err != nil {
				t.Fatal(err)
			}
			if err := s.RemoveAttrs(ctx, "C^c"); err != nil {
				t.Fatal(err)
			}
			if v, _ = s.LoadAttrs(ctx, "C^c"); v != nil {
				t.Fatal(v.String())
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New("tape", "", ""); err == nil {
		t.Fatal("should have failed")
	}
	if _, err := New("bolt", "x.db", ""); err == nil {
		t.Fatal("bolt without a bucket")
	}
	s, err := New("none", "", "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.SaveAttrs(ctx, "k", value.NewObject()); err != nil {
		t.Fatal(err)
	}
	if v, err := s.LoadAttrs(ctx, "k"); v != nil || err != nil {
		t.Fatal(v, err)
	}
}

func TestServiceRestart(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "yuno.db")

	gc := &core.GClass{
		Name:   "Odometer",
		States: []core.State{{Name: "ST_IDLE"}},
		Attrs: sdata.Schema{
			{Name: "km", Type: sdata.Integer, Flag: sdata.RD | sdata.WR | sdata.Persist, Default: "0"},
			{Name: "trip", Type: sdata.Integer, Flag: sdata.RD | sdata.WR, Default: "0"},
		},
	}

	run := func(f func(y *core.Yuno, g *core.GObj)) {
		reg := core.NewRegistry()
		reg.MustRegister(gc)
		s := open(t, "bolt", filename)
		defer s.Close(ctx)
		y := core.NewYuno(reg)
		y.Store = s
		defer y.Shutdown()
		g, err := y.CreateService("odo", "Odometer", nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		f(y, g)
	}

	run(func(y *core.Yuno, g *core.GObj) {
		g.WriteInt("km", 1200)
		g.WriteInt("trip", 12)
		if err := g.SaveAttrs(); err != nil {
			t.Fatal(err)
		}
	})
	run(func(y *core.Yuno, g *core.GObj) {
		if n := g.ReadInt("km"); n != 1200 {
			t.Fatal(n)
		}
		if n := g.ReadInt("trip"); n != 0 {
			t.Fatal(n)
		}
	})
}
