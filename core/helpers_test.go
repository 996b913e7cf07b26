package core

import (
	"testing"

	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

// delivery is one event received by a recorder.
type delivery struct {
	to    string
	event string
	src   string
	kw    *value.Value
}

// recorder collects deliveries.  Several GObjs may share one.
type recorder struct {
	got []delivery

	// ret is returned by the recording Action.
	ret int
}

func (r *recorder) events() []string {
	acc := make([]string, len(r.got))
	for i, d := range r.got {
		acc[i] = d.event
	}
	return acc
}

func (r *recorder) release() {
	for _, d := range r.got {
		d.kw.Decref()
	}
	r.got = nil
}

func record(g *GObj, event string, kw *value.Value, src *GObj) int {
	r := g.Priv.(*recorder)
	var from string
	if src != nil {
		from = src.Name()
	}
	r.got = append(r.got, delivery{
		to:    g.Name(),
		event: event,
		src:   from,
		kw:    kw.Incref(),
	})
	return r.ret
}

// recorderGClass binds every given event to record in any state.
func recorderGClass(name string, events ...string) *GClass {
	gc := &GClass{
		Name:   name,
		States: []State{{Name: "ST_IDLE"}},
	}
	for _, e := range events {
		gc.Global = append(gc.Global, EvAction{Event: e, Action: record})
	}
	return gc
}

// publisherGClass declares output events and binds nothing.
func publisherGClass() *GClass {
	return &GClass{
		Name:   "Pub",
		States: []State{{Name: "ST_IDLE"}},
		Events: []EventType{
			{Name: "EV_PING", Flag: EvfOutputEvent},
			{Name: "EV_QUIET", Flag: EvfOutputEvent | EvfNoWarnSubs},
		},
	}
}

func counterGClass() *GClass {
	return &GClass{
		Name: "Counter",
		Attrs: sdata.Schema{
			{Name: "count", Type: sdata.Integer, Flag: sdata.RD | sdata.WR | sdata.Persist, Default: "0"},
			{Name: "secret", Type: sdata.String, Flag: sdata.RD | sdata.AuthzW},
		},
		States: []State{
			{
				Name: "ST_IDLE",
				Actions: []EvAction{
					{
						Event: "EV_INC",
						Action: func(g *GObj, event string, kw *value.Value, src *GObj) int {
							g.WriteInt("count", g.ReadInt("count")+1)
							return 0
						},
					},
				},
			},
		},
		Commands: []Command{
			{
				Name:        "reset",
				Alias:       []string{"zero"},
				Description: "Set count to 0",
				Authz:       sdata.GrantWrite,
				Handler: func(g *GObj, cmd string, kw *value.Value, src *GObj) *value.Value {
					g.WriteInt("count", 0)
					return value.Obj("count", 0)
				},
			},
		},
	}
}

func newYuno(t *testing.T, gcs ...*GClass) *Yuno {
	t.Helper()
	reg := NewRegistry()
	for _, gc := range gcs {
		if err := reg.Register(gc); err != nil {
			t.Fatal(err)
		}
	}
	return NewYuno(reg)
}

func mustCreate(t *testing.T, y *Yuno, name, gclass string, parent *GObj) *GObj {
	t.Helper()
	g, err := y.Create(name, gclass, nil, parent)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
