package tools

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

func nop(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	return 0
}

// turnstile registers a Turnstile with a Base that contributes a
// global binding.
func turnstile(t *testing.T) (*core.Registry, *core.GClass) {
	t.Helper()
	reg := core.NewRegistry()
	base := &core.GClass{
		Name:   "Gate",
		Doc:    "A gate.",
		Attrs:  sdata.Schema{{Name: "opened", Type: sdata.Integer, Flag: sdata.RD | sdata.Stats, Default: "0"}},
		States: []core.State{{Name: "ST_LOCKED"}},
		Global: []core.EvAction{{Event: "EV_RESET", NextState: "ST_LOCKED"}},
	}
	gc := &core.GClass{
		Name: "Turnstile",
		Doc:  "A coin-operated turnstile. Push to pass.",
		Base: base,
		Attrs: sdata.Schema{
			{Name: "price", Type: sdata.Integer, Flag: sdata.RD | sdata.WR, Default: "25", Description: "Price in *cents*"},
		},
		States: []core.State{
			{Name: "ST_LOCKED", Actions: []core.EvAction{
				{Event: "EV_COIN", Action: nop, NextState: "ST_UNLOCKED"},
				{Event: "EV_PUSH", Action: nop},
			}},
			{Name: "ST_UNLOCKED", Actions: []core.EvAction{
				{Event: "EV_PUSH", Action: nop, NextState: "ST_LOCKED"},
			}},
		},
		Events: []core.EventType{{Name: "EV_PASSED", Flag: core.EvfOutputEvent, Description: "Someone passed"}},
	}
	if err := reg.Register(base); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(gc); err != nil {
		t.Fatal(err)
	}
	return reg, gc
}

func TestEdges(t *testing.T) {
	_, gc := turnstile(t)
	edges, err := Edges(gc)
	if err != nil {
		t.Fatal(err)
	}

	type key struct{ from, event string }
	got := make(map[key]*Edge)
	for _, e := range edges {
		got[key{e.From, e.Event}] = e
	}

	tests := []struct {
		from, event, to string
		global          bool
		owner           string
		loop            bool
	}{
		{"ST_LOCKED", "EV_COIN", "ST_UNLOCKED", false, "Turnstile", false},
		{"ST_LOCKED", "EV_PUSH", "", false, "Turnstile", true},
		{"ST_UNLOCKED", "EV_PUSH", "ST_LOCKED", false, "Turnstile", false},
		{"ST_UNLOCKED", "EV_RESET", "ST_LOCKED", true, "Gate", false},
		{"ST_LOCKED", "EV_RESET", "ST_LOCKED", true, "Gate", true},
	}
	for _, tc := range tests {
		t.Run(tc.from+"/"+tc.event, func(t *testing.T) {
			e, have := got[key{tc.from, tc.event}]
			if !have {
				t.Fatal("missing")
			}
			if e.To != tc.to || e.Global != tc.global || e.Owner != tc.owner || e.Loop() != tc.loop {
				t.Fatalf("%#v", e)
			}
		})
	}
	if _, have := got[key{"ST_UNLOCKED", "EV_COIN"}]; have {
		t.Fatal("EV_COIN is not bound in ST_UNLOCKED")
	}

	if _, err := Edges(&core.GClass{Name: "Empty"}); err != ErrNoStates {
		t.Fatal(err)
	}
}

func TestAttrDefaults(t *testing.T) {
	_, gc := turnstile(t)
	s, err := AttrDefaults(gc)
	if err != nil {
		t.Fatal(err)
	}
	// Base attributes come first.
	if want := "opened: \"0\"\nprice: \"25\"\n"; s != want {
		t.Fatalf("%q", s)
	}
}

func TestDot(t *testing.T) {
	_, gc := turnstile(t)
	var out bytes.Buffer
	if err := Dot(gc, &out, "ST_LOCKED", "ST_UNLOCKED"); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	for _, want := range []string{
		`digraph "Turnstile" {`,
		`"ST_LOCKED" -> "ST_UNLOCKED" [ color="red" style="solid" label = <EV_COIN> ]`,
		`"ST_UNLOCKED" -> "ST_LOCKED" [ color="black" style="dashed"`,
		`fillcolor="#f98b8b"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %s in\n%s", want, s)
		}
	}
}

func TestMermaid(t *testing.T) {
	_, gc := turnstile(t)

	t.Run("default", func(t *testing.T) {
		var out bytes.Buffer
		if err := Mermaid(gc, &out, nil, "", ""); err != nil {
			t.Fatal(err)
		}
		s := out.String()
		if !strings.HasPrefix(s, "graph TB\n") {
			t.Fatal(s)
		}
		if !strings.Contains(s, `s1(["ST_LOCKED"])`) {
			t.Fatal(s)
		}
		if !strings.Contains(s, `s1 -->|"EV_COIN"| s2`) {
			t.Fatal(s)
		}
		if !strings.Contains(s, `s2 -.->|"EV_RESET"| s1`) {
			t.Fatal(s)
		}
		if strings.Contains(s, `s1 -->|"EV_PUSH"| s1`) {
			t.Fatal(s)
		}
	})

	t.Run("loops", func(t *testing.T) {
		var out bytes.Buffer
		if err := Mermaid(gc, &out, &MermaidOpts{ShowLoops: true}, "", ""); err != nil {
			t.Fatal(err)
		}
		if s := out.String(); !strings.Contains(s, `s1 -->|"EV_PUSH"| s1`) {
			t.Fatal(s)
		}
	})
}

func TestRenderGClassPage(t *testing.T) {
	_, gc := turnstile(t)

	for _, graph := range []bool{false, true} {
		var out bytes.Buffer
		if err := RenderGClassPage(gc, &out, []string{"gclass.css"}, graph); err != nil {
			t.Fatal(err)
		}
		s := out.String()
		if !strings.Contains(s, "<em>cents</em>") {
			t.Fatal("description not rendered as Markdown")
		}
		if !strings.Contains(s, `<a href="#ST_UNLOCKED">`) {
			t.Fatal(s)
		}
		if strings.Contains(s, `class="mermaid"`) != graph {
			t.Fatal(graph)
		}
	}
}

var doorSpec = `
name: Door
doc: A door that remembers how often it opened.
attrs:
  - name: opened
    type: integer
    flag: RD|PSTATS
    default: "0"
states:
  - name: ST_CLOSED
    actions:
      - event: EV_OPEN
        next: ST_OPENED
        action:
          interpreter: goja
          source: _.incrStat("opened", 1);
  - name: ST_OPENED
    actions:
      - event: EV_CLOSE
        next: ST_CLOSED
`

func TestReadAndRenderGClassPage(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "door.yaml")
	if err := os.WriteFile(filename, []byte(doorSpec), 0644); err != nil {
		t.Fatal(err)
	}

	gc, err := ReadGClassSpec(context.Background(), filename, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gc.Initial() != "ST_CLOSED" {
		t.Fatal(gc.Initial())
	}

	var out bytes.Buffer
	if err := ReadAndRenderGClassPage(filename, nil, &out, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "<title>Door</title>") {
		t.Fatal(out.String())
	}
}

func TestIndex(t *testing.T) {
	reg, _ := turnstile(t)
	var out bytes.Buffer
	if err := Index(reg, &out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if strings.Index(s, "Gate.html") > strings.Index(s, "Turnstile.html") {
		t.Fatal(s)
	}
}
