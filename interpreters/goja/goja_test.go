package goja

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/value"
)

func exec(t *testing.T, i *Interpreter, ctx context.Context, code string) (int, error) {
	t.Helper()
	compiled, err := i.Compile(ctx, code)
	if err != nil {
		t.Fatal(err)
	}
	return i.Exec(ctx, nil, code, compiled)
}

func TestActionsSimple(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tests := []struct {
		code string
		want int
		bad  bool
	}{
		{code: `return 3;`, want: 3},
		{code: `var x = 1;`, want: 0},
		{code: `return -2;`, want: -2},
		{code: `return 2.0;`, want: 2},
		{code: `return false;`, want: -1},
		{code: `return "tacos";`, want: -1, bad: true},
		{code: `likes + tacos;`, want: -1, bad: true},
		{code: `return _.esc("a b") == "a+b" ? 1 : 0;`, want: 1},
		{code: `return _.gensym().length;`, want: 32},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			got, err := exec(t, NewInterpreter(), ctx, tc.code)
			if tc.bad != (err != nil) {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatal(got)
			}
		})
	}
}

func TestActionsTimeout(t *testing.T) {
	code := `for (;;) { sleep(10); }`

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	i := NewInterpreter()
	i.Testing = true
	_, err := exec(t, i, ctx, code)
	if err != Interrupted {
		t.Fatalf("surprised by %v", err)
	}

	// The interpreter's own limit.
	i.Timeout = 30 * time.Millisecond
	if _, err = exec(t, i, context.Background(), code); err != Interrupted {
		t.Fatalf("surprised by %v", err)
	}
}

func TestActionsCronNext(t *testing.T) {
	ctx := context.Background()
	i := NewInterpreter()
	code := `var t = new Date(_.cronNext("0 0 * * *")); return t > new Date() ? 1 : 0;`
	if got, err := exec(t, i, ctx, code); err != nil || got != 1 {
		t.Fatal(got, err)
	}
	if _, err := exec(t, i, ctx, `_.cronNext("bad");`); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestActionsMatch(t *testing.T) {
	code := `
var bss = _.match({likes: "?x"}, {likes: 7, wants: "chips"});
if (bss.length != 1) return -1;
return bss[0]["?x"];
`
	if got, err := exec(t, NewInterpreter(), context.Background(), code); err != nil || got != 7 {
		t.Fatal(got, err)
	}
}

func TestLibraries(t *testing.T) {
	i := NewInterpreter()
	i.LibraryProvider = MakeMapLibraryProvider(map[string]string{
		"double": `function double(x) { return 2*x; }`,
	})
	ctx := context.Background()

	src := map[string]interface{}{
		"requires": []interface{}{"double"},
		"code":     `return double(21);`,
	}
	compiled, err := i.Compile(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if got, err := i.Exec(ctx, nil, src, compiled); err != nil || got != 42 {
		t.Fatal(got, err)
	}

	src["requires"] = "triple"
	if _, err := i.Compile(ctx, src); err == nil {
		t.Fatal("should have failed")
	}
	if _, err := i.Compile(ctx, map[string]interface{}{"requires": "double"}); err == nil {
		t.Fatal("code missing")
	}
	if _, err := i.Compile(ctx, 42); err == nil {
		t.Fatal("bad source type")
	}
}

func TestFileLibraryProvider(t *testing.T) {
	p := MakeFileLibraryProvider(t.TempDir())
	ctx := context.Background()
	for _, name := range []string{"nope", "ftp://lib.js", "file://../lib.js", "file://missing.js"} {
		if _, err := p(ctx, nil, name); err == nil {
			t.Fatal(name)
		}
	}
}

var turnstile = `
name: Turnstile
attrs:
  - {name: coins, type: integer, flag: RD|WR, default: "0"}
  - {name: passes, type: integer, flag: RD|STATS, default: "0"}
states:
  - name: ST_LOCKED
    actions:
      - event: EV_COIN
        next: ST_UNLOCKED
        action:
          interpreter: goja
          source: |
            _.write("coins", _.read("coins") + _.kw.amount);
            _.publish("EV_UNLOCKED", {coins: _.read("coins"), by: _.src});
      - event: EV_PUSH
        action:
          interpreter: goja
          source: return -1;
  - name: ST_UNLOCKED
    actions:
      - event: EV_PUSH
        action:
          interpreter: goja
          source:
            requires: lib
            code: |
              _.incrStat("passes", 1);
              _.changeState("ST_LOCKED");
              return bump(_.state() == "ST_LOCKED");
      - event: EV_KICK
        action:
          interpreter: goja
          source: |
            _.write("nope", 1);
events:
  - {name: EV_UNLOCKED, flag: output_event}
`

func TestGClassSpec(t *testing.T) {
	ctx := context.Background()
	i := NewInterpreter()
	i.LibraryProvider = MakeMapLibraryProvider(map[string]string{
		"lib": `function bump(ok) { return ok ? 1 : -1; }`,
	})

	spec, err := core.ParseGClassSpec([]byte(turnstile))
	if err != nil {
		t.Fatal(err)
	}
	reg := core.NewRegistry()
	if _, err := spec.Register(ctx, reg, map[string]core.Interpreter{"goja": i}); err != nil {
		t.Fatal(err)
	}

	var got []*value.Value
	reg.MustRegister(&core.GClass{
		Name:   "Watcher",
		States: []core.State{{Name: "ST_IDLE"}},
		Global: []core.EvAction{
			{Event: "EV_UNLOCKED", Action: func(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
				got = append(got, kw.Incref())
				return 0
			}},
		},
	})

	y := core.NewYuno(reg)
	defer y.Shutdown()
	root, err := y.CreateRoot("root", "Watcher", nil)
	if err != nil {
		t.Fatal(err)
	}
	ts, err := y.Create("gate", "Turnstile", nil, root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ts.Subscribe("EV_UNLOCKED", nil, root); err != nil {
		t.Fatal(err)
	}

	if r := ts.SendEvent("EV_PUSH", nil, root); r != -1 {
		t.Fatal(r)
	}
	if r := ts.SendEvent("EV_COIN", value.Obj("amount", 25), root); r != 0 {
		t.Fatal(r)
	}
	if ts.State() != "ST_UNLOCKED" || ts.ReadInt("coins") != 25 {
		t.Fatal(ts.State(), ts.ReadInt("coins"))
	}
	if len(got) != 1 || got[0].GetInt("coins", 0) != 25 || got[0].GetStr("by", "") != "root" {
		t.Fatal(got)
	}
	got[0].Decref()

	if r := ts.SendEvent("EV_KICK", nil, root); r != -1 {
		t.Fatal(r)
	}
	if r := ts.SendEvent("EV_PUSH", nil, root); r != 1 {
		t.Fatal(r)
	}
	if ts.State() != "ST_LOCKED" || ts.ReadInt("passes") != 1 {
		t.Fatal(ts.State(), ts.ReadInt("passes"))
	}
}

func TestDefaultInterpreter(t *testing.T) {
	as := &core.ActionSource{Interpreter: "goja", Source: `return 1;`}
	if _, err := as.Compile(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	as.Source = `return (;`
	if _, err := as.Compile(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "return") {
		t.Fatal(err)
	}
}
