package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var bellSpec = `
name: Bell
base: C_TIMER
doc: Rings on every timeout.
states:
  - name: ST_RINGING
    actions:
      - event: EV_STOP_TIMER
        next: ST_IDLE
global:
  - event: EV_TIMEOUT
    next: ST_RINGING
    action:
      interpreter: goja
      source: _.publish("EV_RING", {});
events:
  - name: EV_RING
    flag: output_event
`

func TestGDoc(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "bell.yaml")
	if err := os.WriteFile(spec, []byte(bellSpec), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(context.Background(), true, []string{spec})
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "docs")
	if err = Write(reg, out, nil, true, false); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"C_TIMER.dot", "C_TIMER.mermaid", "C_TIMER.html",
		"C_IOGATE.html",
		"Bell.dot", "Bell.html",
		"index.html",
	} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatal(err)
		}
	}

	bs, err := os.ReadFile(filepath.Join(out, "Bell.mermaid"))
	if err != nil {
		t.Fatal(err)
	}
	// The global binding applies in the inherited state too.
	if !strings.Contains(string(bs), `-.->|"EV_TIMEOUT"|`) {
		t.Fatal(string(bs))
	}
}

func TestLoadMissingBase(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "bell.yaml")
	if err := os.WriteFile(spec, []byte(bellSpec), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), false, []string{spec}); err == nil {
		t.Fatal("base C_TIMER should be missing")
	}
}
