package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var doorSpec = `
name: Door
attrs:
  - {name: opened, type: integer, flag: RD|PSTATS, default: "0"}
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

var tree = `
gclass: Door
name: door
service: true
autostart: true
autoplay: true
zchilds:
  - gclass: C_TIMER
    name: closer
    kw: {msec: 1000}
`

var config = `
name = "test"
log_level = "warn"
tree = "TREE"
gclasses = ["DOOR"]

[storage]
kind = "json"
path = "STATE"
`

func writeFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, s string) string {
		filename := filepath.Join(dir, name)
		if err := os.WriteFile(filename, []byte(s), 0644); err != nil {
			t.Fatal(err)
		}
		return filename
	}
	door := write("door.yaml", doorSpec)
	tr := write("tree.yaml", tree)
	cfg := strings.NewReplacer(
		"TREE", tr,
		"DOOR", door,
		"STATE", filepath.Join(dir, "state.json"),
	).Replace(config)
	return write("yuno.toml", cfg)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeFiles(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "test" || cfg.Storage.Kind != "json" || len(cfg.GClasses) != 1 {
		t.Fatalf("%#v", cfg)
	}
	// Defaults survive.
	if cfg.MaxTimers != 1024 {
		t.Fatal(cfg.MaxTimers)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("nmae = \"typo\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestCouplingsConfig(t *testing.T) {
	tests := []struct {
		name string
		c    CouplingsConfig
		ok   bool
	}{
		{"stdio", CouplingsConfig{Kind: "stdio"}, true},
		{"ws", CouplingsConfig{Kind: "ws", URL: "ws://localhost:1/"}, true},
		{"wsNoURL", CouplingsConfig{Kind: "ws"}, false},
		{"mqtt", CouplingsConfig{Kind: "mqtt"}, true},
		{"unknown", CouplingsConfig{Kind: "carrier-pigeon"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.c.NewCouplings()
			if (err == nil) != tc.ok {
				t.Fatal(err)
			}
		})
	}
}

type opsClient struct {
	t *testing.T
	c *websocket.Conn
}

func (c *opsClient) do(op string) map[string]interface{} {
	c.t.Helper()
	if err := c.c.WriteMessage(websocket.TextMessage, []byte(op)); err != nil {
		c.t.Fatal(err)
	}
	c.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, bs, err := c.c.ReadMessage()
	if err != nil {
		c.t.Fatal(err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(bs, &resp); err != nil {
		c.t.Fatal(err)
	}
	return resp
}

func result(resp map[string]interface{}) int {
	n, _ := resp["result"].(float64)
	return int(n)
}

func TestDaemon(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := LoadConfig(writeFiles(t))
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDaemon(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err = d.Start(ctx); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(d.OpsHandler(ctx))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	c := &opsClient{t: t, c: conn}

	resp := c.do(`{"op":"services"}`)
	services, _ := resp["data"].([]interface{})
	if result(resp) != 0 || len(services) != 1 {
		t.Fatal(resp)
	}
	if s := services[0].(map[string]interface{}); s["service"] != "door" || s["playing"] != true {
		t.Fatal(s)
	}

	resp = c.do(`{"id":"1","op":"send","path":"door","event":"EV_OPEN"}`)
	if result(resp) != 0 || resp["id"] != "1" {
		t.Fatal(resp)
	}

	resp = c.do(`{"op":"gobj","path":"door"}`)
	if data := resp["data"].(map[string]interface{}); data["state"] != "ST_OPENED" {
		t.Fatal(resp)
	}

	resp = c.do(`{"op":"stats","path":"door"}`)
	if data := resp["data"].(map[string]interface{}); data["opened"] != float64(1) {
		t.Fatal(resp)
	}

	resp = c.do(`{"op":"gobj","path":"door` + "`" + `closer"}`)
	if data := resp["data"].(map[string]interface{}); data["gclass"] != "C_TIMER" {
		t.Fatal(resp)
	}

	resp = c.do(`{"op":"command","path":"door","command":"help"}`)
	if result(resp) != 0 {
		t.Fatal(resp)
	}

	resp = c.do(`{"op":"tree"}`)
	if result(resp) != 0 {
		t.Fatal(resp)
	}

	resp = c.do(`{"op":"gclasses"}`)
	if result(resp) != 0 {
		t.Fatal(resp)
	}

	for _, op := range []string{
		`{"op":"launch"}`,
		`{"op":"gobj","path":"nowhere"}`,
		`{"op":"send","path":"door"}`,
		`{"op":"send","path":"door","event":"EV_OPEN","kw":[}`,
		`not json`,
	} {
		if resp := c.do(op); result(resp) != -1 {
			t.Fatalf("%s: %v", op, resp)
		}
	}

	if err = d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestDoGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := NewDaemon(ctx, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err = d.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Hold the loop so the op waits behind it.
	release := make(chan bool)
	if err = d.Loop.Post(ctx, func() { <-release }); err != nil {
		t.Fatal(err)
	}

	octx, ocancel := context.WithTimeout(ctx, 20*time.Millisecond)
	resp := d.Do(octx, &Op{Id: "7", Op: "services"})
	ocancel()
	close(release)
	if resp.GetInt("result", 0) != -1 || resp.GetStr("id", "") != "7" {
		t.Fatal(resp.String())
	}
	resp.Decref()

	// The loop still answers.
	resp = d.Do(ctx, &Op{Op: "services"})
	if resp.GetInt("result", -1) != 0 {
		t.Fatal(resp.String())
	}
	resp.Decref()

	if err = d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
