package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

const timeout = 5 * time.Second

// Op is an operations request.  Every request gets one response:
//
//	{"id": ID, "result": N, "comment": "...", "data": ...}
//
// Ops:
//
//	tree      the tree under path (default: root)
//	gclasses  the registered GClasses
//	services  the services
//	gobj      the GObj at path
//	send      SendEvent(event, kw) to path
//	publish   path publishes event with kw
//	command   runs command with kw at path
//	stats     the stats (optionally named by stats) of path
type Op struct {
	Id      string          `json:"id,omitempty"`
	Op      string          `json:"op"`
	Path    string          `json:"path,omitempty"`
	Event   string          `json:"event,omitempty"`
	Command string          `json:"command,omitempty"`
	Stats   string          `json:"stats,omitempty"`
	Kw      json.RawMessage `json:"kw,omitempty"`
}

var (
	ErrUnknownOp = errors.New("unknown op")
	ErrNoEvent   = errors.New("no event")
)

func answer(result int, comment string, data *value.Value) *value.Value {
	if data == nil {
		data = value.NewNull()
	}
	return value.Obj("result", result, "comment", comment, "data", data)
}

func failed(err error) *value.Value {
	return answer(-1, err.Error(), nil)
}

// kw returns the request's kw (owned), or an empty object.
func (o *Op) kw() (*value.Value, error) {
	if len(o.Kw) == 0 {
		return value.NewObject(), nil
	}
	return value.Parse(o.Kw)
}

// Do runs the op on the loop and returns the response (owned).  When
// ctx ends first, the response is a failure and the op's own answer
// is dropped.
func (d *Daemon) Do(ctx context.Context, o *Op) *value.Value {
	answers := make(chan *value.Value, 1)
	err := d.Loop.Do(ctx, func() error {
		resp := d.do(o)
		if err := ctx.Err(); err != nil {
			resp.Decref()
			return err
		}
		answers <- resp
		return nil
	})
	var resp *value.Value
	if err != nil {
		resp = failed(err)
	} else {
		resp = <-answers
	}
	if o.Id != "" {
		resp.Set("id", value.NewString(o.Id))
	}
	return resp
}

// do runs on the loop.
func (d *Daemon) do(o *Op) *value.Value {
	y := d.Yuno

	switch o.Op {
	case "gclasses":
		return answer(0, "", y.Registry.ToValue())
	case "services":
		return answer(0, "", y.ServicesValue())
	}

	g := y.Root()
	if o.Path != "" {
		g = y.FindGObj(o.Path)
	}
	if g == nil {
		return failed(core.ErrNotFound)
	}

	kw, err := o.kw()
	if err != nil {
		return failed(err)
	}

	switch o.Op {
	case "tree":
		kw.Decref()
		return answer(0, "", g.ViewTree())
	case "gobj":
		kw.Decref()
		return answer(0, "", g.ToValue())
	case "send":
		if o.Event == "" {
			kw.Decref()
			return failed(ErrNoEvent)
		}
		r := g.SendEvent(o.Event, kw, y.Root())
		return answer(r, "", nil)
	case "publish":
		if o.Event == "" {
			kw.Decref()
			return failed(ErrNoEvent)
		}
		r := g.Publish(o.Event, kw)
		return answer(r, "", nil)
	case "command":
		return g.Command(sdata.Admin, o.Command, kw, y.Root())
	case "stats":
		return g.Stats(sdata.Admin, o.Stats, kw, y.Root())
	default:
		kw.Decref()
		return failed(ErrUnknownOp)
	}
}

var upgrader = websocket.Upgrader{}

// OpsHandler serves operations over WebSocket.  Each text frame is an
// Op, answered in order.
func (d *Daemon) OpsHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			d.Logger.Warn().Err(err).Msg("ops upgrade")
			return
		}
		defer c.Close()

		lg := d.Logger.With().Str("ops", c.RemoteAddr().String()).Logger()
		lg.Info().Msg("ops connected")

		for {
			mt, message, err := c.ReadMessage()
			if err != nil {
				lg.Info().Err(err).Msg("ops disconnected")
				return
			}
			if mt != websocket.TextMessage {
				continue
			}

			var resp *value.Value
			var o Op
			if err := json.Unmarshal(message, &o); err != nil {
				resp = failed(err)
			} else {
				lg.Debug().Str("op", o.Op).Str("path", o.Path).Msg("op")
				resp = d.Do(ctx, &o)
			}
			js, err := resp.MarshalJSON()
			resp.Decref()
			if err != nil {
				lg.Error().Err(err).Msg("ops marshal")
				continue
			}
			if err = c.WriteMessage(websocket.TextMessage, js); err != nil {
				lg.Warn().Err(err).Msg("ops write")
				return
			}
		}
	})
}

// ServeOps listens on the configured address until ctx is done.
func (d *Daemon) ServeOps(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.Ops)
	if err != nil {
		return err
	}
	if 0 < d.Config.MaxOpsConns {
		ln = netutil.LimitListener(ln, d.Config.MaxOpsConns)
	}

	mux := http.NewServeMux()
	mux.Handle("/ops", d.OpsHandler(ctx))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: timeout,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	d.Logger.Info().Str("addr", ln.Addr().String()).Msg("ops listening")
	if err = srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
