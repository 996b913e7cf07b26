/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"errors"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/loop"
	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/value"
)

const (
	GClassName = "C_IOGATE"

	EvOnMessage = "EV_ON_MESSAGE"
	EvOnOpen    = "EV_ON_OPEN"
	EvOnClose   = "EV_ON_CLOSE"
	EvSend      = "EV_SEND"

	// evRx carries an incoming Message from the Loop.
	evRx = "EV_RX_MESSAGE"

	stClosed = "ST_CLOSED"
	stOpened = "ST_OPENED"
)

var ErrUnknownCouplings = errors.New("unknown couplings")

// Env is what C_IOGATE instances share.  Each gate names its
// Couplings with the attribute "couplings".
type Env struct {
	Loop      *loop.Loop
	Couplings map[string]Couplings
}

type gate struct {
	c      Couplings
	out    chan *Message
	cancel context.CancelFunc
}

func gateOf(g *core.GObj) *gate {
	p, _ := g.Priv.(*gate)
	if p == nil {
		p = &gate{}
		g.Priv = p
	}
	return p
}

// IOGate returns the C_IOGATE GClass bound to env.
func IOGate(env *Env) *core.GClass {
	return &core.GClass{
		Name: GClassName,
		Doc:  "Publishes the messages of a Couplings and writes what it is sent.",
		Attrs: sdata.Schema{
			{Name: "couplings", Type: sdata.String, Flag: sdata.RD | sdata.Required, Default: "console", Description: "Name of the Couplings"},
			{Name: "default_topic", Type: sdata.String, Flag: sdata.RD | sdata.WR, Default: "misc", Description: "Topic of EV_SEND without one"},
			{Name: "rxMsgs", Type: sdata.Integer, Flag: sdata.RD | sdata.RStats, Default: "0", Description: "Messages received"},
			{Name: "txMsgs", Type: sdata.Integer, Flag: sdata.RD | sdata.RStats, Default: "0", Description: "Messages sent"},
			{Name: "txDropped", Type: sdata.Integer, Flag: sdata.RD | sdata.RStats, Default: "0", Description: "Messages not sent"},
		},
		States: []core.State{
			{
				Name: stClosed,
				Actions: []core.EvAction{
					{Event: EvSend, Action: acDrop},
				},
			},
			{
				Name: stOpened,
				Actions: []core.EvAction{
					{Event: evRx, Action: acRx},
					{Event: EvSend, Action: acSend},
				},
			},
		},
		Events: []core.EventType{
			{Name: EvOnMessage, Flag: core.EvfOutputEvent, Description: `{"topic","payload"} received`},
			{Name: EvOnOpen, Flag: core.EvfOutputEvent | core.EvfNoWarnSubs, Description: "Couplings started"},
			{Name: EvOnClose, Flag: core.EvfOutputEvent | core.EvfNoWarnSubs, Description: "Couplings stopped or input exhausted"},
			{Name: EvSend, Description: `{"topic","payload"} to write; without "payload" the whole kw is written`},
		},
		Methods: core.Methods{
			Start: func(g *core.GObj) error {
				return env.open(g)
			},
			Stop: func(g *core.GObj) error {
				return env.close(g)
			},
		},
	}
}

// Register registers C_IOGATE.
func Register(reg *core.Registry, env *Env) error {
	return reg.Register(IOGate(env))
}

func (env *Env) open(g *core.GObj) error {
	name := g.ReadStr("couplings")
	c, have := env.Couplings[name]
	if !have {
		return errors.New(ErrUnknownCouplings.Error() + ": " + name)
	}

	y := g.Yuno()
	ctx, cancel := context.WithCancel(y.Ctx)
	if err := c.Start(ctx); err != nil {
		cancel()
		return err
	}
	in, out, done, err := c.IO(ctx)
	if err != nil {
		cancel()
		c.Stop(ctx)
		return err
	}

	p := gateOf(g)
	p.c, p.out, p.cancel = c, out, cancel

	h := g.Handle()
	post := func(f func(x *core.GObj)) {
		err := env.Loop.Post(ctx, func() {
			// The gate might have been stopped meanwhile.
			if x := y.Get(h); x != nil && gateOf(x).c == c && ctx.Err() == nil {
				f(x)
			}
		})
		if err != nil && ctx.Err() == nil {
			y.Logger.Warn().Err(err).Str("couplings", name).Msg("input lost")
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-in:
				post(func(x *core.GObj) {
					x.SendEvent(evRx, messageValue(m), x)
				})
			case <-done:
				post(func(x *core.GObj) {
					x.Publish(EvOnClose, value.Obj("couplings", name, "eof", true))
				})
				return
			}
		}
	}()

	g.ChangeState(stOpened)
	g.Publish(EvOnOpen, value.Obj("couplings", name))
	return nil
}

func (env *Env) close(g *core.GObj) error {
	p := gateOf(g)
	if p.c == nil {
		return nil
	}
	c := p.c
	p.cancel()
	*p = gate{}

	err := c.Stop(g.Yuno().Ctx)
	g.ChangeState(stClosed)
	g.Publish(EvOnClose, value.Obj("couplings", g.ReadStr("couplings")))
	return err
}

// messageValue makes the kw of EV_ON_MESSAGE.  A payload that isn't
// JSON becomes a string.
func messageValue(m *Message) *value.Value {
	payload, err := value.Parse(m.Payload)
	if err != nil {
		payload = value.NewString(string(m.Payload))
	}
	kw := value.Obj("payload", payload)
	if m.Topic != "" {
		kw.Set("topic", value.NewString(m.Topic))
	}
	return kw
}

// outgoing makes the Message for an EV_SEND kw (borrowed).
func outgoing(kw *value.Value, defaultTopic string) (*Message, error) {
	m := &Message{
		Topic: kw.GetStr("topic", defaultTopic),
	}
	payload := kw.Get("payload")
	if payload == nil {
		payload = kw
	}
	js, err := payload.MarshalJSON()
	if err != nil {
		return nil, err
	}
	m.Payload = js
	return m, nil
}

func acRx(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	g.IncrStat("rxMsgs", 1)
	g.Publish(EvOnMessage, kw.Incref())
	return 0
}

func acSend(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	m, err := outgoing(kw, g.ReadStr("default_topic"))
	if err != nil {
		g.Logger().Error().Err(err).Msg("send")
		return -1
	}
	select {
	case gateOf(g).out <- m:
		g.IncrStat("txMsgs", 1)
		return 0
	default:
		g.IncrStat("txDropped", 1)
		g.Logger().Warn().Str("topic", m.Topic).Msg("output full; message dropped")
		return -1
	}
}

func acDrop(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	g.IncrStat("txDropped", 1)
	g.Logger().Warn().Msg("gate closed; message dropped")
	return -1
}
