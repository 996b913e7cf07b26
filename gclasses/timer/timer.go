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

// Package timer provides C_TIMER, a GClass that publishes EV_TIMEOUT
// (or EV_TIMEOUT_PERIODIC) when its time comes.
//
// A C_TIMER is armed by Play and disarmed by Pause, using its "msec",
// "periodic" and "cron" attributes.  SetTimeout, SetTimeoutPeriodic
// and ClearTimeout do the attribute writes and the Play/Pause.  The
// events EV_START_TIMER ({"msec": N, "periodic": B}) and
// EV_STOP_TIMER do the same from other GObjs.
//
// Timeouts are delivered through a loop.Loop, so they reach the GObj
// on the kernel's goroutine.
package timer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/loop"
	"github.com/Comcast/gobj/sdata"
	"github.com/Comcast/gobj/timers"
	"github.com/Comcast/gobj/value"
)

const (
	GClassName = "C_TIMER"

	EvTimeout         = "EV_TIMEOUT"
	EvTimeoutPeriodic = "EV_TIMEOUT_PERIODIC"
	EvStartTimer      = "EV_START_TIMER"
	EvStopTimer       = "EV_STOP_TIMER"

	stIdle = "ST_IDLE"
)

var ErrNoTimeout = errors.New("timer without msec or cron")

// Env is what C_TIMER instances share.
type Env struct {
	Loop   *loop.Loop
	Timers *timers.Timers
}

type priv struct {
	// gen invalidates the timeouts of previous armings.
	gen int

	// id is the pending timer's id, if any.
	id string
}

func privOf(g *core.GObj) *priv {
	p, _ := g.Priv.(*priv)
	if p == nil {
		p = &priv{}
		g.Priv = p
	}
	return p
}

// GClass returns the C_TIMER GClass bound to env.
func GClass(env *Env) *core.GClass {
	return &core.GClass{
		Name: GClassName,
		Doc:  "Publishes EV_TIMEOUT after msec milliseconds, or periodically, or on a cron schedule.",
		Attrs: sdata.Schema{
			{Name: "msec", Type: sdata.Integer, Flag: sdata.RD | sdata.WR, Default: "0", Description: "Timeout in milliseconds"},
			{Name: "periodic", Type: sdata.Boolean, Flag: sdata.RD | sdata.WR, Default: "false", Description: "True for periodic timeouts"},
			{Name: "cron", Type: sdata.String, Flag: sdata.RD | sdata.WR, Description: "Cron expression (with seconds) instead of msec"},
			{Name: "timeout_event", Type: sdata.String, Flag: sdata.RD | sdata.WR, Description: "Name to publish instead of EV_TIMEOUT"},
			{Name: "timeouts", Type: sdata.Integer, Flag: sdata.RD | sdata.RStats, Default: "0", Description: "Timeouts delivered"},
		},
		States: []core.State{
			{
				Name: stIdle,
				Actions: []core.EvAction{
					{Event: EvTimeout, Action: timeout},
					{Event: EvTimeoutPeriodic, Action: timeout},
					{Event: EvStartTimer, Action: startTimer},
					{Event: EvStopTimer, Action: stopTimer},
				},
			},
		},
		Events: []core.EventType{
			{Name: EvTimeout, Flag: core.EvfOutputEvent, Description: "The timeout expired"},
			{Name: EvTimeoutPeriodic, Flag: core.EvfOutputEvent, Description: "A periodic timeout expired"},
		},
		Flag: core.ManualStart | core.NoCheckOutputEvents,
		Methods: core.Methods{
			Create: func(g *core.GObj) {
				g.Priv = &priv{}
			},
			Play: func(g *core.GObj) error {
				return env.arm(g)
			},
			Pause: func(g *core.GObj) error {
				env.disarm(g)
				return nil
			},
			Destroy: func(g *core.GObj) {
				env.disarm(g)
			},
		},
	}
}

// Register registers C_TIMER.
func Register(reg *core.Registry, env *Env) error {
	return reg.Register(GClass(env))
}

func timerId(g *core.GObj, gen int) string {
	return GClassName + "-" + strconv.FormatUint(uint64(g.Handle()), 10) + "-" + strconv.Itoa(gen)
}

func (env *Env) arm(g *core.GObj) error {
	env.disarm(g)

	var (
		p        = privOf(g)
		gen      = p.gen
		h        = g.Handle()
		y        = g.Yuno()
		id       = timerId(g, gen)
		msec     = g.ReadInt("msec")
		periodic = g.ReadBool("periodic")
		cron     = g.ReadStr("cron")
		event    = EvTimeout
		every    = time.Duration(msec) * time.Millisecond
	)
	if periodic || cron != "" {
		event = EvTimeoutPeriodic
	}
	if cron == "" && msec <= 0 {
		return ErrNoTimeout
	}

	var fired func(context.Context, *timers.Timer)
	fired = func(ctx context.Context, t *timers.Timer) {
		err := env.Loop.Post(ctx, func() {
			x := y.Get(h)
			if x == nil || privOf(x).gen != gen {
				// A cron timer reschedules itself.
				env.Timers.Rem(id)
				return
			}
			if periodic && cron == "" {
				next := &timers.Timer{Id: id, At: t.At.Add(every), F: fired}
				if err := env.Timers.Add(next); err != nil {
					x.Logger().Error().Err(err).Str("timer", id).Msg("rearm periodic timer")
				}
			}
			x.SendEvent(event, value.Obj("msec", msec), x)
		})
		if err != nil {
			y.Logger.Warn().Err(err).Str("timer", id).Msg("timeout lost")
		}
	}

	t := &timers.Timer{Id: id, Cron: cron, F: fired}
	if cron == "" {
		t.At = time.Now().Add(every)
	}
	if err := env.Timers.Add(t); err != nil {
		return err
	}
	p.id = id
	return nil
}

func (env *Env) disarm(g *core.GObj) {
	p := privOf(g)
	p.gen++
	if p.id != "" {
		env.Timers.Rem(p.id)
		p.id = ""
	}
}

// timeout publishes the expiration.
func timeout(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	g.IncrStat("timeouts", 1)
	if event == EvTimeout && g.IsPlaying() {
		// A one-shot timer is done.
		g.Pause()
	}
	if name := g.ReadStr("timeout_event"); name != "" {
		event = name
	}
	g.Publish(event, kw.Incref())
	return 0
}

func startTimer(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	msec := kw.GetInt("msec", g.ReadInt("msec"))
	var err error
	if kw.GetBool("periodic", false) {
		err = SetTimeoutPeriodic(g, msec)
	} else {
		err = SetTimeout(g, msec)
	}
	if err != nil {
		g.Logger().Error().Err(err).Msg("start timer")
		return -1
	}
	return 0
}

func stopTimer(g *core.GObj, event string, kw *value.Value, src *core.GObj) int {
	ClearTimeout(g)
	return 0
}

func set(g *core.GObj, msec int64, periodic bool) error {
	if g.IsPlaying() {
		g.Pause()
	}
	g.WriteInt("msec", msec)
	g.WriteBool("periodic", periodic)
	if !g.IsRunning() {
		if err := g.Start(); err != nil {
			return err
		}
	}
	return g.Play()
}

// SetTimeout arms a one-shot timeout, replacing any pending one.
func SetTimeout(g *core.GObj, msec int64) error {
	return set(g, msec, false)
}

// SetTimeoutPeriodic arms a periodic timeout.
func SetTimeoutPeriodic(g *core.GObj, msec int64) error {
	return set(g, msec, true)
}

// ClearTimeout disarms the timer.
func ClearTimeout(g *core.GObj) {
	if g.IsPlaying() {
		g.Pause()
	}
}
