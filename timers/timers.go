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

// Package timers manages a set of timers with one runtime timer.
//
// Pending timers are kept in a list ordered by trigger time.  When
// the head of that list changes, the runtime timer is replaced by one
// that waits for the new head.  This is meant for a few hundred
// timers, not many thousands.
//
// A Timer's work runs in a new goroutine.  GObjs must not be touched
// from there directly: post to a loop.Loop instead.
package timers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound       = errors.New("timer not found")
	ErrTooMany        = errors.New("too many timers")
	ErrIdExists       = errors.New("timer id exists")
	ErrNotRunning     = errors.New("timers not running")
	ErrAlreadyRunning = errors.New("timers already running")
	ErrNoNextTime     = errors.New("cron expression has no next time")
)

const (
	notRunning = int64(iota)
	running
)

// Timer is some work to be done in the future.
type Timer struct {
	// Id is unique among the pending timers of a Timers.
	Id string `json:"id"`

	// F is the work.
	F func(context.Context, *Timer) `json:"-"`

	// At is when F should run.
	At time.Time `json:"at"`

	// Cron, if not empty, reschedules the Timer after each firing
	// at the next time the expression gives.
	Cron string `json:"cron,omitempty"`

	// Executed is written when F runs.
	Executed time.Time `json:"executed"`

	cron *cronexpr.Expression
}

// Timers is a managed set of Timers.
//
// Run must be running before Add is called.
type Timers struct {
	Max    int            `json:"max"`
	Debug  bool           `json:"-"`
	Logger zerolog.Logger `json:"-"`

	sync.Mutex
	up      chan *Timer
	backlog []*Timer
	running int64
	ready   chan bool
}

// NewTimers makes an instance with the given maximum number of
// pending timers.
func NewTimers(max int) *Timers {
	initial := max / 4
	if initial < 8 {
		initial = 8
	}
	return &Timers{
		Max:     max,
		Logger:  log.Logger,
		up:      make(chan *Timer, 32),
		backlog: make([]*Timer, 0, initial),
		ready:   make(chan bool, 1),
	}
}

// Run drives the Timers in the current goroutine until ctx is done.
func (ts *Timers) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&ts.running, notRunning, running) {
		return ErrAlreadyRunning
	}

	// timer waits for the head of the backlog.
	var timer *time.Timer

	ts.ready <- true
LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case t := <-ts.up:
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			if t == nil {
				ts.debugf("idle", "")
				continue
			}
			d := time.Until(t.At)
			ts.debugf("waiting", t.Id)
			timer = time.AfterFunc(d, func() {
				ts.fire(ctx, t)
			})
		}
	}

	if timer != nil {
		timer.Stop()
	}
	select {
	case <-ts.ready:
	default:
	}
	atomic.StoreInt64(&ts.running, notRunning)

	return nil
}

func (ts *Timers) fire(ctx context.Context, t *Timer) {
	// A timer removed after its runtime timer started must not
	// fire.
	if !ts.remove(t) {
		return
	}
	ts.debugf("firing", t.Id)
	t.Executed = time.Now()
	go t.F(ctx, t)

	if t.cron != nil {
		next := &Timer{
			Id:   t.Id,
			F:    t.F,
			Cron: t.Cron,
			cron: t.cron,
			At:   t.cron.Next(time.Now()),
		}
		if next.At.IsZero() {
			return
		}
		if err := ts.Add(next); err != nil {
			ts.Logger.Error().Err(err).Str("timer", t.Id).Msg("reschedule cron timer")
		}
	}
}

// IsRunning reports whether Run is executing.
func (ts *Timers) IsRunning() bool {
	return atomic.LoadInt64(&ts.running) == running
}

// Wait blocks until Run has started or the timeout expires.
func (ts *Timers) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case ok := <-ts.ready:
		ts.ready <- ok
		return true
	}
}

// Add schedules a Timer.  A Timer with a Cron expression and a zero
// At is scheduled at the expression's next time.
func (ts *Timers) Add(t *Timer) error {
	if !ts.IsRunning() {
		return ErrNotRunning
	}
	if t.Cron != "" && t.cron == nil {
		c, err := cronexpr.Parse(t.Cron)
		if err != nil {
			return err
		}
		t.cron = c
		if t.At.IsZero() {
			t.At = c.Next(time.Now())
			if t.At.IsZero() {
				return ErrNoNextTime
			}
		}
	}

	ts.Lock()
	defer ts.Unlock()

	if len(ts.backlog) >= ts.Max {
		return ErrTooMany
	}
	for _, x := range ts.backlog {
		if x.Id == t.Id {
			return ErrIdExists
		}
	}

	n := len(ts.backlog)
	i := sort.Search(n, func(i int) bool {
		return ts.backlog[i].At.After(t.At)
	})
	ts.backlog = append(ts.backlog, nil)
	copy(ts.backlog[i+1:], ts.backlog[i:])
	ts.backlog[i] = t
	if i == 0 {
		ts.reset()
	}
	return nil
}

// Rem removes the pending Timer with the given id.
func (ts *Timers) Rem(id string) error {
	if !ts.IsRunning() {
		return ErrNotRunning
	}
	ts.Lock()
	defer ts.Unlock()
	for i, t := range ts.backlog {
		if t.Id == id {
			ts.removeAt(i)
			return nil
		}
	}
	return ErrNotFound
}

func (ts *Timers) remove(t *Timer) bool {
	ts.Lock()
	defer ts.Unlock()
	for i, x := range ts.backlog {
		if x == t {
			ts.removeAt(i)
			return true
		}
	}
	return false
}

// removeAt must be called with the lock held.
func (ts *Timers) removeAt(i int) {
	copy(ts.backlog[i:], ts.backlog[i+1:])
	ts.backlog[len(ts.backlog)-1] = nil
	ts.backlog = ts.backlog[:len(ts.backlog)-1]
	if i == 0 {
		ts.reset()
	}
}

// Pending returns the ids of the pending timers, soonest first.
func (ts *Timers) Pending() []string {
	ts.Lock()
	defer ts.Unlock()
	acc := make([]string, len(ts.backlog))
	for i, t := range ts.backlog {
		acc[i] = t.Id
	}
	return acc
}

// reset sends the new head (nil if none) to Run.  It must be called
// with the lock held.
func (ts *Timers) reset() {
	if 0 < len(ts.backlog) {
		ts.up <- ts.backlog[0]
	} else {
		ts.up <- nil
	}
}

// CronNext returns the next time after from that the cron expression
// gives.
func CronNext(expr string, from time.Time) (time.Time, error) {
	c, err := cronexpr.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := c.Next(from)
	if next.IsZero() {
		return next, ErrNoNextTime
	}
	return next, nil
}

func (ts *Timers) debugf(what, id string) {
	if ts.Debug {
		ts.Logger.Debug().Str("timer", id).Msg(what)
	}
}
