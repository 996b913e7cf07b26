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

// Package loop runs functions one at a time in a single goroutine.
//
// The kernel in package core is not safe for concurrent use.  Timers,
// network couplings and other goroutines hand their work to a Loop,
// and the Loop's goroutine is the only one that touches the GObjs.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotRunning     = errors.New("loop not running")
	ErrAlreadyRunning = errors.New("loop already running")
)

const (
	notRunning = int64(iota)
	running
)

// Loop is a queue of functions and the goroutine that runs them.
type Loop struct {
	Logger zerolog.Logger

	// Debug logs every function executed.
	Debug bool

	queue   chan func()
	running int64
	ready   chan bool
}

// NewLoop makes a Loop whose queue holds up to size functions.
func NewLoop(size int) *Loop {
	if size < 1 {
		size = 1
	}
	return &Loop{
		Logger: log.Logger,
		queue:  make(chan func(), size),
		ready:  make(chan bool, 1),
	}
}

// Run executes queued functions in the current goroutine until ctx
// is done.
func (l *Loop) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&l.running, notRunning, running) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt64(&l.running, notRunning)

	l.ready <- true
	defer func() {
		select {
		case <-l.ready:
		default:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-l.queue:
			l.exec(f)
		}
	}
}

func (l *Loop) exec(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Error().Str("panic", fmt.Sprint(r)).Msg("loop function panicked")
		}
	}()
	if l.Debug {
		l.Logger.Debug().Int("queued", len(l.queue)).Msg("loop exec")
	}
	f()
}

// IsRunning reports whether Run is executing.
func (l *Loop) IsRunning() bool {
	return atomic.LoadInt64(&l.running) == running
}

// Wait blocks until Run has started or the timeout expires.
func (l *Loop) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case ok := <-l.ready:
		l.ready <- ok
		return true
	}
}

// Post queues f.  It blocks while the queue is full.
func (l *Loop) Post(ctx context.Context, f func()) error {
	if !l.IsRunning() {
		return ErrNotRunning
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.queue <- f:
		return nil
	}
}

// Do queues f and waits for its result.  Do must not be called from
// the Loop's own goroutine.
func (l *Loop) Do(ctx context.Context, f func() error) error {
	done := make(chan error, 1)
	err := l.Post(ctx, func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			done <- err
		}()
		err = f()
	})
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
