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

package value

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// AuditStats counts reference operations on the Values and Buffers
// created while auditing was on.
//
// For any sequence of operations,
//
//	Created + Increfs == Decrefs + LiveRefs
//
// and a scenario that cleans up after itself ends with Live == 0.
type AuditStats struct {
	Created    int `json:"created"`
	Increfs    int `json:"increfs"`
	Decrefs    int `json:"decrefs"`
	Freed      int `json:"freed"`
	Underflows int `json:"underflows"`
	Live       int `json:"live"`
	LiveRefs   int `json:"liveRefs"`

	Buffers     int `json:"buffers"`
	LiveBuffers int `json:"liveBuffers"`
}

// Balanced reports whether the counters add up and nothing is alive.
func (s AuditStats) Balanced() bool {
	return s.Created+s.Increfs == s.Decrefs+s.LiveRefs &&
		s.Live == 0 && s.LiveBuffers == 0 && s.Underflows == 0
}

var auditor = struct {
	sync.Mutex
	on      bool
	stats   AuditStats
	live    map[*Value]struct{}
	buffers map[*Buffer]struct{}
}{}

// EnableAudit turns the refcount auditor on or off and resets its
// counters.  Only Values created while the auditor is on are
// tracked.
func EnableAudit(on bool) {
	auditor.Lock()
	auditor.on = on
	auditor.stats = AuditStats{}
	auditor.live = make(map[*Value]struct{})
	auditor.buffers = make(map[*Buffer]struct{})
	auditor.Unlock()
}

// Auditing reports whether the auditor is on.
func Auditing() bool {
	auditor.Lock()
	defer auditor.Unlock()
	return auditor.on
}

// Audit walks the live tracked values and returns the counters.
func Audit() AuditStats {
	auditor.Lock()
	defer auditor.Unlock()
	s := auditor.stats
	s.Live = len(auditor.live)
	s.LiveRefs = 0
	for v := range auditor.live {
		s.LiveRefs += v.refs
	}
	s.LiveBuffers = len(auditor.buffers)
	return s
}

// Leaks returns the tracked Values that are still alive.  The
// returned Values are borrowed.
func Leaks() []*Value {
	auditor.Lock()
	defer auditor.Unlock()
	acc := make([]*Value, 0, len(auditor.live))
	for v := range auditor.live {
		acc = append(acc, v)
	}
	return acc
}

func born(v *Value) {
	auditor.Lock()
	if auditor.on {
		v.tracked = true
		auditor.live[v] = struct{}{}
		auditor.stats.Created++
	}
	auditor.Unlock()
}

func increfed(v *Value) {
	if !v.tracked {
		return
	}
	auditor.Lock()
	if auditor.on {
		auditor.stats.Increfs++
	}
	auditor.Unlock()
}

func decrefed(v *Value) {
	if !v.tracked {
		return
	}
	auditor.Lock()
	if auditor.on {
		auditor.stats.Decrefs++
	}
	auditor.Unlock()
}

func freed(v *Value) {
	if !v.tracked {
		return
	}
	auditor.Lock()
	if auditor.on {
		auditor.stats.Freed++
		delete(auditor.live, v)
	}
	auditor.Unlock()
}

func underflow(v *Value, op string) {
	auditor.Lock()
	if auditor.on {
		auditor.stats.Underflows++
	}
	auditor.Unlock()
	log.Error().
		Str("op", op).
		Str("kind", v.kind.String()).
		Int("refs", v.refs).
		Msg("value reference count underflow")
}

func bufferBorn(b *Buffer) {
	auditor.Lock()
	if auditor.on {
		b.tracked = true
		auditor.buffers[b] = struct{}{}
		auditor.stats.Buffers++
	}
	auditor.Unlock()
}

func bufferFreed(b *Buffer) {
	if !b.tracked {
		return
	}
	auditor.Lock()
	if auditor.on {
		delete(auditor.buffers, b)
	}
	auditor.Unlock()
}
