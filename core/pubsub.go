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

package core

import (
	"github.com/Comcast/gobj/match"
	"github.com/Comcast/gobj/value"
)

// Keys of a subscription description.
const (
	KeyConfig = "__config__"
	KeyGlobal = "__global__"
	KeyLocal  = "__local__"
	KeyFilter = "__filter__"

	KeyHardSubscription = "__hard_subscription__"
	KeyOwnEvent         = "__own_event__"
	KeyRename           = "__rename_event_name__"
	KeyFirstShot        = "__first_shot__"
)

// Subscription is an entry in the publisher's subscription list and
// in the subscriber's subscribing list.
//
// The Values are owned by the Subscription and must not be modified.
type Subscription struct {
	Publisher  Handle
	Subscriber Handle

	// Event is the published event, or "" for every event.
	Event string

	// Config is the __config__ object without the keys below.
	Config *value.Value

	// Global members are added to every delivered kw.
	Global *value.Value

	// Local keys are removed from every delivered kw.
	Local *value.Value

	// Filter must match the published kw (match.Simple).
	Filter *value.Value

	// Rename is the event name the subscriber receives.
	Rename string

	// Hard subscriptions survive Unsubscribe; only destruction
	// (or a forced UnsubscribeList) removes them.
	Hard bool

	// OwnEvent stops the publication when the subscriber fails.
	OwnEvent bool

	// FirstShot subscriptions are removed after their first
	// delivery.
	FirstShot bool

	deleted bool
}

func (s *Subscription) release() {
	s.Config.Decref()
	s.Global.Decref()
	s.Local.Decref()
	s.Filter.Decref()
	s.Config, s.Global, s.Local, s.Filter = nil, nil, nil, nil
}

// ToValue describes the Subscription.
func (s *Subscription) ToValue(y *Yuno) *value.Value {
	acc := value.Obj(
		"event", s.Event,
		"publisher", nameOf(y.Get(s.Publisher)),
		"subscriber", nameOf(y.Get(s.Subscriber)),
	)
	if s.Rename != "" {
		acc.Set("renamed_event", value.NewString(s.Rename))
	}
	if s.Hard {
		acc.Set("hard_subscription", value.NewBool(true))
	}
	if s.OwnEvent {
		acc.Set("own_event", value.NewBool(true))
	}
	if s.FirstShot {
		acc.Set("first_shot", value.NewBool(true))
	}
	for _, kv := range []struct {
		k string
		v *value.Value
	}{{KeyConfig, s.Config}, {KeyGlobal, s.Global}, {KeyLocal, s.Local}, {KeyFilter, s.Filter}} {
		if kv.v != nil {
			acc.SetBorrowed(kv.k, kv.v)
		}
	}
	return acc
}

func nameOf(g *GObj) string {
	if g == nil {
		return ""
	}
	return g.FullName()
}

// subscriptionQuery is a parsed subscription description.
type subscriptionQuery struct {
	config, global, local, filter *value.Value
	rename                        string
	hard, own, firstShot          bool
}

// parseSubscription reads kw (borrowed).  The returned Values are
// borrowed from kw except config, which is a new Value.
func parseSubscription(kw *value.Value) subscriptionQuery {
	var q subscriptionQuery
	if c := kw.Get(KeyConfig); c.IsObject() {
		q.hard = c.GetBool(KeyHardSubscription, false)
		q.own = c.GetBool(KeyOwnEvent, false)
		q.firstShot = c.GetBool(KeyFirstShot, false)
		q.rename = c.GetStr(KeyRename, "")
		q.config = c.Clone()
		for _, k := range []string{KeyHardSubscription, KeyOwnEvent, KeyFirstShot, KeyRename} {
			q.config.Delete(k)
		}
	}
	q.global = kw.Get(KeyGlobal)
	q.local = kw.Get(KeyLocal)
	q.filter = kw.Get(KeyFilter)
	return q
}

func sameValue(a, b *value.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return value.Identical(a, b)
}

// matches compares the parts the query gives.  With full, parts the
// query omits must be absent from the Subscription too.
func (q *subscriptionQuery) matches(s *Subscription, full bool) bool {
	part := func(want, have *value.Value) bool {
		if want == nil && !full {
			return true
		}
		return sameValue(want, have)
	}
	return part(q.config, s.Config) &&
		part(q.global, s.Global) &&
		part(q.local, s.Local) &&
		part(q.filter, s.Filter)
}

// Subscribe adds a subscription of subscriber to the events of g.
// event "" subscribes to every event.  kw (owned, may be nil) may
// hold __config__, __global__, __local__ and __filter__.
//
// Subscribing again with the same description replaces the previous
// Subscription.
func (g *GObj) Subscribe(event string, kw *value.Value, subscriber *GObj) (*Subscription, error) {
	defer kw.Decref()

	if err := g.usable("subscribe", false); err != nil {
		return nil, err
	}
	if !subscriber.live() {
		g.Logger().Error().Str("event", event).Msg("subscriber destroyed")
		return nil, ErrDestroyed
	}
	if event != "" && g.gclass.Flag&NoCheckOutputEvents == 0 && !g.gclass.HasOutputEvent(event) {
		g.Logger().Error().
			Str("event", event).
			Str("subscriber", subscriber.FullName()).
			Msg(ErrNotOutputEvent.Error())
		return nil, ErrNotOutputEvent
	}

	q := parseSubscription(kw)
	for _, old := range g.subscriptionsOf(g.subscriptions, 0, subscriber.handle, event) {
		if old.Event == event && q.matches(old, true) && old.Rename == q.rename {
			g.Logger().Warn().
				Str("event", event).
				Str("subscriber", subscriber.FullName()).
				Msg("subscription repeated")
			g.deleteSubscription(old, false, false)
		}
	}

	s := &Subscription{
		Publisher:  g.handle,
		Subscriber: subscriber.handle,
		Event:      event,
		Config:     q.config,
		Global:     q.global.Incref(),
		Local:      q.local.Incref(),
		Filter:     q.filter.Incref(),
		Rename:     q.rename,
		Hard:       q.hard,
		OwnEvent:   q.own,
		FirstShot:  q.firstShot,
	}
	g.subscriptions = append(g.subscriptions, s)
	subscriber.subscribings = append(subscriber.subscribings, s)

	if m := g.gclass.methods(); m.SubscriptionAdded != nil {
		g.enter()
		r := m.SubscriptionAdded(g, s)
		g.leave()
		if r < 0 {
			g.deleteSubscription(s, true, true)
			return nil, ErrRejected
		}
	}

	return s, nil
}

// SubscribeFilter subscribes with only a filter (owned).
func (g *GObj) SubscribeFilter(event string, filter *value.Value, subscriber *GObj) (*Subscription, error) {
	var kw *value.Value
	if filter != nil {
		kw = value.Obj(KeyFilter, filter)
	}
	return g.Subscribe(event, kw, subscriber)
}

// Unsubscribe removes the subscriptions of subscriber that match
// event and kw (owned) exactly.  Removing a subscription that does
// not exist is not an error.  Hard subscriptions are kept.
func (g *GObj) Unsubscribe(event string, kw *value.Value, subscriber *GObj) error {
	defer kw.Decref()
	if err := g.usable("unsubscribe", true); err != nil {
		return err
	}
	if subscriber == nil {
		g.Logger().Error().Str("event", event).Msg(ErrNilGObj.Error())
		return ErrNilGObj
	}
	q := parseSubscription(kw)
	defer q.config.Decref()

	var err error
	found := 0
	for _, s := range g.subscriptionsOf(g.subscriptions, g.handle, subscriber.handle, event) {
		if s.Event != event || !q.matches(s, true) {
			continue
		}
		found++
		if e := g.deleteSubscription(s, false, false); e != nil {
			err = e
		}
	}
	if found == 0 {
		g.Logger().Debug().
			Str("event", event).
			Str("subscriber", subscriber.FullName()).
			Msg("no subscription found")
	}
	return err
}

// UnsubscribeList deletes the Subscriptions.  Hard subscriptions
// are deleted only with force.
func (g *GObj) UnsubscribeList(subs []*Subscription, force bool) error {
	var err error
	for _, s := range subs {
		if e := g.deleteSubscription(s, force, false); e != nil {
			err = e
		}
	}
	return err
}

func (g *GObj) deleteSubscription(s *Subscription, force, quiet bool) error {
	if s.deleted {
		return nil
	}
	if s.Hard && !force {
		return ErrHardSubscription
	}
	y := g.yuno
	publisher := y.Get(s.Publisher)
	subscriber := y.Get(s.Subscriber)

	if !quiet && publisher != nil {
		if m := publisher.gclass.methods(); m.SubscriptionDeleted != nil {
			publisher.enter()
			m.SubscriptionDeleted(publisher, s)
			publisher.leave()
		}
	}

	s.deleted = true
	if publisher != nil {
		publisher.subscriptions = without(publisher.subscriptions, s)
	}
	if subscriber != nil {
		subscriber.subscribings = without(subscriber.subscribings, s)
	}
	s.release()
	return nil
}

func without(subs []*Subscription, s *Subscription) []*Subscription {
	for i, x := range subs {
		if x == s {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func (g *GObj) subscriptionsOf(subs []*Subscription, publisher, subscriber Handle, event string) []*Subscription {
	acc := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if publisher != 0 && s.Publisher != publisher {
			continue
		}
		if subscriber != 0 && s.Subscriber != subscriber {
			continue
		}
		if event != "" && s.Event != event {
			continue
		}
		acc = append(acc, s)
	}
	return acc
}

// FindSubscriptions returns the Subscriptions of g matching event,
// the parts of kw (borrowed, may be nil) and subscriber.  Empty
// arguments match anything.
func (g *GObj) FindSubscriptions(event string, kw *value.Value, subscriber *GObj) []*Subscription {
	q := parseSubscription(kw)
	defer q.config.Decref()
	acc := g.subscriptionsOf(g.subscriptions, 0, subscriber.Handle(), event)
	return filterSubs(acc, &q)
}

// FindSubscribings is FindSubscriptions for the subscriptions g has
// made to publisher.
func (g *GObj) FindSubscribings(event string, kw *value.Value, publisher *GObj) []*Subscription {
	q := parseSubscription(kw)
	defer q.config.Decref()
	acc := g.subscriptionsOf(g.subscribings, publisher.Handle(), 0, event)
	return filterSubs(acc, &q)
}

func filterSubs(subs []*Subscription, q *subscriptionQuery) []*Subscription {
	acc := subs[:0]
	for _, s := range subs {
		if q.matches(s, false) {
			acc = append(acc, s)
		}
	}
	return acc
}

// Subscriptions returns a copy of the subscriptions to g's events.
func (g *GObj) Subscriptions() []*Subscription {
	acc := make([]*Subscription, len(g.subscriptions))
	copy(acc, g.subscriptions)
	return acc
}

// Subscribings returns a copy of the subscriptions g has made.
func (g *GObj) Subscribings() []*Subscription {
	acc := make([]*Subscription, len(g.subscribings))
	copy(acc, g.subscribings)
	return acc
}

// Publish delivers an event to the subscribers of g and returns the
// number of deliveries, or -1 when a subscriber owning the event
// failed.  kw is owned.
//
// A pure child whose parent handles the event sends it to the parent
// instead.
func (g *GObj) Publish(event string, kw *value.Value) int {
	if kw == nil {
		kw = value.NewObject()
	}
	defer kw.Decref()

	if err := g.usable("publish "+event, true); err != nil {
		return -1
	}
	y := g.yuno
	gc := g.gclass

	if g.IsPureChild() {
		if parent := g.Parent(); parent.live() && parent.handles(event) {
			if parent.SendEvent(event, kw.Incref(), g) < 0 {
				return -1
			}
			return 1
		}
	}

	if gc.Flag&NoCheckOutputEvents == 0 && !gc.HasOutputEvent(event) {
		g.Logger().Error().Str("event", event).Msg(ErrNotOutputEvent.Error())
		return 0
	}

	m := gc.methods()
	if m.PublishEvent != nil {
		g.enter()
		r := m.PublishEvent(g, event, kw)
		g.leave()
		if r <= 0 {
			return 0
		}
	}

	if y.TraceMachine {
		g.Logger().Debug().
			Str("event", event).
			Str("state", g.state).
			Int("subscriptions", len(g.subscriptions)).
			Msg("publish")
	}

	sent := 0
	for _, s := range g.Subscriptions() {
		if s.deleted {
			continue
		}
		if m.PublicationPreFilter != nil {
			g.enter()
			r := m.PublicationPreFilter(g, s, event, kw)
			g.leave()
			if r < 0 {
				break
			}
			if r == 0 {
				continue
			}
		}
		subscriber := y.Get(s.Subscriber)
		if !subscriber.live() {
			continue
		}
		if s.Event != "" && s.Event != event {
			continue
		}
		if s.Filter != nil && !match.Simple(kw, s.Filter) {
			continue
		}
		if m.PublicationFilter != nil {
			g.enter()
			r := m.PublicationFilter(g, event, kw, subscriber)
			g.leave()
			if r < 0 {
				break
			}
			if r == 0 {
				continue
			}
		}
		if event == EvStateChanged && !subscriber.gclass.HasInputEvent(event) {
			continue
		}

		name := event
		if s.Rename != "" {
			name = s.Rename
		}
		ret := subscriber.SendEvent(name, deliverable(kw, s), g)
		if s.FirstShot {
			g.deleteSubscription(s, true, false)
		}
		if ret < 0 && s.OwnEvent {
			sent = -1
			break
		}
		sent++

		if g.destroying || g.destroyed {
			break
		}
	}

	if sent == 0 {
		if et, have := gc.EventType(event); !have || et.Flag&EvfNoWarnSubs == 0 {
			g.Logger().Warn().Str("event", event).Msg("Publish event WITHOUT subscribers")
		}
	}
	return sent
}

// deliverable returns the kw (owned) a Subscription delivers: the
// published kw itself, or a copy without the local keys and with the
// global members.
func deliverable(kw *value.Value, s *Subscription) *value.Value {
	if s.Local == nil && s.Global == nil {
		return kw.Incref()
	}
	c := kw.Clone()
	if s.Local.IsObject() {
		for _, k := range s.Local.Keys() {
			c.Delete(k)
		}
	} else {
		s.Local.EachItem(func(_ int, k *value.Value) bool {
			c.Delete(k.Str())
			return true
		})
	}
	if s.Global.IsObject() {
		c.Update(s.Global)
	}
	return c
}

// handles reports whether an event sent to g would find a binding
// or an InjectEvent method.
func (g *GObj) handles(event string) bool {
	if ea, _ := g.gclass.FindAction(g.state, event); ea != nil {
		return true
	}
	return g.gclass.HasInputEvent(event) || g.gclass.methods().InjectEvent != nil
}
