/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

// Package core is the object kernel: gclasses, the instances built
// from them, state machine dispatch, and event routing.
//
// A GClass is plain data: an attribute Schema, a table of States
// (each binding event names to Actions and next states), a table of
// class-global bindings, the output events it may publish, and an
// optional set of Methods called at lifecycle points.  A GClass may
// name a Base; events and states the GClass does not bind are looked
// up in the Base.  GClasses live in a Registry, which is sealed when
// the first instance is created.
//
// A Yuno is the arena holding every GObj of a process.  A GObj is
// addressed by a Handle that is never reused.  Parent, child, and
// bottom links are Handles too, so a destroyed GObj can never be
// reached through a stale link.
//
// Dispatch is synchronous and single-threaded: SendEvent runs the
// bound Action to completion before returning, and an Action may
// itself send or publish.  Nothing in this package is safe for
// concurrent use.  Asynchronous sources (timers, sockets) post work
// to one goroutine; see the loop package.
//
// Values passed to kernel functions follow the value package's
// ownership convention.  SendEvent, Publish, Subscribe, and Create
// take ownership of the kw they are given.  An Action receives kw
// borrowed: the dispatcher releases it after the Action returns, so
// an Action that keeps kw must Incref it.
package core
