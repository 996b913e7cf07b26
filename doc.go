// Package gobj provides an embedded actor runtime: GObjs with typed
// attributes, finite-state-machine behavior, a parent/child tree, and
// publish/subscribe event routing.
//
// The kernel is in package 'core', built on 'value' (reference-counted
// JSON-like values) and 'sdata' (attribute schemas).  Timers and I/O
// reach the kernel through 'loop'.  Some command-line tools are in
// `cmd`.
package gobj
