package core

// These errors are user errors, not internal errors.

import (
	"errors"
)

var (
	ErrGClassNotFound   = errors.New("gclass not found")
	ErrDuplicateGClass  = errors.New("gclass already registered")
	ErrRegistrySealed   = errors.New("gclass registry sealed")
	ErrSingleton        = errors.New("singleton gclass already instantiated")
	ErrServiceExists    = errors.New("service already registered")
	ErrNilGObj          = errors.New("gobj nil")
	ErrDestroyed        = errors.New("gobj destroyed")
	ErrDestroying       = errors.New("gobj destroying")
	ErrEventNotHandled  = errors.New("event not handled")
	ErrNotOutputEvent   = errors.New("event not in output event list")
	ErrHardSubscription = errors.New("hard subscription")
	ErrRejected         = errors.New("subscription rejected")
	ErrAlreadyRunning   = errors.New("gobj already running")
	ErrNotRunning       = errors.New("gobj not running")
	ErrAlreadyPlaying   = errors.New("gobj already playing")
	ErrNotPlaying       = errors.New("gobj not playing")
	ErrDisabled         = errors.New("gobj disabled")
	ErrRequiredAttrs    = errors.New("cannot start without all required attributes")
	ErrNotSupported     = errors.New("not supported")
	ErrNotInDispatch    = errors.New("state change outside of an action")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("not authorized")
	ErrNoStore          = errors.New("no attribute store")
	ErrBadName          = errors.New("invalid gobj name")
	ErrRootExists       = errors.New("yuno root already created")
	ErrBottomCycle      = errors.New("bottom chain would be cyclic")
)

// BadGClass occurs when a GClass definition is malformed.
type BadGClass struct {
	GClass string
	Reason string
}

func (e *BadGClass) Error() string {
	return `gclass "` + e.GClass + `": ` + e.Reason
}

// UnknownState occurs when a transition names a state the GClass
// (and its bases) do not declare.
type UnknownState struct {
	GClass string
	State  string
}

func (e *UnknownState) Error() string {
	return `state "` + e.State + `" not found in gclass "` + e.GClass + `"`
}

// UnknownCommand occurs when a command is not in the command table
// and the GClass has no Command method.
type UnknownCommand struct {
	GClass  string
	Command string
}

func (e *UnknownCommand) Error() string {
	return `command "` + e.Command + `" not available in gclass "` + e.GClass + `"`
}
