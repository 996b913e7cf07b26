package sdata

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownAttr is the "not found" answer for an attribute the
	// schema never declared.
	ErrUnknownAttr = errors.New("attribute not found")

	ErrWrongType    = errors.New("wrong attribute type")
	ErrNotAccess    = errors.New("attribute not accessible")
	ErrNotReadable  = errors.New("attribute not readable")
	ErrReadOnly     = errors.New("attribute read-only")
	ErrUnauthorized = errors.New("not authorized")
	ErrNotStats     = errors.New("attribute is not a stats counter")
)

// AttrError describes a rejected attribute access.
type AttrError struct {
	Attr string
	Op   string
	Err  error
}

func (e *AttrError) Error() string {
	return e.Op + ` attribute "` + e.Attr + `": ` + e.Err.Error()
}

func (e *AttrError) Unwrap() error {
	return e.Err
}

// BadSchema occurs when a descriptor table is malformed.
type BadSchema struct {
	Attr   string
	Reason string
}

func (e *BadSchema) Error() string {
	return `bad attribute "` + e.Attr + `": ` + e.Reason
}

// Errors gathers the failures of a bulk operation.
type Errors []error

func (es Errors) Error() string {
	acc := make([]string, len(es))
	for i, e := range es {
		acc[i] = e.Error()
	}
	return strings.Join(acc, "; ")
}

func (es Errors) Unwrap() []error {
	return es
}

func (es Errors) orNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}
