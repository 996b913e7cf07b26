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
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrFull is returned when a write would exceed the buffer's
	// maximum size.
	ErrFull = errors.New("buffer full")

	// ErrOffset is returned for a cursor position outside the
	// written data.
	ErrOffset = errors.New("bad buffer offset")
)

// Buffer is a growable byte container with a read cursor and a write
// cursor:
//
//	0 <= read <= write <= max
//
// Appending grows the backing store geometrically up to max.
// Reading advances the read cursor without copying.
//
// A Buffer is reference counted like a Value.
type Buffer struct {
	refs    int
	dead    bool
	tracked bool

	label string
	mark  int

	data    []byte
	wr      int
	rd      int
	maxSize int
}

// NewBuffer makes a Buffer with an initial capacity of size bytes
// that may grow to maxSize bytes.  A maxSize less than size means
// size.
func NewBuffer(size, maxSize int) *Buffer {
	if size < 0 {
		size = 0
	}
	if maxSize < size {
		maxSize = size
	}
	b := &Buffer{
		refs:    1,
		data:    make([]byte, size),
		maxSize: maxSize,
	}
	bufferBorn(b)
	return b
}

// BufferString makes a Buffer holding s.
func BufferString(s string) *Buffer {
	b := NewBuffer(len(s), len(s))
	b.AppendString(s)
	return b
}

// Incref adds a reference.
func (b *Buffer) Incref() *Buffer {
	if b == nil {
		return nil
	}
	if b.dead {
		return b
	}
	b.refs++
	return b
}

// Retain is Incref for Releaser.
func (b *Buffer) Retain() {
	b.Incref()
}

// Decref drops a reference and frees the data with the last one.
func (b *Buffer) Decref() {
	if b == nil || b.dead {
		return
	}
	b.refs--
	if b.refs <= 0 {
		b.dead = true
		b.data = nil
		b.rd, b.wr = 0, 0
		bufferFreed(b)
	}
}

// Refs returns the reference count.
func (b *Buffer) Refs() int {
	return b.refs
}

func (b *Buffer) Label() string         { return b.label }
func (b *Buffer) SetLabel(label string) { b.label = label }
func (b *Buffer) Mark() int             { return b.mark }
func (b *Buffer) SetMark(mark int)      { b.mark = mark }
func (b *Buffer) MaxSize() int          { return b.maxSize }

// LeftBytes is the number of unread bytes.
func (b *Buffer) LeftBytes() int {
	return b.wr - b.rd
}

// TotalBytes is the number of written bytes.
func (b *Buffer) TotalBytes() int {
	return b.wr
}

// FreeBytes is how much more can be written before reaching the
// maximum size.
func (b *Buffer) FreeBytes() int {
	return b.maxSize - b.wr
}

// Chunk is how much can be written without growing the backing store.
func (b *Buffer) Chunk() int {
	return len(b.data) - b.wr
}

// ReadOffset is the read cursor.
func (b *Buffer) ReadOffset() int {
	return b.rd
}

// Bytes returns the unread bytes without consuming them.  The slice
// aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[b.rd:b.wr]
}

// Get consumes and returns the next n bytes, or nil when fewer than n
// bytes are left.
func (b *Buffer) Get(n int) []byte {
	if n < 0 || b.LeftBytes() < n {
		return nil
	}
	p := b.data[b.rd : b.rd+n]
	b.rd += n
	return p
}

// GetChar consumes one byte.
func (b *Buffer) GetChar() (byte, bool) {
	if b.LeftBytes() == 0 {
		return 0, false
	}
	c := b.data[b.rd]
	b.rd++
	return c, true
}

// Ungetc steps the read cursor back and stores c there.
func (b *Buffer) Ungetc(c byte) error {
	if b.rd == 0 {
		return ErrOffset
	}
	b.rd--
	b.data[b.rd] = c
	return nil
}

// GetLine consumes bytes up to and including sep and returns them
// without sep.  If sep is not found nothing is consumed.
func (b *Buffer) GetLine(sep byte) ([]byte, bool) {
	i := bytes.IndexByte(b.Bytes(), sep)
	if i < 0 {
		return nil, false
	}
	line := b.data[b.rd : b.rd+i]
	b.rd += i + 1
	return line, true
}

// SetReadOffset moves the read cursor.
func (b *Buffer) SetReadOffset(off int) error {
	if off < 0 || b.wr < off {
		return ErrOffset
	}
	b.rd = off
	return nil
}

// SetWriteOffset moves the write cursor within the allocated store.
func (b *Buffer) SetWriteOffset(off int) error {
	if off < b.rd || len(b.data) < off {
		return ErrOffset
	}
	b.wr = off
	return nil
}

// ResetRead rewinds the read cursor.
func (b *Buffer) ResetRead() {
	b.rd = 0
}

// ResetWrite empties the buffer without freeing the store.
func (b *Buffer) ResetWrite() {
	b.wr = 0
	b.rd = 0
}

// Clear empties the buffer, zeroes the store and the mark.
func (b *Buffer) Clear() {
	for i := range b.data[:b.wr] {
		b.data[i] = 0
	}
	b.wr, b.rd, b.mark = 0, 0, 0
}

func (b *Buffer) grow(need int) {
	if need <= len(b.data) {
		return
	}
	n := 2 * len(b.data)
	if n < need {
		n = need
	}
	if b.maxSize < n {
		n = b.maxSize
	}
	data := make([]byte, n)
	copy(data, b.data[:b.wr])
	b.data = data
}

// Append writes as much of p as fits and returns how much was
// written.
func (b *Buffer) Append(p []byte) int {
	if b.dead {
		return 0
	}
	n := len(p)
	if free := b.FreeBytes(); free < n {
		n = free
	}
	if n <= 0 {
		return 0
	}
	b.grow(b.wr + n)
	copy(b.data[b.wr:], p[:n])
	b.wr += n
	return n
}

// AppendString appends s.
func (b *Buffer) AppendString(s string) int {
	return b.Append([]byte(s))
}

// AppendChar appends one byte.
func (b *Buffer) AppendChar(c byte) int {
	return b.Append([]byte{c})
}

// AppendValue appends the text form of v (borrowed).
func (b *Buffer) AppendValue(v *Value) (int, error) {
	js, err := v.MarshalJSON()
	if err != nil {
		return 0, err
	}
	n := b.Append(js)
	if n < len(js) {
		return n, ErrFull
	}
	return n, nil
}

// AppendBuffer consumes the unread bytes of src (borrowed) and
// appends them.
func (b *Buffer) AppendBuffer(src *Buffer) (int, error) {
	n := b.Append(src.Bytes())
	src.rd += n
	if 0 < src.LeftBytes() {
		return n, ErrFull
	}
	return n, nil
}

// Printf appends formatted text.
func (b *Buffer) Printf(format string, args ...interface{}) (int, error) {
	s := fmt.Sprintf(format, args...)
	n := b.AppendString(s)
	if n < len(s) {
		return n, ErrFull
	}
	return n, nil
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	n := b.Append(p)
	if n < len(p) {
		return n, ErrFull
	}
	return n, nil
}

// Read implements io.Reader.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.LeftBytes() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.Bytes())
	b.rd += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	c, ok := b.GetChar()
	if !ok {
		return 0, io.EOF
	}
	return c, nil
}

// Serialize returns {"label", "mark", "data"} with the unread bytes
// in base64.
func (b *Buffer) Serialize() *Value {
	o := NewObject()
	o.put("label", NewString(b.label))
	o.put("mark", NewInt(int64(b.mark)))
	o.put("data", NewString(base64.StdEncoding.EncodeToString(b.Bytes())))
	return o
}

// DeserializeBuffer makes a Buffer from what Serialize produced.
func DeserializeBuffer(v *Value) (*Buffer, error) {
	if v.Kind() != Object {
		return nil, ErrKind
	}
	data, err := base64.StdEncoding.DecodeString(v.GetStr("data", ""))
	if err != nil {
		return nil, err
	}
	b := NewBuffer(len(data), len(data))
	b.Append(data)
	b.label = v.GetStr("label", "")
	b.mark = int(v.GetInt("mark", 0))
	return b, nil
}

func init() {
	RegisterBinaryType(&BinaryType{
		Field:           "gbuffer",
		SerializedField: "__gbuffer___",
		Serialize: func(x interface{}) (*Value, error) {
			b, is := x.(*Buffer)
			if !is {
				return nil, fmt.Errorf("not a buffer: %T", x)
			}
			return b.Serialize(), nil
		},
		Deserialize: func(v *Value) (interface{}, error) {
			return DeserializeBuffer(v)
		},
	})
}
