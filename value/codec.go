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

// The canonical text form is JSON.  Object keys keep their order.
// Numbers without a fraction or an exponent parse as integers;
// reals are always written with a fraction or an exponent so they
// come back as reals.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Parse reads one Value from its canonical text form.  The result
// has one reference.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		v.Decref()
		return nil, errors.New("trailing data after value")
	}
	return v, nil
}

// ParseString is Parse for a string.
func ParseString(js string) (*Value, error) {
	return Parse([]byte(js))
}

// MustParse is Parse that panics.  For literals in code and tests.
func MustParse(js string) *Value {
	v, err := ParseString(js)
	if err != nil {
		panic(err)
	}
	return v
}

// Decode reads one Value from a stream of Values.
func Decode(dec *json.Decoder) (*Value, error) {
	dec.UseNumber()
	return decode(dec)
}

func decode(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		return parseNumber(string(t))
	case json.Delim:
		switch t {
		case '[':
			a := NewArray()
			for dec.More() {
				x, err := decode(dec)
				if err != nil {
					a.Decref()
					return nil, err
				}
				a.items = append(a.items, x)
			}
			if _, err := dec.Token(); err != nil {
				a.Decref()
				return nil, err
			}
			return a, nil
		case '{':
			o := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					o.Decref()
					return nil, err
				}
				k, is := kt.(string)
				if !is {
					o.Decref()
					return nil, fmt.Errorf("bad object key %v", kt)
				}
				x, err := decode(dec)
				if err != nil {
					o.Decref()
					return nil, err
				}
				o.put(k, x)
			}
			if _, err := dec.Token(); err != nil {
				o.Decref()
				return nil, err
			}
			return o, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseNumber(s string) (*Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewInt(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return NewReal(f), nil
}

// MarshalJSON writes the canonical text form.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf, "", ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the canonical text form.
func (v *Value) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := v.encode(&buf, "", ""); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// String is the compact text form.  An unencodable Value (NaN) is
// rendered as an error string.
func (v *Value) String() string {
	var buf bytes.Buffer
	if err := v.encode(&buf, "", ""); err != nil {
		return fmt.Sprintf("<%s>", err)
	}
	return buf.String()
}

// Indent is the text form with one member per line.
func (v *Value) Indent() string {
	var buf bytes.Buffer
	if err := v.encode(&buf, "\n", "  "); err != nil {
		return fmt.Sprintf("<%s>", err)
	}
	return buf.String()
}

func quote(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode adds a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func formatReal(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported real %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

func (v *Value) encode(buf *bytes.Buffer, nl, indent string) error {
	return v.encodeAt(buf, nl, indent, nl)
}

func (v *Value) encodeAt(buf *bytes.Buffer, nl, indent, prefix string) error {
	if v == nil || v.dead {
		buf.WriteString("null")
		return nil
	}
	inner := prefix + indent
	switch v.kind {
	case Null, Opaque:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Integer:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case Real:
		s, err := formatReal(v.f)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case String:
		return quote(buf, v.s)
	case Array:
		if len(v.items) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteByte('[')
		for i, x := range v.items {
			if 0 < i {
				buf.WriteByte(',')
			}
			buf.WriteString(inner)
			if err := x.encodeAt(buf, nl, indent, inner); err != nil {
				return err
			}
		}
		buf.WriteString(prefix)
		buf.WriteByte(']')
	case Object:
		if len(v.keys) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteByte('{')
		for i, k := range v.keys {
			if 0 < i {
				buf.WriteByte(',')
			}
			buf.WriteString(inner)
			if err := quote(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if nl != "" {
				buf.WriteByte(' ')
			}
			if err := v.fields[k].encodeAt(buf, nl, indent, inner); err != nil {
				return err
			}
		}
		buf.WriteString(prefix)
		buf.WriteByte('}')
	}
	return nil
}
