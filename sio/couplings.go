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

// Package sio couples GObjs to the outside world.
//
// A Couplings moves Messages between a transport (stdin/stdout, an
// MQTT broker, a WebSocket) and a pair of channels.  A C_IOGATE GObj
// owns a Couplings: it publishes EV_ON_MESSAGE for each incoming
// Message and writes an outgoing Message for each EV_SEND.
package sio

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrStopped = errors.New("couplings stopped")

// Message is what a Couplings carries.
type Message struct {
	// Topic is the MQTT topic or empty.
	Topic string `json:"topic,omitempty"`

	// Payload is JSON or, when incoming, possibly plain text.
	Payload []byte `json:"payload"`
}

func (m *Message) String() string {
	js, err := json.Marshal(struct {
		Topic   string `json:"topic,omitempty"`
		Payload string `json:"payload"`
	}{m.Topic, string(m.Payload)})
	if err != nil {
		return m.Topic
	}
	return string(js)
}

// Couplings provide channels for message input and output.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the input and output channels and a channel
	// that is closed when the input is exhausted.  The input
	// channel is not closed.
	IO(context.Context) (chan *Message, chan *Message, chan bool, error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}
