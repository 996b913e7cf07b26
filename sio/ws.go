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

package sio

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WebSocketCouplings is a WebSocket client Couplings.
//
// Incoming text frames are payloads.  With Envelope, frames are
// {"topic","payload"} objects both ways.
type WebSocketCouplings struct {
	URL      string
	Envelope bool
	Logger   zerolog.Logger

	in   chan *Message
	out  chan *Message
	done chan bool
	conn *websocket.Conn
	wg   sync.WaitGroup
}

func NewWebSocketCouplings(u string) *WebSocketCouplings {
	return &WebSocketCouplings{
		URL:    u,
		Logger: log.Logger,
	}
}

type envelope struct {
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func (c *WebSocketCouplings) decode(bs []byte) *Message {
	if c.Envelope {
		var e envelope
		if err := json.Unmarshal(bs, &e); err == nil && e.Payload != nil {
			return &Message{Topic: e.Topic, Payload: e.Payload}
		}
	}
	return &Message{Payload: bs}
}

func (c *WebSocketCouplings) encode(m *Message) ([]byte, error) {
	if !c.Envelope {
		return m.Payload, nil
	}
	return json.Marshal(&envelope{Topic: m.Topic, Payload: m.Payload})
}

// Start creates the WebSocket session and starts processing it.
func (c *WebSocketCouplings) Start(ctx context.Context) error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}

	c.in = make(chan *Message)
	c.out = make(chan *Message, 64)
	c.done = make(chan bool)

	c.Logger.Info().Str("url", u.String()).Msg("wsconnect")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		defer close(c.done)
		for {
			_, bs, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.Logger.Warn().Err(err).Msg("ReadMessage")
				}
				return
			}
			if len(bs) == 0 {
				continue
			}
			c.Logger.Debug().Str("heard", Abbrev(bs)).Msg("ws")

			select {
			case <-ctx.Done():
				return
			case c.in <- c.decode(bs):
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-c.out:
				js, err := c.encode(m)
				if err != nil {
					c.Logger.Error().Err(err).Msg("encode")
					continue
				}
				if err = conn.WriteMessage(websocket.TextMessage, js); err != nil {
					c.Logger.Error().Err(err).Msg("WriteMessage")
					return
				}
			}
		}
	}()

	return nil
}

// IO just returns the channels that Start() initialized.
func (c *WebSocketCouplings) IO(ctx context.Context) (chan *Message, chan *Message, chan bool, error) {
	return c.in, c.out, c.done, nil
}

// Stop terminates the WebSocket connection.
func (c *WebSocketCouplings) Stop(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	c.Logger.Info().Msg("disconnecting")
	err := c.conn.Close()
	c.wg.Wait()
	c.conn = nil
	return err
}
