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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MQTTConfig follows the mosquitto_sub command line.
type MQTTConfig struct {
	Broker    string `toml:"broker"`
	Port      int    `toml:"port"`
	ClientId  string `toml:"client_id"`
	KeepAlive int    `toml:"keep_alive"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Reconnect bool   `toml:"reconnect"`
	Clean     bool   `toml:"clean"`

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint `toml:"quiesce"`

	WillTopic   string `toml:"will_topic"`
	WillPayload string `toml:"will_payload"`
	WillQoS     int    `toml:"will_qos"`
	WillRetain  bool   `toml:"will_retain"`

	CertFile string `toml:"cert"`
	KeyFile  string `toml:"key"`
	CAFile   string `toml:"cafile"`
	Insecure bool   `toml:"insecure"`

	// SubTopics is a comma-separated list of TOPIC[:QOS].
	SubTopics string `toml:"topics"`

	// DefaultOutboundTopic (TOPIC[:QOS]) is used for outgoing
	// Messages without a topic.
	DefaultOutboundTopic string `toml:"default_topic"`

	// InTimeout limits the wait to queue an incoming message.
	InTimeout time.Duration `toml:"in_timeout"`
}

// DefaultMQTTConfig has mosquitto's defaults.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:               "tcp://localhost",
		Port:                 1883,
		KeepAlive:            10,
		Clean:                true,
		Quiesce:              100,
		DefaultOutboundTopic: "misc",
		InTimeout:            time.Second,
	}
}

// ClientOptions makes the Paho options for the configuration.
func (cfg *MQTTConfig) ClientOptions() (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientId)
	opts.SetKeepAlive(time.Second * time.Duration(cfg.KeepAlive))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(cfg.Reconnect)
	opts.SetCleanSession(cfg.Clean)

	if cfg.WillTopic != "" {
		if cfg.WillPayload == "" {
			return nil, errors.New("will topic without payload")
		}
		opts.SetBinaryWill(cfg.WillTopic, []byte(cfg.WillPayload), byte(cfg.WillQoS), cfg.WillRetain)
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: cfg.Insecure,
	}
	if cfg.CAFile != "" {
		rootCAs, _ := x509.SystemCertPool()
		if rootCAs == nil {
			rootCAs = x509.NewCertPool()
		}
		certs, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		if !rootCAs.AppendCertsFromPEM(certs) {
			return nil, errors.New("no certs appended from " + cfg.CAFile)
		}
		tlsConf.RootCAs = rootCAs
	}
	if cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}
	opts.SetTLSConfig(tlsConf)

	return opts, nil
}

// MQTTCouplings is a Couplings for an MQTT client.
type MQTTCouplings struct {
	Client mqtt.Client
	Config MQTTConfig
	Logger zerolog.Logger

	incoming chan *Message
	outbound chan *Message
	done     chan bool
}

// NewMQTTCouplings makes the client.  Start connects it.
func NewMQTTCouplings(cfg MQTTConfig) (*MQTTCouplings, error) {
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	c := &MQTTCouplings{
		Config:   cfg,
		Logger:   log.Logger,
		incoming: make(chan *Message),
		outbound: make(chan *Message, 64),
		done:     make(chan bool),
	}
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		c.Logger.Warn().Err(err).Msg("MQTT connection lost")
	})
	c.Client = mqtt.NewClient(opts)
	return c, nil
}

// inHandler is a Paho publish handler, which is used to handle
// messages sent to us from the MQTT broker due to our subscriptions.
func (c *MQTTCouplings) inHandler(ctx context.Context, client mqtt.Client, msg mqtt.Message) {
	c.Logger.Debug().Str("topic", msg.Topic()).Str("payload", Abbrev(msg.Payload())).Msg("incoming")

	m := &Message{
		Topic:   msg.Topic(),
		Payload: msg.Payload(),
	}

	to := time.NewTimer(c.Config.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
		c.Logger.Warn().Str("topic", m.Topic).Msg("not forwarding due to ctx.Done()")
	case c.incoming <- m:
	case <-to.C:
		c.Logger.Warn().Str("topic", m.Topic).Msg("not forwarding due to stall")
	}
}

// Start creates the MQTT session and subscribes.
func (c *MQTTCouplings) Start(ctx context.Context) error {
	c.Logger.Info().Str("broker", c.Config.Broker).Msg("connecting to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	handler := func(client mqtt.Client, msg mqtt.Message) {
		c.inHandler(ctx, client, msg)
	}
	for _, topic := range strings.Split(c.Config.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		c.Logger.Info().Str("topic", topic).Int("qos", int(qos)).Msg("subscribing")
		if t := c.Client.Subscribe(topic, qos, handler); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}

	go c.outLoop(ctx)

	return nil
}

// IO returns the channels.
func (c *MQTTCouplings) IO(ctx context.Context) (chan *Message, chan *Message, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

// outLoop forwards outgoing Messages to the MQTT broker.
func (c *MQTTCouplings) outLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.outbound:
			topic, qos := parseTopic(m.Topic)
			if topic == "" {
				topic, qos = parseTopic(c.Config.DefaultOutboundTopic)
			}
			token := c.Client.Publish(topic, qos, false, m.Payload)
			token.Wait()
			if err := token.Error(); err != nil {
				c.Logger.Error().Err(err).Str("topic", topic).Msg("publish")
			}
		}
	}
}

// Stop terminates the MQTT session.
func (c *MQTTCouplings) Stop(ctx context.Context) error {
	c.Logger.Info().Msg("disconnecting")
	c.Client.Disconnect(c.Config.Quiesce)
	return nil
}

// parseTopic extracts QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return s, 0
	}
	qos, err := strconv.ParseUint(s[i+1:], 10, 8)
	if err != nil || 2 < qos {
		return s, 0
	}
	return s[:i], byte(qos)
}
