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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stdio is a fairly simple Couplings that uses stdin for input and
// stdout for output.
//
// Each input line is a message payload, optionally preceded by a
// topic and a tab.  Blank lines and lines starting with '#' are
// ignored, and "quit" ends the input.
type Stdio struct {
	// In is coupled to gate input.
	In io.Reader

	// Out is coupled to gate output.
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "emit").
	Tags bool

	// PadTags adds some padding to tags.
	PadTags bool

	// InputEOF will be closed on EOF from stdin.
	InputEOF chan bool

	Logger zerolog.Logger

	WG sync.WaitGroup

	// lines is fed by the one goroutine that reads In.
	lines    chan string
	readOnce sync.Once
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
		Tags:        true,
		InputEOF:    make(chan bool),
		Logger:      log.Logger,
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop waits until IO is complete or was terminated via its
// context.
func (s *Stdio) Stop(ctx context.Context) error {
	s.WG.Wait()
	return nil
}

func (s *Stdio) printf(tag, format string, args ...interface{}) {
	if s.PadTags {
		tag = fmt.Sprintf("% 10s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}

	fmt.Fprintf(s.Out, format, args...)
}

// parseLine splits "topic\tpayload".
func parseLine(line string) *Message {
	line = strings.TrimSpace(line)
	m := &Message{}
	if i := strings.IndexByte(line, '\t'); 0 < i {
		m.Topic = strings.TrimSpace(line[:i])
		line = strings.TrimSpace(line[i+1:])
	}
	m.Payload = []byte(line)
	return m
}

// read copies the lines of In to s.lines until EOF, "quit" or an
// error.  It runs once per Stdio since a blocked read can't be
// interrupted.
func (s *Stdio) read() {
	defer func() {
		if s.InputEOF != nil {
			close(s.InputEOF)
		}
	}()
	defer close(s.lines)
	stdin := bufio.NewReader(s.In)
	for {
		line, err := stdin.ReadString('\n')
		if (err == io.EOF && line == "") || strings.TrimSpace(line) == "quit" {
			return
		}
		if err != nil && err != io.EOF {
			s.Logger.Error().Err(err).Msg("stdin")
			return
		}
		if s.EchoInput {
			s.printf("input", "%s", line)
		}
		if strings.HasPrefix(line, "#") || len(strings.TrimSpace(line)) == 0 {
			continue
		}
		s.lines <- line
	}
}

// IO returns channels for reading from stdin and writing to stdout.
// done is closed when the input is exhausted.
//
// IO can be called again after the previous context is done.  Input
// continues where the previous IO left it.
func (s *Stdio) IO(ctx context.Context) (chan *Message, chan *Message, chan bool, error) {
	s.readOnce.Do(func() {
		s.lines = make(chan string)
		go s.read()
	})

	in := make(chan *Message)
	out := make(chan *Message, 64)
	done := make(chan bool)

	s.WG.Add(2)
	go func() {
		defer s.WG.Done()
		for {
			var line string
			select {
			case <-ctx.Done():
				return
			case l, ok := <-s.lines:
				if !ok {
					close(done)
					return
				}
				line = l
			}
			if s.ShellExpand {
				var err error
				if line, err = ShellExpand(ctx, line); err != nil {
					s.Logger.Error().Err(err).Msg("stdin shell expansion")
					continue
				}
			}
			select {
			case <-ctx.Done():
				s.Logger.Warn().Str("line", Abbrev([]byte(line))).Msg("stdin line dropped")
				return
			case in <- parseLine(line):
			}
		}
	}()

	go func() {
		defer s.WG.Done()
		for {
			select {
			case <-ctx.Done():
				// Flush.
				for {
					select {
					case m := <-out:
						s.write(m)
					default:
						return
					}
				}
			case m := <-out:
				s.write(m)
			}
		}
	}()

	return in, out, done, nil
}

func (s *Stdio) write(m *Message) {
	if m.Topic != "" {
		s.printf("emit", "%s\t%s\n", m.Topic, m.Payload)
	} else {
		s.printf("emit", "%s\n", m.Payload)
	}
}
