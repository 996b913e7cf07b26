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

// Package goja is a core.Interpreter for ECMAScript action bodies.
//
// Importing the package registers the interpreter as "goja" in
// core.DefaultInterpreters.
package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/core"
	"github.com/Comcast/gobj/match"
	"github.com/Comcast/gobj/value"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Exec if the execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)
)

func init() {
	core.DefaultInterpreters["goja"] = NewInterpreter()
}

// Interpreter implements core.Interpreter using Goja, which is a Go
// implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
type Interpreter struct {
	// Testing exposes sleep().
	Testing bool

	// LibraryProvider resolves the names listed in a source's
	// "requires".  DefaultLibraryProvider is used when nil.
	LibraryProvider func(ctx context.Context, i *Interpreter, libraryName string) (string, error)

	// Timeout, if positive, interrupts an action that runs
	// longer.
	Timeout time.Duration
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Timeout: 5 * time.Second,
	}
}

// ProvideLibrary resolves the library name into source code.
func (i *Interpreter) ProvideLibrary(ctx context.Context, name string) (string, error) {
	if i.LibraryProvider != nil {
		return i.LibraryProvider(ctx, i, name)
	}
	return DefaultLibraryProvider(ctx, i, name)
}

var DefaultLibraryProvider = MakeFileLibraryProvider(".")

// MakeFileLibraryProvider resolves names with the protocols "file"
// (relative to dir), "http" and "https".
func MakeFileLibraryProvider(dir string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			filename := filepath.Clean(parts[1])
			if strings.HasPrefix(filename, "..") {
				return "", fmt.Errorf("library outside %s: '%s'", dir, name)
			}
			bs, err := os.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		case "http", "https":
			req, err := http.NewRequestWithContext(ctx, "GET", name, nil)
			if err != nil {
				return "", err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("library fetch status %s", resp.Status)
			}
			bs, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}

func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// parseSource looks for "code" and "requires" properties.
func parseSource(vv map[string]interface{}) (code string, libs []string, err error) {
	s, is := vv["code"].(string)
	if !is {
		err = errors.New("bad Goja action code")
		return
	}
	code = s

	switch vv := vv["requires"].(type) {
	case nil:
	case string:
		libs = []string{vv}
	case []string:
		libs = vv
	case []interface{}:
		libs = make([]string, 0, len(vv))
		for _, x := range vv {
			s, is := x.(string)
			if !is {
				err = errors.New("bad library")
				return
			}
			libs = append(libs, s)
		}
	default:
		err = fmt.Errorf("bad requires (%T)", vv)
	}
	return
}

// AsSource accepts a string of code or a map with "code" and
// optional "requires".
//
// The YAML parser https://github.com/go-yaml/yaml returns
// map[interface{}]interface{}, so that is accepted as well as the
// map[string]interface{} that github.com/jsccast/yaml gives.
func AsSource(src interface{}) (code string, libs []string, err error) {
	switch vv := src.(type) {
	case string:
		code = vv
		return
	case map[interface{}]interface{}:
		m := make(map[string]interface{})
		for k, v := range vv {
			str, ok := k.(string)
			if !ok {
				err = fmt.Errorf("bad src key (%T)", k)
				return
			}
			m[str] = v
		}
		return parseSource(m)
	case map[string]interface{}:
		return parseSource(vv)
	default:
		err = fmt.Errorf("bad Goja source (%T)", src)
		return
	}
}

// Compile prepends the required libraries to the code, which is
// wrapped in a function, and calls goja.Compile.
//
// This method can block if the library provider blocks.
func (i *Interpreter) Compile(ctx context.Context, src interface{}) (interface{}, error) {
	code, libs, err := AsSource(src)
	if err != nil {
		return nil, err
	}

	code = wrapSrc(code)

	var libsSrc string
	for _, lib := range libs {
		libSrc, err := i.ProvideLibrary(ctx, lib)
		if err != nil {
			return nil, err
		}
		libsSrc += libSrc + "\n"
	}

	code = libsSrc + code

	obj, err := goja.Compile("", code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}

	return obj, nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

func export(x interface{}) interface{} {
	if v, is := x.(goja.Value); is {
		return v.Export()
	}
	return x
}

// toValue makes a new Value from what the script gave.
func toValue(o *goja.Runtime, x interface{}) *value.Value {
	v, err := value.FromNative(export(x))
	if err != nil {
		protest(o, err.Error())
	}
	return v
}

func asString(o *goja.Runtime, x interface{}) string {
	s, is := export(x).(string)
	if !is {
		protest(o, "not a string")
	}
	return s
}

// Exec implements the Interpreter method of the same name.
//
// The following properties are available from the runtime at _.
//
//	event, kw, src: the event, its data and the sender's name.
//	name, fullName, gclass, state: about the GObj.
//	read(attr), write(attr, x): attribute access.
//	publish(event, kw): publish and return the number of deliveries.
//	send(event, kw): send to the GObj itself.
//	sendTo(path, event, kw): send to the GObj at the path.
//	sendParent(event, kw): send to the parent.
//	changeState(state): change the state from within the action.
//	incrStat(name, n): add to a stats attribute.
//
// Some utilities:
//
//	gensym(): generate a random string.
//	esc(s): URL query-escape the given string.
//	cronNext(expr): the next time of a cron expression (RFC3339).
//	match(pat, obj, bs): execute the pattern matcher.
//	log(x): log x at info level.
//
// The Testing flag must be set to see sleep(ms).
//
// The code's return value is the Action status: a number, or 0 when
// nothing is returned.
func (i *Interpreter) Exec(ctx context.Context, ae *core.ActionEnv, src interface{}, compiled interface{}) (int, error) {
	var p *goja.Program
	if compiled == nil {
		var err error
		if compiled, err = i.Compile(ctx, src); err != nil {
			return -1, err
		}
	}
	var is bool
	if p, is = compiled.(*goja.Program); !is {
		return -1, fmt.Errorf("Goja bad compilation: %T %#v", compiled, compiled)
	}

	o := goja.New()
	env := map[string]interface{}{}
	o.Set("_", env)

	logger := &log.Logger

	if i.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	env["gensym"] = func() interface{} {
		return core.Gensym(32)
	}

	env["cronNext"] = func(x interface{}) interface{} {
		c, err := cronexpr.Parse(asString(o, x))
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["esc"] = func(x interface{}) interface{} {
		return url.QueryEscape(asString(o, x))
	}

	// match returns the list of sets of bindings.
	env["match"] = func(pat, fact, bs goja.Value) interface{} {
		p := toValue(o, pat)
		defer p.Decref()
		f := toValue(o, fact)
		defer f.Decref()
		bindings := match.NewBindings()
		if bs != nil && !goja.IsUndefined(bs) && !goja.IsNull(bs) {
			b := toValue(o, bs)
			defer b.Decref()
			bindings = match.BindingsFromValue(b)
		}
		bss, err := match.Match(p, f, bindings)
		if err != nil {
			protest(o, err.Error())
		}
		acc := make([]interface{}, len(bss))
		for j, bs := range bss {
			v := bs.ToValue()
			acc[j] = v.Export()
			v.Decref()
		}
		return acc
	}

	if ae != nil && ae.GObj != nil {
		g := ae.GObj
		logger = g.Logger()
		bind(o, env, ae)
	}

	env["log"] = func(x interface{}) interface{} {
		x = export(x)
		js, err := json.Marshal(&x)
		if err != nil {
			logger.Warn().Err(err).Msg("goja log")
		} else {
			logger.Info().RawJSON("x", js).Msg("goja log")
		}
		return x
	}

	// Make sure that the following goroutine is terminated as
	// soon as possible.
	var (
		ictx   context.Context
		cancel context.CancelFunc
	)
	if 0 < i.Timeout {
		ictx, cancel = context.WithTimeout(ctx, i.Timeout)
	} else {
		ictx, cancel = context.WithCancel(ctx)
	}
	go func() {
		<-ictx.Done()
		// After RunProgram returns, the interrupt is harmless.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return -1, Interrupted
		}
		return -1, err
	}

	return status(v.Export())
}

func status(x interface{}) (int, error) {
	switch vv := x.(type) {
	case nil:
		return 0, nil
	case int64:
		return int(vv), nil
	case float64:
		return int(vv), nil
	case bool:
		if vv {
			return 0, nil
		}
		return -1, nil
	}
	return -1, fmt.Errorf("action returned %#v (%T), not a number", x, x)
}

// bind exposes the GObj to the script.
func bind(o *goja.Runtime, env map[string]interface{}, ae *core.ActionEnv) {
	g := ae.GObj
	y := g.Yuno()

	env["event"] = ae.Event
	env["kw"] = ae.Kw.Export()
	if ae.Src != nil {
		env["src"] = ae.Src.Name()
	} else {
		env["src"] = nil
	}
	env["name"] = g.Name()
	env["fullName"] = g.FullName()
	env["gclass"] = g.GClassName()

	env["state"] = func() interface{} {
		return g.State()
	}

	env["read"] = func(x interface{}) interface{} {
		name := asString(o, x)
		if !g.HasAttr(name) {
			protest(o, "unknown attribute "+name)
		}
		return g.ReadAttr(name).Export()
	}

	env["write"] = func(x, v interface{}) interface{} {
		if err := g.WriteAttr(asString(o, x), toValue(o, v)); err != nil {
			protest(o, err.Error())
		}
		return nil
	}

	env["publish"] = func(event, kw interface{}) interface{} {
		return g.Publish(asString(o, event), toValue(o, kw))
	}

	env["send"] = func(event, kw interface{}) interface{} {
		return g.SendEvent(asString(o, event), toValue(o, kw), g)
	}

	env["sendTo"] = func(path, event, kw interface{}) interface{} {
		p := asString(o, path)
		target := y.FindGObj(p)
		if target == nil {
			protest(o, "no gobj at "+p)
		}
		return target.SendEvent(asString(o, event), toValue(o, kw), g)
	}

	env["sendParent"] = func(event, kw interface{}) interface{} {
		return g.SendEventToParent(asString(o, event), toValue(o, kw))
	}

	env["changeState"] = func(x interface{}) interface{} {
		return g.ChangeState(asString(o, x))
	}

	env["incrStat"] = func(x, n interface{}) interface{} {
		var delta int64 = 1
		switch vv := export(n).(type) {
		case int64:
			delta = vv
		case float64:
			delta = int64(vv)
		}
		return g.IncrStat(asString(o, x), delta)
	}
}
