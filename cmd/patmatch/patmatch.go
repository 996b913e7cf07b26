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

// Package main is a little command-line utility to invoke pattern
// matching and subscription filters.
//
//	patmatch -p '{"likes":["?liked"]}' -m '{"likes":["tacos","chips"]}' -w '[{"?liked":"tacos"},{"?liked":"chips"}]'
//	patmatch -f '{"sensor`kind":"door"}' -m '{"sensor":{"kind":"door"}}'
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Comcast/gobj/logging"
	"github.com/Comcast/gobj/match"
	"github.com/Comcast/gobj/value"
)

func main() {
	var (
		messageJS  = flag.String("m", "{}", "message in JSON")
		patternJS  = flag.String("p", "", "pattern in JSON")
		filterJS   = flag.String("f", "", "subscription filter in JSON (instead of a pattern)")
		bindingsJS = flag.String("b", "{}", "bindings in JSON")
		wantJS     = flag.String("w", "", "wanted bindings in JSON")

		bench = flag.Int("bench", 0, "number of times to run (and report time)")

		verbose = flag.Bool("v", false, "verbosity")
	)

	flag.Parse()

	logging.ConfigureRuntime()

	parse := func(what, js string) *value.Value {
		v, err := value.ParseString(js)
		if err != nil {
			log.Fatal().Err(err).Str("arg", what).Msg("parse")
		}
		return v
	}

	message := parse("message", *messageJS)

	if *filterJS != "" {
		filter := parse("filter", *filterJS)
		if 0 < *bench {
			benchmark(*bench, func() error {
				match.Simple(message, filter)
				return nil
			})
		}
		fmt.Printf("%v\n", match.Simple(message, filter))
		return
	}

	pattern := parse("pattern", *patternJS)
	bindings := parse("bindings", *bindingsJS)
	bs := match.BindingsFromValue(bindings)

	if 0 < *bench {
		benchmark(*bench, func() error {
			_, err := match.Match(pattern, message, bs)
			return err
		})
	}

	bss, err := match.Match(pattern, message, bs)
	if err != nil {
		log.Fatal().Err(err).Msg("match")
	}

	if *wantJS != "" {
		want := parse("want", *wantJS)
		if Wanted(want, bss, *verbose) {
			fmt.Printf("true\n")
			return
		}
		fmt.Printf("false\n")
		os.Exit(1)
	}

	acc := value.NewArray()
	for _, bs := range bss {
		acc.Append(bs.ToValue())
	}
	fmt.Printf("%s\n", acc)
}

func benchmark(n int, f func() error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	allocs := stats.TotalAlloc
	then := time.Now()
	for i := 0; i < n; i++ {
		if err := f(); err != nil {
			log.Fatal().Err(err).Msg("benchmark")
		}
	}
	elapsed := time.Since(then)
	meanNanos := elapsed.Nanoseconds() / int64(n)

	runtime.ReadMemStats(&stats)
	allocated := (stats.TotalAlloc - allocs) / uint64(n)

	log.Info().
		Int("iterations", n).
		Int64("ns", meanNanos).
		Uint64("bytes", allocated).
		Msg("mean per match")
}

// Wanted checks that every wanted set of bindings (an array of
// objects) appears in what we got.
func Wanted(want *value.Value, got []match.Bindings, verbose bool) bool {
	ok := true
	want.EachItem(func(_ int, w *value.Value) bool {
		for _, bs := range got {
			if Subset(w, bs, verbose) && len(bs) == w.Len() {
				return true
			}
		}
		ok = false
		return false
	})
	return ok
}

// Subset checks that the bindings in x are in y.
func Subset(x *value.Value, y match.Bindings, verbose bool) bool {
	same := true
	x.Each(func(p string, bx *value.Value) bool {
		by, have := y[p]
		if !have {
			same = false
			return false
		}
		if !value.Identical(bx, by) {
			if verbose {
				fmt.Printf("disagreement at %s: %s != %s\n", p, bx, by)
			}
			same = false
			return false
		}
		return true
	})
	return same
}
