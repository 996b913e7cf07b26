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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// abbrevLen bounds payloads written to debug logs.
const abbrevLen = 70

// Abbrev returns the payload as a string, cut to abbrevLen bytes.
func Abbrev(payload []byte) string {
	if len(payload) <= abbrevLen {
		return string(payload)
	}
	return string(payload[:abbrevLen]) + "..."
}

var shell = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand replaces each <<command>> in line with the command's
// output, minus its trailing newline.  The commands run with bash
// until ctx is done.
func ShellExpand(ctx context.Context, line string) (string, error) {
	literals := shell.Split(line, -1)
	var acc strings.Builder
	acc.WriteString(literals[0])
	for i, m := range shell.FindAllStringSubmatch(line, -1) {
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, "bash", "-c", m[1])
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("shell expansion of %q: %w", m[1], err)
		}
		acc.WriteString(strings.TrimSuffix(out.String(), "\n"))
		acc.WriteString(literals[i+1])
	}
	return acc.String(), nil
}
