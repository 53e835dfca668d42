/* Copyright 2018 Comcast Cable Communications Management, LLC
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

package tools

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/util"
)

var inlinePattern = regexp.MustCompile(`(?s)(.*?)(%inline *\("([^"]*)"\))`)

// Inline replaces '%inline("NAME")' with f(NAME).
func Inline(bs []byte, f func(string) ([]byte, error)) ([]byte, error) {
	i := 0
	acc := make([]byte, 0, len(bs))
	for {
		part := inlinePattern.FindSubmatch(bs[i:])
		if part == nil {
			acc = append(acc, bs[i:]...)
			break
		}
		i += len(part[0])
		acc = append(acc, part[1]...)
		replacement, err := f(string(part[3]))
		if err != nil {
			return nil, err
		}
		util.Logf("inlining %s (%d bytes)", part[3], len(replacement))
		acc = append(acc, replacement...)
	}

	return acc, nil
}

// QuotedSource reads the file dir/name and returns its trimmed
// content as a JSON string, which is also a YAML flow scalar.
//
// Use it with Inline to keep long expressions in their own files:
//
//	body: [%inline("step.js")]
func QuotedSource(dir string) func(string) ([]byte, error) {
	return func(name string) ([]byte, error) {
		bs, err := ioutil.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		return json.Marshal(strings.TrimSpace(string(bs)))
	}
}

// ReadNetworkFile reads a network file, replaces each
// '%inline("NAME")' with the quoted content of NAME (relative to the
// file's directory), and parses the result.
func ReadNetworkFile(filename string) (*crew.Network, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if bs, err = Inline(bs, QuotedSource(filepath.Dir(filename))); err != nil {
		return nil, err
	}
	return crew.ParseNetwork(bs)
}
