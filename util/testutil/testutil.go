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

package testutil

import (
	"encoding/json"
	"fmt"
	"log"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Printf("warning: testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Ints converts tokens that are whole numbers (as produced by the
// interpreters and the YAML and JSON decoders) to ints.
func Ints(xs []interface{}) ([]int, error) {
	acc := make([]int, len(xs))
	for i, x := range xs {
		switch vv := x.(type) {
		case int:
			acc[i] = vv
		case int64:
			acc[i] = int(vv)
		case float64:
			if vv != float64(int(vv)) {
				return nil, fmt.Errorf("token %d (%v) is not a whole number", i, vv)
			}
			acc[i] = int(vv)
		default:
			return nil, fmt.Errorf("token %d (%#v) is a %T", i, x, x)
		}
	}
	return acc, nil
}
