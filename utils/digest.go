/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package utils

import (
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var digestPrinter = spew.ConfigState{
	Indent:         " ",
	SortKeys:       true,
	DisableMethods: true,
	SpewKeys:       true,
}

// ConfigDigest renders obj deterministically and returns a short digest of
// it, two equal configurations always give the same value.
func ConfigDigest(obj interface{}) string {
	h := fnv.New64a()
	_, _ = digestPrinter.Fprintf(h, "%#v", obj)
	return fmt.Sprintf("%016x", h.Sum64())
}
