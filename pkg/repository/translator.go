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

package repository

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/basenana/vfsrepo/pkg/types"
)

type translation struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

// Translator rewrites incoming paths with sed style rules: s#regex#replacement#[g].
type Translator struct {
	rules []translation
}

func NewTranslator(rules ...string) (*Translator, error) {
	t := &Translator{}
	for _, r := range rules {
		if err := t.AddRule(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Translator) AddRule(rule string) error {
	if len(rule) < 4 || rule[0] != 's' {
		return fmt.Errorf("%w: translation rule %q", types.ErrConfig, rule)
	}
	sep := rule[1:2]
	parts := strings.Split(rule[2:], sep)
	if len(parts) != 3 || parts[0] == "" || (parts[2] != "" && parts[2] != "g") {
		return fmt.Errorf("%w: translation rule %q", types.ErrConfig, rule)
	}
	re, err := regexp.Compile(parts[0])
	if err != nil {
		return fmt.Errorf("%w: translation rule %q: %s", types.ErrConfig, rule, err)
	}
	t.rules = append(t.rules, translation{re: re, replacement: parts[1], global: parts[2] == "g"})
	return nil
}

func (t *Translator) TranslateResource(path string) string {
	for _, r := range t.rules {
		if r.global {
			path = r.re.ReplaceAllString(path, r.replacement)
			continue
		}
		loc := r.re.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}
		replaced := r.re.ExpandString(nil, r.replacement, path, loc)
		path = path[:loc[0]] + string(replaced) + path[loc[1]:]
	}
	return path
}
