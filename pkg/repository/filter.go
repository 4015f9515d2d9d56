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

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/types"
)

const (
	FilterTypeInclude = config.FilterTypeInclude
	FilterTypeExclude = config.FilterTypeExclude
)

// Filter decides which paths a repository exposes. Rules are matched
// against the whole path in the order they were added.
type Filter struct {
	filterType string
	rules      []*regexp.Regexp
	sources    []string
}

func NewFilter(filterType string, rules ...string) (*Filter, error) {
	f := &Filter{filterType: filterType}
	for _, r := range rules {
		if err := f.AddRule(r); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Filter) AddRule(pattern string) error {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("%w: filter rule %q: %s", types.ErrConfig, pattern, err)
	}
	f.rules = append(f.rules, re)
	f.sources = append(f.sources, pattern)
	return nil
}

func (f *Filter) InitConfiguration() error {
	switch f.filterType {
	case FilterTypeInclude, FilterTypeExclude:
		return nil
	default:
		return fmt.Errorf("%w: unknown filter type %q", types.ErrConfig, f.filterType)
	}
}

func (f *Filter) Type() string {
	return f.filterType
}

func (f *Filter) Rules() []string {
	return append([]string(nil), f.sources...)
}

// IsFiltered reports whether path is hidden. A path without a trailing
// separator also matches the rules written for the folder form.
func (f *Filter) IsFiltered(path string) bool {
	for _, re := range f.rules {
		if matchPartial(re, path) {
			return f.filterType == FilterTypeExclude
		}
	}
	return f.filterType == FilterTypeInclude
}

func matchPartial(re *regexp.Regexp, path string) bool {
	if re.MatchString(path) {
		return true
	}
	return !strings.HasSuffix(path, "/") && re.MatchString(path+"/")
}
