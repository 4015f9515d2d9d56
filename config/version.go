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

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// set with -ldflags "-X github.com/basenana/vfsrepo/config.gitTag=..."
var (
	gitTag    string
	gitCommit string
)

type Version struct {
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
	Patch   int    `json:"patch"`
	Release string `json:"release"`
	Git     string `json:"git"`
}

func (v Version) Version() string {
	if v.Release == "" {
		return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("v%d.%d.%d-%s", v.Major, v.Minor, v.Patch, v.Release)
}

func VersionInfo() Version {
	v := parseVersion(gitTag)
	v.Git = gitCommit
	return v
}

// parseVersion reads tags like v1.2.3-rc1, missing or malformed parts stay zero.
func parseVersion(tag string) Version {
	var v Version
	numbers, release, _ := strings.Cut(strings.TrimPrefix(tag, "v"), "-")
	v.Release = release
	fields := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range strings.SplitN(numbers, ".", len(fields)) {
		*fields[i], _ = strconv.Atoi(part)
	}
	return v
}
