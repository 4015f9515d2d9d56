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
	"path"
	"strings"
)

const PathSeparator = "/"

// CleanPath normalizes a repository path: leading separator, no duplicate
// separators, no dot segments. A trailing separator is kept.
func CleanPath(p string) string {
	if p == "" {
		return PathSeparator
	}
	trailing := strings.HasSuffix(p, PathSeparator)
	cleaned := path.Clean(PathSeparator + p)
	if trailing && cleaned != PathSeparator {
		cleaned += PathSeparator
	}
	return cleaned
}

func IsFolderPath(p string) bool {
	return strings.HasSuffix(p, PathSeparator)
}

func FolderPath(p string) string {
	if IsFolderPath(p) {
		return p
	}
	return p + PathSeparator
}

func TrimFolderPath(p string) string {
	if p == PathSeparator {
		return p
	}
	return strings.TrimSuffix(p, PathSeparator)
}

// ParentPath returns the parent folder (with trailing separator) of p, or ""
// for the root.
func ParentPath(p string) string {
	p = TrimFolderPath(p)
	if p == PathSeparator || p == "" {
		return ""
	}
	parent := path.Dir(p)
	return FolderPath(parent)
}

func BaseName(p string) string {
	p = TrimFolderPath(p)
	if p == PathSeparator {
		return ""
	}
	return path.Base(p)
}
