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

package types

import (
	"time"
)

type LockType string

const (
	LockUnlocked  LockType = ""
	LockExclusive LockType = "exclusive"
	LockInherited LockType = "inherited"
)

// Lock is the advisory lock record of a resource. Inherited locks carry the
// path of the locked ancestor in Origin.
type Lock struct {
	RootPath  string    `json:"root_path"`
	Origin    string    `json:"origin,omitempty"`
	Type      LockType  `json:"type"`
	UserName  string    `json:"user_name,omitempty"`
	Project   string    `json:"project,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NullLock(rootPath string) *Lock {
	return &Lock{RootPath: rootPath, Type: LockUnlocked}
}

func (l *Lock) IsUnlocked() bool {
	return l == nil || l.Type == LockUnlocked
}

func (l *Lock) IsInherited() bool {
	return l != nil && l.Type == LockInherited
}

func (l *Lock) IsExclusive() bool {
	return l != nil && l.Type == LockExclusive
}

func (l *Lock) IsOwnedBy(user string) bool {
	return !l.IsUnlocked() && l.UserName == user
}

func (l *Lock) IsOwnedInProjectBy(user, project string) bool {
	return l.IsOwnedBy(user) && l.Project == project
}
