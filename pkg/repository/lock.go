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
	"time"

	"github.com/basenana/vfsrepo/pkg/types"
)

const (
	LockScopeExclusive = "exclusive"
	LockScopeShared    = "shared"

	LockTypeWrite = "write"
	LockTypeRead  = "read"

	// DepthInfinity covers a folder and everything below it.
	DepthInfinity = -1
)

// LockInfo describes a lock as seen by repository clients. A zero ExpiresAt
// means the lock does not expire.
type LockInfo struct {
	Scope     string    `json:"scope"`
	Type      string    `json:"type"`
	Owner     string    `json:"owner"`
	Username  string    `json:"username"`
	Path      string    `json:"path"`
	Depth     int       `json:"depth"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (l *LockInfo) IsInfinite() bool {
	return l.ExpiresAt.IsZero()
}

func (l *LockInfo) IsExpired(now time.Time) bool {
	return !l.IsInfinite() && now.After(l.ExpiresAt)
}

func newLockInfo(path string, lock *types.Lock) *LockInfo {
	return &LockInfo{
		Scope:     LockScopeExclusive,
		Type:      LockTypeWrite,
		Owner:     lock.UserName,
		Username:  lock.UserName,
		Path:      path,
		Depth:     DepthInfinity,
		CreatedAt: lock.CreatedAt,
	}
}

// LockState is the lock situation of a resource from the point of view of
// one user working in one project.
type LockState int

const (
	LockStateUnlocked LockState = iota
	LockStateInherited
	LockStateOwnedInProject
	LockStateOwnedOtherProject
	LockStateOwnedByOther
)

func (s LockState) String() string {
	switch s {
	case LockStateUnlocked:
		return "unlocked"
	case LockStateInherited:
		return "inherited"
	case LockStateOwnedInProject:
		return "owned_in_project"
	case LockStateOwnedOtherProject:
		return "owned_other_project"
	default:
		return "owned_by_other"
	}
}

// Held reports whether the user can write under this state without
// touching the lock.
func (s LockState) Held() bool {
	return s == LockStateInherited || s == LockStateOwnedInProject
}

func lockStateOf(lock *types.Lock, user, project string) LockState {
	switch {
	case lock.IsUnlocked():
		return LockStateUnlocked
	case !lock.IsOwnedBy(user):
		return LockStateOwnedByOther
	case lock.IsInherited() && lock.Project == project:
		return LockStateInherited
	case lock.IsInherited():
		// an inherited lock can only be changed on the folder holding it
		return LockStateOwnedByOther
	case lock.Project == project:
		return LockStateOwnedInProject
	default:
		return LockStateOwnedOtherProject
	}
}
