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

const (
	RoleRootAdmin     = "ROOT_ADMIN"
	RoleDeveloper     = "DEVELOPER"
	RoleWorkplaceUser = "WORKPLACE_USER"

	GuestUser = "Guest"
	AdminUser = "Admin"

	OnlineProject  = "Online"
	OfflineProject = "Offline"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	StartProject string    `json:"start_project,omitempty"`
	StartSite    string    `json:"start_site,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	n := *u
	n.Roles = append([]string(nil), u.Roles...)
	return &n
}

func (u *User) IsGuest() bool {
	return u == nil || u.Name == GuestUser
}

func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role || r == RoleRootAdmin {
			return true
		}
	}
	return false
}

type Project struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}
