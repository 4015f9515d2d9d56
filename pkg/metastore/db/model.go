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

package db

import (
	"strings"
	"time"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
)

type SystemInfo struct {
	SystemID  string `gorm:"column:system_id;primaryKey"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (i SystemInfo) TableName() string {
	return "system_info"
}

// Resource is one structure record. Siblings share ResourceID.
type Resource struct {
	StructureID int64  `gorm:"column:structure_id;primaryKey"`
	ResourceID  int64  `gorm:"column:resource_id;index:res_rid"`
	RootPath    string `gorm:"column:root_path;uniqueIndex:res_root_path"`
	ParentPath  string `gorm:"column:parent_path;index:res_parent"`
	Name        string `gorm:"column:name"`
	Type        string `gorm:"column:type"`
	IsFolder    bool   `gorm:"column:is_folder"`
	Length      int64  `gorm:"column:length"`
	CreatedBy   string `gorm:"column:created_by"`
	ModifiedBy  string `gorm:"column:modified_by"`
	CreatedAt   int64  `gorm:"column:created_at"`
	ModifiedAt  int64  `gorm:"column:modified_at"`
}

func (r *Resource) TableName() string {
	return "resource"
}

func (r *Resource) Update(res *types.Resource) {
	r.StructureID = res.StructureID
	r.ResourceID = res.ResourceID
	r.RootPath = res.RootPath
	r.ParentPath = utils.ParentPath(res.RootPath)
	r.Name = res.Name
	r.Type = res.Type
	r.IsFolder = res.IsFolder
	r.Length = res.Length
	r.CreatedBy = res.CreatedBy
	r.ModifiedBy = res.ModifiedBy
	r.CreatedAt = res.CreatedAt.UnixNano()
	r.ModifiedAt = res.ModifiedAt.UnixNano()
}

func (r *Resource) Resource() *types.Resource {
	return &types.Resource{
		StructureID: r.StructureID,
		ResourceID:  r.ResourceID,
		RootPath:    r.RootPath,
		Name:        r.Name,
		Type:        r.Type,
		IsFolder:    r.IsFolder,
		Length:      r.Length,
		CreatedBy:   r.CreatedBy,
		ModifiedBy:  r.ModifiedBy,
		CreatedAt:   time.Unix(0, r.CreatedAt),
		ModifiedAt:  time.Unix(0, r.ModifiedAt),
	}
}

type ResourceProperty struct {
	ID          int64  `gorm:"column:id;autoIncrement"`
	StructureID int64  `gorm:"column:structure_id;index:prop_sid"`
	Name        string `gorm:"column:key;index:prop_name"`
	Value       string `gorm:"column:value"`
}

func (p ResourceProperty) TableName() string {
	return "resource_property"
}

type ResourceLock struct {
	RootPath  string `gorm:"column:root_path;primaryKey"`
	UserName  string `gorm:"column:user_name"`
	Project   string `gorm:"column:project"`
	Type      string `gorm:"column:type"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (l *ResourceLock) TableName() string {
	return "resource_lock"
}

func (l *ResourceLock) Update(lock *types.Lock) {
	l.RootPath = lock.RootPath
	l.UserName = lock.UserName
	l.Project = lock.Project
	l.Type = string(lock.Type)
	l.CreatedAt = lock.CreatedAt.UnixNano()
}

func (l *ResourceLock) Lock() *types.Lock {
	return &types.Lock{
		RootPath:  l.RootPath,
		Type:      types.LockType(l.Type),
		UserName:  l.UserName,
		Project:   l.Project,
		CreatedAt: time.Unix(0, l.CreatedAt),
	}
}

type User struct {
	ID           int64  `gorm:"column:id;primaryKey"`
	Name         string `gorm:"column:name;uniqueIndex:user_name"`
	PasswordHash string `gorm:"column:password_hash"`
	Roles        string `gorm:"column:roles"`
	StartProject string `gorm:"column:start_project"`
	StartSite    string `gorm:"column:start_site"`
	Enabled      bool   `gorm:"column:enabled"`
	CreatedAt    int64  `gorm:"column:created_at"`
}

func (u *User) TableName() string {
	return "cms_user"
}

func (u *User) Update(user *types.User) {
	u.ID = user.ID
	u.Name = user.Name
	u.PasswordHash = user.PasswordHash
	u.Roles = strings.Join(user.Roles, ",")
	u.StartProject = user.StartProject
	u.StartSite = user.StartSite
	u.Enabled = user.Enabled
	u.CreatedAt = user.CreatedAt.UnixNano()
}

func (u *User) User() *types.User {
	result := &types.User{
		ID:           u.ID,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		StartProject: u.StartProject,
		StartSite:    u.StartSite,
		Enabled:      u.Enabled,
		CreatedAt:    time.Unix(0, u.CreatedAt),
	}
	if u.Roles != "" {
		result.Roles = strings.Split(u.Roles, ",")
	}
	return result
}

type Project struct {
	ID     int64  `gorm:"column:id;primaryKey"`
	Name   string `gorm:"column:name;uniqueIndex:project_name"`
	Online bool   `gorm:"column:online"`
}

func (p *Project) TableName() string {
	return "cms_project"
}

func (p *Project) Project() *types.Project {
	return &types.Project{ID: p.ID, Name: p.Name, Online: p.Online}
}
