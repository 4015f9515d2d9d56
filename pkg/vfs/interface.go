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

package vfs

import (
	"context"

	"github.com/basenana/vfsrepo/pkg/types"
)

// Accessor is a handle on the virtual file system bound to one request
// context. Paths are relative to the site root unless they live below /system/.
type Accessor interface {
	RequestContext() RequestContext
	Clone() Accessor

	LoginUser(ctx context.Context, username, password string) error
	HasRole(ctx context.Context, role string) bool
	ReadUser(ctx context.Context, name string) (*types.User, error)
	SetProject(ctx context.Context, project string) error
	SetSiteRoot(siteRoot string)

	ReadResource(ctx context.Context, path string) (*types.Resource, error)
	ReadResourceByID(ctx context.Context, structureID int64) (*types.Resource, error)
	ReadFile(ctx context.Context, path string) (*types.File, error)
	Exists(ctx context.Context, path string) bool
	ReadChildren(ctx context.Context, path string) ([]*types.Resource, error)

	CreateResource(ctx context.Context, path, resType string, content []byte) (*types.Resource, error)
	WriteFile(ctx context.Context, file *types.File) error
	DeleteResource(ctx context.Context, path string, mode types.DeleteMode) error
	CopyResource(ctx context.Context, src, dst string, mode types.CopyMode) error
	MoveResource(ctx context.Context, src, dst string) error

	LockResource(ctx context.Context, path string) error
	ChangeLock(ctx context.Context, path string) error
	UnlockResource(ctx context.Context, path string) error
	GetLock(ctx context.Context, path string) (*types.Lock, error)

	ReadProperty(ctx context.Context, path, name string, search bool) (string, error)
	WriteProperty(ctx context.Context, path, name, value string) error

	SitePath(rootPath string) string
	DefaultTypeForName(name string) string
}

// System hands out accessors.
type System interface {
	Guest(ctx context.Context) (Accessor, error)
	Privileged(ctx context.Context) (Accessor, error)
}

type RequestContext struct {
	User     *types.User
	Project  *types.Project
	SiteRoot string
}

func (r RequestContext) UserName() string {
	if r.User == nil {
		return types.GuestUser
	}
	return r.User.Name
}

func (r RequestContext) ProjectName() string {
	if r.Project == nil {
		return types.OnlineProject
	}
	return r.Project.Name
}

func (r RequestContext) IsOnline() bool {
	return r.Project == nil || r.Project.Online
}

func (r RequestContext) clone() RequestContext {
	n := RequestContext{User: r.User.Clone(), SiteRoot: r.SiteRoot}
	if r.Project != nil {
		p := *r.Project
		n.Project = &p
	}
	return n
}
