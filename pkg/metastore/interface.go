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

package metastore

import (
	"context"
	"time"

	"github.com/basenana/vfsrepo/pkg/types"
)

type Meta interface {
	SystemInfo(ctx context.Context) (*types.SystemInfo, error)

	ResourceStore
	PropertyStore
	LockStore
	UserStore
}

// ResourceStore keeps the structure records keyed by root path.
// Folder paths end with a separator.
type ResourceStore interface {
	GetResource(ctx context.Context, rootPath string) (*types.Resource, error)
	GetResourceByID(ctx context.Context, structureID int64) (*types.Resource, error)
	ListChildren(ctx context.Context, parentPath string) ([]*types.Resource, error)
	ListSiblings(ctx context.Context, resourceID int64) ([]*types.Resource, error)
	CreateResource(ctx context.Context, res *types.Resource) error
	UpdateResource(ctx context.Context, res *types.Resource) error
	UpdateContent(ctx context.Context, resourceID, length int64, modifiedBy string, modifiedAt time.Time) error
	MoveTree(ctx context.Context, srcPath, dstPath string) error
	DeleteTree(ctx context.Context, rootPath string) ([]*types.Resource, error)
}

type PropertyStore interface {
	GetProperties(ctx context.Context, structureID int64) (map[string]string, error)
	SetProperty(ctx context.Context, structureID int64, name, value string) error
}

// LockStore keeps lock records by root path. A record may outlive the
// resource it was taken on.
type LockStore interface {
	FindLocks(ctx context.Context, rootPaths []string) ([]*types.Lock, error)
	SaveLock(ctx context.Context, lock *types.Lock) error
	ListLocksUnder(ctx context.Context, folderPath string) ([]*types.Lock, error)
	DeleteLock(ctx context.Context, rootPath string) error
	DeleteLocksUnder(ctx context.Context, folderPath string) error
}

type UserStore interface {
	GetUser(ctx context.Context, name string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	SaveUser(ctx context.Context, user *types.User) error

	GetProject(ctx context.Context, name string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	SaveProject(ctx context.Context, project *types.Project) error
}
