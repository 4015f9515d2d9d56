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
	"errors"
	"time"

	"github.com/basenana/vfsrepo/pkg/events"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
)

// effectiveLock resolves the lock that applies to rootPath. A lock on an
// ancestor folder wins over a lock record on the path itself.
func (e *Engine) effectiveLock(ctx context.Context, rootPath string) (*types.Lock, error) {
	ancestors := ancestorPaths(rootPath)
	locks, err := e.meta.FindLocks(ctx, append(ancestors, rootPath))
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*types.Lock, len(locks))
	for _, l := range locks {
		byPath[l.RootPath] = l
	}
	for _, p := range ancestors {
		if l, ok := byPath[p]; ok {
			return &types.Lock{
				RootPath:  rootPath,
				Origin:    p,
				Type:      types.LockInherited,
				UserName:  l.UserName,
				Project:   l.Project,
				CreatedAt: l.CreatedAt,
			}, nil
		}
	}
	if l, ok := byPath[rootPath]; ok {
		return l, nil
	}
	return types.NullLock(rootPath), nil
}

// ancestorPaths lists the folders above rootPath, outermost first.
func ancestorPaths(rootPath string) []string {
	var result []string
	for p := utils.ParentPath(rootPath); p != ""; p = utils.ParentPath(p) {
		result = append([]string{p}, result...)
	}
	return result
}

func (a *accessor) ownsLock(lock *types.Lock) bool {
	return lock.IsOwnedInProjectBy(a.reqCtx.UserName(), a.reqCtx.ProjectName())
}

// requireLock fails unless the caller holds the lock, own or inherited.
func (a *accessor) requireLock(ctx context.Context, rootPath string) (*types.Lock, error) {
	if a.reqCtx.IsOnline() {
		return nil, types.ErrNoPerm
	}
	lock, err := a.engine.effectiveLock(ctx, rootPath)
	if err != nil {
		return nil, err
	}
	if lock.IsUnlocked() {
		return nil, types.ErrNotLocked
	}
	if !a.ownsLock(lock) {
		return nil, types.ErrLocked
	}
	return lock, nil
}

// requireNotLockedByOther fails when someone else holds the lock of rootPath.
func (a *accessor) requireNotLockedByOther(ctx context.Context, rootPath string) (*types.Lock, error) {
	if a.reqCtx.IsOnline() {
		return nil, types.ErrNoPerm
	}
	lock, err := a.engine.effectiveLock(ctx, rootPath)
	if err != nil {
		return nil, err
	}
	if !lock.IsUnlocked() && !a.ownsLock(lock) {
		return nil, types.ErrLocked
	}
	return lock, nil
}

func (a *accessor) requireSubtreeFree(ctx context.Context, folderPath string) error {
	locks, err := a.engine.meta.ListLocksUnder(ctx, folderPath)
	if err != nil {
		return err
	}
	for _, l := range locks {
		if !a.ownsLock(l) {
			return types.ErrLocked
		}
	}
	return nil
}

func (a *accessor) LockResource(ctx context.Context, path string) error {
	res, err := a.lookup(ctx, a.rootPath(path))
	if err != nil {
		return err
	}
	if a.reqCtx.IsOnline() {
		return types.ErrNoPerm
	}
	lock, err := a.engine.effectiveLock(ctx, res.RootPath)
	if err != nil {
		return err
	}
	switch {
	case lock.IsUnlocked():
	case a.ownsLock(lock):
		return nil
	default:
		return types.ErrLocked
	}

	if res.IsFolder {
		if err = a.requireSubtreeFree(ctx, res.RootPath); err != nil {
			return err
		}
		if err = a.engine.meta.DeleteLocksUnder(ctx, res.RootPath); err != nil {
			return err
		}
	}
	return a.saveLock(ctx, res.RootPath)
}

func (a *accessor) saveLock(ctx context.Context, rootPath string) error {
	lock := &types.Lock{
		RootPath:  rootPath,
		Type:      types.LockExclusive,
		UserName:  a.reqCtx.UserName(),
		Project:   a.reqCtx.ProjectName(),
		CreatedAt: time.Now(),
	}
	if err := a.engine.meta.SaveLock(ctx, lock); err != nil {
		return err
	}
	a.engine.publishLock(events.ActionTypeLock, lock)
	return nil
}

// ChangeLock moves a lock of the caller into the current project, a root
// admin may take over the lock of another user.
func (a *accessor) ChangeLock(ctx context.Context, path string) error {
	if a.reqCtx.IsOnline() {
		return types.ErrNoPerm
	}
	rootPath, err := a.lockPath(ctx, path)
	if err != nil {
		return err
	}
	lock, err := a.engine.effectiveLock(ctx, rootPath)
	if err != nil {
		return err
	}
	switch {
	case lock.IsUnlocked():
		return types.ErrNotLocked
	case lock.IsInherited():
		return types.ErrLocked
	case lock.UserName != a.reqCtx.UserName() && !a.reqCtx.User.HasRole(types.RoleRootAdmin):
		return types.ErrLocked
	case a.ownsLock(lock):
		return nil
	}
	return a.saveLock(ctx, rootPath)
}

func (a *accessor) UnlockResource(ctx context.Context, path string) error {
	if a.reqCtx.IsOnline() {
		return types.ErrNoPerm
	}
	rootPath, err := a.lockPath(ctx, path)
	if err != nil {
		return err
	}
	lock, err := a.engine.effectiveLock(ctx, rootPath)
	if err != nil {
		return err
	}
	switch {
	case lock.IsUnlocked():
		return types.ErrNotLocked
	case lock.IsInherited():
		return types.ErrLocked
	case lock.UserName != a.reqCtx.UserName() && !a.reqCtx.User.HasRole(types.RoleRootAdmin):
		return types.ErrLocked
	}
	if err = a.engine.meta.DeleteLock(ctx, rootPath); err != nil {
		return err
	}
	a.engine.publishLock(events.ActionTypeUnlock, lock)
	return nil
}

// GetLock also answers for paths whose resource was deleted while locked.
func (a *accessor) GetLock(ctx context.Context, path string) (*types.Lock, error) {
	rootPath, err := a.lockPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.engine.effectiveLock(ctx, rootPath)
}

// lockPath resolves path to the root path the lock record is kept under.
func (a *accessor) lockPath(ctx context.Context, path string) (string, error) {
	rootPath := a.rootPath(path)
	res, err := a.lookup(ctx, rootPath)
	if err == nil {
		return res.RootPath, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return "", err
	}
	if utils.IsFolderPath(rootPath) {
		return rootPath, nil
	}
	locks, err := a.engine.meta.FindLocks(ctx, []string{utils.FolderPath(rootPath)})
	if err != nil {
		return "", err
	}
	if len(locks) > 0 {
		return locks[0].RootPath, nil
	}
	return rootPath, nil
}
