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
	"strings"
	"time"

	"github.com/basenana/vfsrepo/pkg/events"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
)

const (
	systemFolder  = "/system"
	maxNameLength = 255
)

type accessor struct {
	engine *Engine
	reqCtx RequestContext
}

var _ Accessor = &accessor{}

func (a *accessor) RequestContext() RequestContext {
	return a.reqCtx.clone()
}

func (a *accessor) Clone() Accessor {
	return &accessor{engine: a.engine, reqCtx: a.reqCtx.clone()}
}

// LoginUser switches the accessor to the given user in the online project.
// The site root is kept.
func (a *accessor) LoginUser(ctx context.Context, username, password string) error {
	user, err := a.engine.getUser(ctx, username)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrLoginFailed
		}
		return err
	}
	if err = a.engine.checkPassword(user, password); err != nil {
		a.engine.logger.Infow("login failed", "user", username)
		return err
	}
	project, err := a.engine.meta.GetProject(ctx, types.OnlineProject)
	if err != nil {
		return err
	}
	a.reqCtx.User = user
	a.reqCtx.Project = project
	return nil
}

func (a *accessor) HasRole(ctx context.Context, role string) bool {
	return a.reqCtx.User.HasRole(role)
}

func (a *accessor) ReadUser(ctx context.Context, name string) (*types.User, error) {
	return a.engine.getUser(ctx, name)
}

func (a *accessor) SetProject(ctx context.Context, project string) error {
	p, err := a.engine.meta.GetProject(ctx, project)
	if err != nil {
		return err
	}
	a.reqCtx.Project = p
	return nil
}

func (a *accessor) SetSiteRoot(siteRoot string) {
	siteRoot = utils.TrimFolderPath(utils.CleanPath(siteRoot))
	if siteRoot == utils.PathSeparator {
		siteRoot = ""
	}
	a.reqCtx.SiteRoot = siteRoot
}

func (a *accessor) ReadResource(ctx context.Context, path string) (*types.Resource, error) {
	res, err := a.lookup(ctx, a.rootPath(path))
	if err != nil {
		return nil, err
	}
	return a.withSiblingCount(ctx, res)
}

func (a *accessor) ReadResourceByID(ctx context.Context, structureID int64) (*types.Resource, error) {
	res, err := a.engine.meta.GetResourceByID(ctx, structureID)
	if err != nil {
		return nil, err
	}
	return a.withSiblingCount(ctx, res)
}

func (a *accessor) ReadFile(ctx context.Context, path string) (*types.File, error) {
	res, err := a.ReadResource(ctx, path)
	if err != nil {
		return nil, err
	}
	if res.IsFolder {
		return nil, types.ErrIsGroup
	}
	content, err := a.engine.readContent(ctx, res)
	if err != nil {
		return nil, err
	}
	return &types.File{Resource: *res, Content: content}, nil
}

func (a *accessor) Exists(ctx context.Context, path string) bool {
	_, err := a.lookup(ctx, a.rootPath(path))
	return err == nil
}

func (a *accessor) ReadChildren(ctx context.Context, path string) ([]*types.Resource, error) {
	res, err := a.lookup(ctx, a.rootPath(path))
	if err != nil {
		return nil, err
	}
	if !res.IsFolder {
		return nil, types.ErrNoGroup
	}
	return a.engine.meta.ListChildren(ctx, res.RootPath)
}

// CreateResource creates a folder or file and locks it for the caller unless
// an ancestor lock already covers it.
func (a *accessor) CreateResource(ctx context.Context, path, resType string, content []byte) (*types.Resource, error) {
	rootPath := a.rootPath(path)
	isFolder := resType == types.FolderType
	if isFolder {
		rootPath = utils.FolderPath(rootPath)
	} else {
		rootPath = utils.TrimFolderPath(rootPath)
	}
	name := utils.BaseName(rootPath)
	if name == "" {
		return nil, types.ErrIsExist
	}
	if len(name) > maxNameLength {
		return nil, types.ErrNameTooLong
	}
	if _, err := a.lookup(ctx, utils.TrimFolderPath(rootPath)); err == nil {
		return nil, types.ErrIsExist
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	if err := a.checkParent(ctx, rootPath); err != nil {
		return nil, err
	}
	lock, err := a.requireNotLockedByOther(ctx, rootPath)
	if err != nil {
		return nil, err
	}

	if resType == "" {
		resType = types.DefaultTypeForName(name)
	}
	now := time.Now()
	res := &types.Resource{
		StructureID:  utils.GenerateNewID(),
		ResourceID:   utils.GenerateNewID(),
		RootPath:     rootPath,
		Name:         name,
		Type:         resType,
		IsFolder:     isFolder,
		SiblingCount: 1,
		CreatedBy:    a.reqCtx.UserName(),
		ModifiedBy:   a.reqCtx.UserName(),
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	if !isFolder {
		res.Length = int64(len(content))
		if err = a.engine.writeContent(ctx, res.ResourceID, content); err != nil {
			return nil, err
		}
	}
	if err = a.engine.meta.CreateResource(ctx, res); err != nil {
		if !isFolder {
			_ = a.engine.storage.Delete(ctx, res.ResourceID)
		}
		return nil, err
	}
	if lock.IsUnlocked() {
		if err = a.saveLock(ctx, rootPath); err != nil {
			return nil, err
		}
	}
	a.engine.publish(events.ActionTypeCreate, a.reqCtx.UserName(), res)
	return res, nil
}

// WriteFile replaces the content of an existing file, siblings see the new
// content as well.
func (a *accessor) WriteFile(ctx context.Context, file *types.File) error {
	res, err := a.engine.meta.GetResource(ctx, file.RootPath)
	if err != nil {
		return err
	}
	if res.IsFolder {
		return types.ErrIsGroup
	}
	if _, err = a.requireLock(ctx, res.RootPath); err != nil {
		return err
	}
	if err = a.engine.writeContent(ctx, res.ResourceID, file.Content); err != nil {
		return err
	}
	now := time.Now()
	if err = a.engine.meta.UpdateContent(ctx, res.ResourceID, int64(len(file.Content)), a.reqCtx.UserName(), now); err != nil {
		return err
	}
	res.Length = int64(len(file.Content))
	res.ModifiedBy = a.reqCtx.UserName()
	res.ModifiedAt = now
	a.engine.publish(events.ActionTypeUpdate, a.reqCtx.UserName(), res)
	return nil
}

// DeleteResource removes a resource and, for folders, everything below it.
// The lock record of the deleted path stays until it is unlocked.
func (a *accessor) DeleteResource(ctx context.Context, path string, mode types.DeleteMode) error {
	res, err := a.lookup(ctx, a.rootPath(path))
	if err != nil {
		return err
	}
	if res.RootPath == utils.PathSeparator {
		return types.ErrNoPerm
	}
	if _, err = a.requireLock(ctx, res.RootPath); err != nil {
		return err
	}
	if res.IsFolder {
		if err = a.requireSubtreeFree(ctx, res.RootPath); err != nil {
			return err
		}
	}

	var siblings []*types.Resource
	if mode == types.DeleteRemoveSiblings && !res.IsFolder {
		all, err := a.engine.meta.ListSiblings(ctx, res.ResourceID)
		if err != nil {
			return err
		}
		for _, s := range all {
			if s.StructureID == res.StructureID {
				continue
			}
			if _, err = a.requireNotLockedByOther(ctx, s.RootPath); err != nil {
				return err
			}
			siblings = append(siblings, s)
		}
	}

	deleted, err := a.engine.meta.DeleteTree(ctx, res.RootPath)
	if err != nil {
		return err
	}
	if res.IsFolder {
		if err = a.engine.meta.DeleteLocksUnder(ctx, res.RootPath); err != nil {
			return err
		}
	}
	for _, s := range siblings {
		more, err := a.engine.meta.DeleteTree(ctx, s.RootPath)
		if err != nil {
			return err
		}
		deleted = append(deleted, more...)
	}

	released := make(map[int64]struct{})
	for _, d := range deleted {
		if d.IsFolder {
			continue
		}
		if _, ok := released[d.ResourceID]; ok {
			continue
		}
		released[d.ResourceID] = struct{}{}
		a.engine.releaseContent(ctx, d.ResourceID)
	}
	a.engine.publish(events.ActionTypeDestroy, a.reqCtx.UserName(), res)
	return nil
}

func (a *accessor) CopyResource(ctx context.Context, src, dst string, mode types.CopyMode) error {
	srcRes, err := a.lookup(ctx, a.rootPath(src))
	if err != nil {
		return err
	}
	dstPath, err := a.prepareTarget(ctx, srcRes, dst)
	if err != nil {
		return err
	}
	lock, err := a.requireNotLockedByOther(ctx, dstPath)
	if err != nil {
		return err
	}

	copied, err := a.copyTree(ctx, srcRes, dstPath, mode, make(map[int64]int64))
	if err != nil {
		return err
	}
	if lock.IsUnlocked() {
		if err = a.saveLock(ctx, dstPath); err != nil {
			return err
		}
	}
	a.engine.publish(events.ActionTypeCopy, a.reqCtx.UserName(), copied)
	return nil
}

func (a *accessor) copyTree(ctx context.Context, src *types.Resource, dstPath string, mode types.CopyMode, resourceIDs map[int64]int64) (*types.Resource, error) {
	now := time.Now()
	res := src.Clone()
	res.StructureID = utils.GenerateNewID()
	res.RootPath = dstPath
	res.Name = utils.BaseName(dstPath)
	res.CreatedBy = a.reqCtx.UserName()
	res.ModifiedBy = a.reqCtx.UserName()
	res.CreatedAt = now
	res.ModifiedAt = now

	switch {
	case src.IsFolder:
		res.ResourceID = utils.GenerateNewID()
	case mode == types.CopyAsSibling:
	case mode == types.CopyPreserveSiblings && resourceIDs[src.ResourceID] != 0:
		res.ResourceID = resourceIDs[src.ResourceID]
	default:
		res.ResourceID = utils.GenerateNewID()
		resourceIDs[src.ResourceID] = res.ResourceID
		content, err := a.engine.readContent(ctx, src)
		if err != nil {
			return nil, err
		}
		if err = a.engine.writeContent(ctx, res.ResourceID, content); err != nil {
			return nil, err
		}
	}
	if err := a.engine.meta.CreateResource(ctx, res); err != nil {
		return nil, err
	}

	props, err := a.engine.meta.GetProperties(ctx, src.StructureID)
	if err != nil {
		return nil, err
	}
	for k, v := range props {
		if err = a.engine.meta.SetProperty(ctx, res.StructureID, k, v); err != nil {
			return nil, err
		}
	}

	if !src.IsFolder {
		return res, nil
	}
	children, err := a.engine.meta.ListChildren(ctx, src.RootPath)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childPath := dstPath + child.Name
		if child.IsFolder {
			childPath = utils.FolderPath(childPath)
		}
		if _, err = a.copyTree(ctx, child, childPath, mode, resourceIDs); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (a *accessor) MoveResource(ctx context.Context, src, dst string) error {
	srcRes, err := a.lookup(ctx, a.rootPath(src))
	if err != nil {
		return err
	}
	if srcRes.RootPath == utils.PathSeparator {
		return types.ErrNoPerm
	}
	if _, err = a.requireLock(ctx, srcRes.RootPath); err != nil {
		return err
	}
	dstPath, err := a.prepareTarget(ctx, srcRes, dst)
	if err != nil {
		return err
	}
	if _, err = a.requireNotLockedByOther(ctx, dstPath); err != nil {
		return err
	}
	if srcRes.IsFolder {
		if err = a.requireSubtreeFree(ctx, srcRes.RootPath); err != nil {
			return err
		}
	}

	if err = a.engine.meta.MoveTree(ctx, srcRes.RootPath, dstPath); err != nil {
		return err
	}
	lock, err := a.engine.effectiveLock(ctx, dstPath)
	if err != nil {
		return err
	}
	if lock.IsUnlocked() {
		if err = a.saveLock(ctx, dstPath); err != nil {
			return err
		}
	}

	moved := srcRes.Clone()
	moved.RootPath = dstPath
	moved.Name = utils.BaseName(dstPath)
	a.engine.publish(events.ActionTypeMove, a.reqCtx.UserName(), moved)
	return nil
}

// prepareTarget resolves the target root path of a copy or move and checks
// that it is free and its parent folder exists.
func (a *accessor) prepareTarget(ctx context.Context, src *types.Resource, dst string) (string, error) {
	dstPath := a.rootPath(dst)
	if src.IsFolder {
		dstPath = utils.FolderPath(dstPath)
		if strings.HasPrefix(dstPath, src.RootPath) {
			return "", types.ErrUnsupported
		}
	} else {
		dstPath = utils.TrimFolderPath(dstPath)
	}
	name := utils.BaseName(dstPath)
	if name == "" {
		return "", types.ErrIsExist
	}
	if len(name) > maxNameLength {
		return "", types.ErrNameTooLong
	}
	if _, err := a.lookup(ctx, utils.TrimFolderPath(dstPath)); err == nil {
		return "", types.ErrIsExist
	} else if !errors.Is(err, types.ErrNotFound) {
		return "", err
	}
	return dstPath, a.checkParent(ctx, dstPath)
}

func (a *accessor) checkParent(ctx context.Context, rootPath string) error {
	parent, err := a.engine.meta.GetResource(ctx, utils.ParentPath(rootPath))
	if err != nil {
		return err
	}
	if !parent.IsFolder {
		return types.ErrNoGroup
	}
	return nil
}

// ReadProperty returns "" when the property is not set. With search the
// parent folders are consulted up to the root.
func (a *accessor) ReadProperty(ctx context.Context, path, name string, search bool) (string, error) {
	res, err := a.lookup(ctx, a.rootPath(path))
	if err != nil {
		return "", err
	}
	for {
		props, err := a.engine.meta.GetProperties(ctx, res.StructureID)
		if err != nil {
			return "", err
		}
		if val, ok := props[name]; ok {
			return val, nil
		}
		parent := utils.ParentPath(res.RootPath)
		if !search || parent == "" {
			return "", nil
		}
		if res, err = a.engine.meta.GetResource(ctx, parent); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
	}
}

func (a *accessor) WriteProperty(ctx context.Context, path, name, value string) error {
	res, err := a.lookup(ctx, a.rootPath(path))
	if err != nil {
		return err
	}
	if _, err = a.requireLock(ctx, res.RootPath); err != nil {
		return err
	}
	return a.engine.meta.SetProperty(ctx, res.StructureID, name, value)
}

// SitePath strips the current site root from a root path.
func (a *accessor) SitePath(rootPath string) string {
	siteRoot := a.reqCtx.SiteRoot
	if siteRoot != "" && strings.HasPrefix(rootPath, siteRoot+utils.PathSeparator) {
		return rootPath[len(siteRoot):]
	}
	return rootPath
}

func (a *accessor) DefaultTypeForName(name string) string {
	return types.DefaultTypeForName(name)
}

// rootPath maps a site path to a root path. Paths below /system/ are shared
// by every site and never get the site prefix.
func (a *accessor) rootPath(p string) string {
	p = utils.CleanPath(p)
	if a.reqCtx.SiteRoot == "" || isSystemPath(p) {
		return p
	}
	return a.reqCtx.SiteRoot + p
}

func isSystemPath(p string) bool {
	return p == systemFolder || strings.HasPrefix(p, systemFolder+utils.PathSeparator)
}

// lookup finds a resource by root path, a folder also matches without its
// trailing separator.
func (a *accessor) lookup(ctx context.Context, rootPath string) (*types.Resource, error) {
	res, err := a.engine.meta.GetResource(ctx, rootPath)
	if err == nil || !errors.Is(err, types.ErrNotFound) || utils.IsFolderPath(rootPath) {
		return res, err
	}
	return a.engine.meta.GetResource(ctx, utils.FolderPath(rootPath))
}

func (a *accessor) withSiblingCount(ctx context.Context, res *types.Resource) (*types.Resource, error) {
	if res.IsFolder {
		res.SiblingCount = 1
		return res, nil
	}
	siblings, err := a.engine.meta.ListSiblings(ctx, res.ResourceID)
	if err != nil {
		return nil, err
	}
	res.SiblingCount = len(siblings)
	return res, nil
}
