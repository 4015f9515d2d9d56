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
	"context"
	"errors"
	"fmt"
	"runtime/trace"
	"time"

	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
	"github.com/basenana/vfsrepo/utils/logger"
)

// Session is an authenticated view on one repository. Every path passes the
// translation and the filter of the repository before it reaches the VFS.
type Session interface {
	Copy(ctx context.Context, src, dst string, overwrite bool) error
	Create(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) bool
	GetItem(ctx context.Context, path string) (*Item, error)
	GetLock(ctx context.Context, path string) (*LockInfo, error)
	List(ctx context.Context, path string) ([]*Item, error)
	Lock(ctx context.Context, path string, info *LockInfo) (bool, error)
	Move(ctx context.Context, src, dst string, overwrite bool) error
	Save(ctx context.Context, path string, content []byte, overwrite bool) error
	Unlock(ctx context.Context, path string)

	Accessor() vfs.Accessor
	Filter() *Filter
}

type pathRestorer interface {
	RestoreResource(ctx context.Context, path string) string
}

type session struct {
	repo       string
	acc        vfs.Accessor
	filter     *Filter
	translator *Translator
	logger     *zap.SugaredLogger
}

var _ Session = &session{}

func NewSession(repo string, acc vfs.Accessor, filter *Filter, translator *Translator) Session {
	return &session{
		repo:       repo,
		acc:        acc,
		filter:     filter,
		translator: translator,
		logger:     logger.NewLogger("repository."+repo).With("user", acc.RequestContext().UserName()),
	}
}

func (s *session) Accessor() vfs.Accessor {
	return s.acc
}

func (s *session) Filter() *Filter {
	return s.filter
}

// Copy copies src to dst. An existing dst file is replaced when overwrite is
// set, folders are never replaced.
func (s *session) Copy(ctx context.Context, src, dst string, overwrite bool) (err error) {
	defer trace.StartRegion(ctx, "repository.session.Copy").End()
	defer logOperationLatency(s.repo, "copy", time.Now())
	defer func() { err = s.handleError("copy", src, err) }()

	if src, err = s.validatePath(src); err != nil {
		return err
	}
	if dst, err = s.validatePath(dst); err != nil {
		return err
	}
	if err = s.clearTarget(ctx, src, dst, overwrite); err != nil {
		return err
	}
	if err = s.acc.CopyResource(ctx, src, dst, types.CopyPreserveSiblings); err != nil {
		return err
	}
	s.releaseLock(ctx, dst)
	return nil
}

func (s *session) Move(ctx context.Context, src, dst string, overwrite bool) (err error) {
	defer trace.StartRegion(ctx, "repository.session.Move").End()
	defer logOperationLatency(s.repo, "move", time.Now())
	defer func() { err = s.handleError("move", src, err) }()

	if src, err = s.validatePath(src); err != nil {
		return err
	}
	if dst, err = s.validatePath(dst); err != nil {
		return err
	}
	if err = s.clearTarget(ctx, src, dst, overwrite); err != nil {
		return err
	}
	if err = s.acquireLock(ctx, src); err != nil {
		return err
	}
	if err = s.acc.MoveResource(ctx, src, dst); err != nil {
		return err
	}
	s.releaseLock(ctx, dst)
	return nil
}

// clearTarget makes room for a copy or move. Nothing is written unless the
// target may be replaced.
func (s *session) clearTarget(ctx context.Context, src, dst string, overwrite bool) error {
	if !s.acc.Exists(ctx, dst) {
		return nil
	}
	if !overwrite {
		return types.ErrIsExist
	}
	srcRes, err := s.acc.ReadResource(ctx, src)
	if err != nil {
		return err
	}
	dstRes, err := s.acc.ReadResource(ctx, dst)
	if err != nil {
		return err
	}
	if srcRes.IsFolder || dstRes.IsFolder {
		return fmt.Errorf("%w: folder %s can not be overwritten", types.ErrInternal, dst)
	}
	if err = s.acquireLock(ctx, dst); err != nil {
		return err
	}
	return s.acc.DeleteResource(ctx, dst, types.DeletePreserveSiblings)
}

// Create creates a folder.
func (s *session) Create(ctx context.Context, path string) (err error) {
	defer trace.StartRegion(ctx, "repository.session.Create").End()
	defer logOperationLatency(s.repo, "create", time.Now())
	defer func() { err = s.handleError("create", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return err
	}
	if _, err = s.acc.CreateResource(ctx, path, types.FolderType, nil); err != nil {
		return err
	}
	s.releaseLock(ctx, path)
	return nil
}

// Delete removes path and keeps a lock that existed before the call.
func (s *session) Delete(ctx context.Context, path string) (err error) {
	defer trace.StartRegion(ctx, "repository.session.Delete").End()
	defer logOperationLatency(s.repo, "delete", time.Now())
	defer func() { err = s.handleError("delete", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return err
	}
	prior, err := s.acc.GetLock(ctx, path)
	if err != nil {
		return err
	}
	if err = s.acquireLock(ctx, path); err != nil {
		return err
	}
	err = s.acc.DeleteResource(ctx, path, types.DeletePreserveSiblings)
	if prior.IsUnlocked() {
		s.releaseLock(ctx, path)
	}
	return err
}

func (s *session) Exists(ctx context.Context, path string) bool {
	defer trace.StartRegion(ctx, "repository.session.Exists").End()
	path, err := s.validatePath(path)
	if err != nil {
		return false
	}
	return s.acc.Exists(ctx, path)
}

func (s *session) GetItem(ctx context.Context, path string) (item *Item, err error) {
	defer trace.StartRegion(ctx, "repository.session.GetItem").End()
	defer logOperationLatency(s.repo, "get_item", time.Now())
	defer func() { err = s.handleError("get_item", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return nil, err
	}
	res, err := s.acc.ReadResource(ctx, path)
	if err != nil {
		return nil, err
	}
	return newItem(s.acc, res), nil
}

// GetLock returns nil when path is not locked.
func (s *session) GetLock(ctx context.Context, path string) (info *LockInfo, err error) {
	defer trace.StartRegion(ctx, "repository.session.GetLock").End()
	defer func() { err = s.handleError("get_lock", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return nil, err
	}
	lock, err := s.acc.GetLock(ctx, path)
	if err != nil {
		return nil, err
	}
	if lock.IsUnlocked() {
		return nil, nil
	}
	return newLockInfo(path, lock), nil
}

// List returns the children of a folder. A child is left out when its own
// path or the path of the resource backing it is filtered.
func (s *session) List(ctx context.Context, path string) (items []*Item, err error) {
	defer trace.StartRegion(ctx, "repository.session.List").End()
	defer logOperationLatency(s.repo, "list", time.Now())
	defer func() { err = s.handleError("list", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return nil, err
	}
	children, err := s.acc.ReadChildren(ctx, path)
	if err != nil {
		return nil, err
	}
	restorer, canRestore := s.acc.(pathRestorer)
	items = make([]*Item, 0, len(children))
	for _, child := range children {
		sitePath := s.acc.SitePath(child.RootPath)
		origPath := sitePath
		if canRestore {
			origPath = restorer.RestoreResource(ctx, sitePath)
		}
		if s.isFiltered(sitePath) || s.isFiltered(origPath) {
			continue
		}
		items = append(items, newItem(s.acc, child))
	}
	return items, nil
}

// Lock returns true when the caller holds the lock afterwards and false
// when another user holds it.
func (s *session) Lock(ctx context.Context, path string, info *LockInfo) (ok bool, err error) {
	defer trace.StartRegion(ctx, "repository.session.Lock").End()
	defer logOperationLatency(s.repo, "lock", time.Now())
	defer func() { err = s.handleError("lock", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return false, err
	}
	state, err := s.lockState(ctx, path)
	if err != nil {
		return false, err
	}
	if state == LockStateOwnedByOther {
		s.logger.Debugw("resource locked by other user", "path", path)
		return false, nil
	}
	if err = s.transit(ctx, path, state); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes content to path, creating a file of the default type for its
// name when it does not exist yet.
func (s *session) Save(ctx context.Context, path string, content []byte, overwrite bool) (err error) {
	defer trace.StartRegion(ctx, "repository.session.Save").End()
	defer logOperationLatency(s.repo, "save", time.Now())
	defer func() { err = s.handleError("save", path, err) }()

	if path, err = s.validatePath(path); err != nil {
		return err
	}
	file, err := s.acc.ReadFile(ctx, path)
	switch {
	case err == nil:
		if !overwrite {
			return types.ErrIsExist
		}
		prior, err := s.acc.GetLock(ctx, path)
		if err != nil {
			return err
		}
		if !prior.IsInherited() {
			if err = s.acquireLock(ctx, path); err != nil {
				return err
			}
		}
		file.Content = content
		err = s.acc.WriteFile(ctx, file)
		if prior.IsUnlocked() {
			s.releaseLock(ctx, path)
		}
		return err
	case errors.Is(err, types.ErrNotFound):
		if _, err = s.acc.CreateResource(ctx, path, s.acc.DefaultTypeForName(path), content); err != nil {
			return err
		}
		s.releaseLock(ctx, path)
		return nil
	default:
		return err
	}
}

// Unlock is best effort, failures are only logged.
func (s *session) Unlock(ctx context.Context, path string) {
	defer trace.StartRegion(ctx, "repository.session.Unlock").End()
	path, err := s.validatePath(path)
	if err != nil {
		return
	}
	if err = s.acc.UnlockResource(ctx, path); err != nil {
		s.logger.Errorw("unlock resource failed", "path", path, "err", err)
	}
}

func (s *session) validatePath(path string) (string, error) {
	if s.translator != nil {
		path = s.translator.TranslateResource(path)
	}
	if path == systemFolder {
		path = systemFolderPath
	}
	if s.isFiltered(path) {
		s.logger.Debugw("access to filtered path", "path", path)
		return "", types.ErrFiltered
	}
	return path, nil
}

func (s *session) isFiltered(path string) bool {
	return s.filter != nil && s.filter.IsFiltered(path)
}

func (s *session) lockState(ctx context.Context, path string) (LockState, error) {
	lock, err := s.acc.GetLock(ctx, path)
	if err != nil {
		return LockStateOwnedByOther, err
	}
	reqCtx := s.acc.RequestContext()
	return lockStateOf(lock, reqCtx.UserName(), reqCtx.ProjectName()), nil
}

// transit moves a resource from state into a lock held by the caller.
func (s *session) transit(ctx context.Context, path string, state LockState) error {
	switch state {
	case LockStateUnlocked:
		return s.acc.LockResource(ctx, path)
	case LockStateInherited, LockStateOwnedInProject:
		return nil
	case LockStateOwnedOtherProject:
		return s.acc.ChangeLock(ctx, path)
	default:
		return types.ErrLocked
	}
}

func (s *session) acquireLock(ctx context.Context, path string) error {
	state, err := s.lockState(ctx, path)
	if err != nil {
		return err
	}
	return s.transit(ctx, path, state)
}

// releaseLock drops the own lock of path, inherited locks stay.
func (s *session) releaseLock(ctx context.Context, path string) {
	lock, err := s.acc.GetLock(ctx, path)
	if err != nil {
		s.logger.Errorw("read lock failed", "path", path, "err", err)
		return
	}
	if lock.IsUnlocked() || lock.IsInherited() {
		return
	}
	if err = s.acc.UnlockResource(ctx, path); err != nil {
		s.logger.Errorw("unlock resource failed", "path", path, "err", err)
	}
}

func (s *session) handleError(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, types.ErrFiltered), errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrIsExist):
		s.logger.Debugw(operation+" failed", "path", path, "err", err)
	default:
		s.logger.Errorw(operation+" failed", "path", path, "err", err)
	}
	return logOperationError(s.repo, operation, err)
}
