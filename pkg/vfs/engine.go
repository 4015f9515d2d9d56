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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bluele/gcache"
	"github.com/hyponet/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/events"
	"github.com/basenana/vfsrepo/pkg/metastore"
	"github.com/basenana/vfsrepo/pkg/storage"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
	"github.com/basenana/vfsrepo/utils/logger"
)

const (
	DefaultSiteRoot      = "/sites/default"
	defaultAdminPassword = "admin"
	userCacheSize        = 1024
	userCacheExpire      = time.Minute
)

var (
	bootstrapFolders = []string{"/", "/system/", "/sites/", DefaultSiteRoot + "/"}

	resourceEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_resource_events",
			Help: "This count of resource events published by the vfs",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(resourceEventCounter)
}

type Engine struct {
	meta       metastore.Meta
	storage    storage.Storage
	users      gcache.Cache
	bcryptCost int
	logger     *zap.SugaredLogger
}

var _ System = &Engine{}

type Option func(e *Engine)

// WithBcryptCost changes the password hashing cost, tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(e *Engine) {
		e.bcryptCost = cost
	}
}

func NewEngine(meta metastore.Meta, s storage.Storage, opts ...Option) *Engine {
	e := &Engine{
		meta:       meta,
		storage:    s,
		users:      gcache.New(userCacheSize).LRU().Expiration(userCacheExpire).Build(),
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.NewLogger("vfs"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init creates the folders, projects and users a fresh system needs.
// Existing records are kept.
func (e *Engine) Init(ctx context.Context, admin *config.Admin) error {
	now := time.Now()
	for _, p := range bootstrapFolders {
		_, err := e.meta.GetResource(ctx, p)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrNotFound) {
			return err
		}
		res := &types.Resource{
			StructureID: utils.GenerateNewID(),
			ResourceID:  utils.GenerateNewID(),
			RootPath:    p,
			Name:        utils.BaseName(p),
			Type:        types.FolderType,
			IsFolder:    true,
			CreatedBy:   types.AdminUser,
			ModifiedBy:  types.AdminUser,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
		if err = e.meta.CreateResource(ctx, res); err != nil {
			return fmt.Errorf("init folder %s failed: %w", p, err)
		}
	}

	for _, p := range []*types.Project{{Name: types.OnlineProject, Online: true}, {Name: types.OfflineProject}} {
		_, err := e.meta.GetProject(ctx, p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrNotFound) {
			return err
		}
		if err = e.meta.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("init project %s failed: %w", p.Name, err)
		}
	}

	if _, err := e.getUser(ctx, types.GuestUser); errors.Is(err, types.ErrNotFound) {
		guest := &types.User{Name: types.GuestUser, Enabled: true, StartProject: types.OnlineProject, StartSite: DefaultSiteRoot, CreatedAt: now}
		if err = e.SaveUser(ctx, guest); err != nil {
			return err
		}
	}

	adminName, adminPassword := types.AdminUser, defaultAdminPassword
	if admin != nil {
		adminName, adminPassword = admin.Username, admin.Password
	}
	if _, err := e.getUser(ctx, adminName); errors.Is(err, types.ErrNotFound) {
		if admin == nil {
			e.logger.Warnw("create admin user with the default password", "user", adminName)
		}
		_, err = e.AddUser(ctx, adminName, adminPassword, []string{types.RoleRootAdmin})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Guest(ctx context.Context) (Accessor, error) {
	user, err := e.getUser(ctx, types.GuestUser)
	if err != nil {
		return nil, err
	}
	project, err := e.meta.GetProject(ctx, types.OnlineProject)
	if err != nil {
		return nil, err
	}
	return &accessor{engine: e, reqCtx: RequestContext{User: user, Project: project, SiteRoot: DefaultSiteRoot}}, nil
}

func (e *Engine) Privileged(ctx context.Context) (Accessor, error) {
	user, err := e.getUser(ctx, types.AdminUser)
	if err != nil {
		return nil, err
	}
	project, err := e.meta.GetProject(ctx, types.OfflineProject)
	if err != nil {
		return nil, err
	}
	return &accessor{engine: e, reqCtx: RequestContext{User: user, Project: project}}, nil
}

func (e *Engine) AddUser(ctx context.Context, name, password string, roles []string) (*types.User, error) {
	if _, err := e.getUser(ctx, name); err == nil {
		return nil, types.ErrIsExist
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &types.User{
		Name:         name,
		PasswordHash: string(hash),
		Roles:        roles,
		StartProject: types.OfflineProject,
		StartSite:    DefaultSiteRoot,
		Enabled:      true,
		CreatedAt:    time.Now(),
	}
	if err = e.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	e.logger.Infow("user added", "user", name, "roles", roles)
	return user, nil
}

func (e *Engine) SetPassword(ctx context.Context, name, password string) error {
	user, err := e.getUser(ctx, name)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return e.SaveUser(ctx, user)
}

func (e *Engine) SaveUser(ctx context.Context, user *types.User) error {
	defer e.users.Remove(user.Name)
	return e.meta.SaveUser(ctx, user)
}

func (e *Engine) ListUsers(ctx context.Context) ([]*types.User, error) {
	return e.meta.ListUsers(ctx)
}

func (e *Engine) SystemInfo(ctx context.Context) (*types.SystemInfo, error) {
	return e.meta.SystemInfo(ctx)
}

func (e *Engine) getUser(ctx context.Context, name string) (*types.User, error) {
	cached, err := e.users.Get(name)
	if err == nil {
		return cached.(*types.User).Clone(), nil
	}
	user, err := e.meta.GetUser(ctx, name)
	if err != nil {
		return nil, err
	}
	_ = e.users.Set(name, user.Clone())
	return user, nil
}

func (e *Engine) checkPassword(user *types.User, password string) error {
	if !user.Enabled || user.PasswordHash == "" {
		return types.ErrLoginFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.ErrLoginFailed
	}
	return nil
}

func (e *Engine) readContent(ctx context.Context, res *types.Resource) ([]byte, error) {
	r, err := e.storage.Get(ctx, res.ResourceID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) && res.Length == 0 {
			return []byte{}, nil
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (e *Engine) writeContent(ctx context.Context, resourceID int64, content []byte) error {
	return e.storage.Put(ctx, resourceID, bytes.NewReader(content))
}

// releaseContent drops stored content once no sibling refers to it.
func (e *Engine) releaseContent(ctx context.Context, resourceID int64) {
	siblings, err := e.meta.ListSiblings(ctx, resourceID)
	if err != nil {
		e.logger.Errorw("list siblings failed", "resource", resourceID, "err", err)
		return
	}
	if len(siblings) > 0 {
		return
	}
	if err = e.storage.Delete(ctx, resourceID); err != nil {
		e.logger.Errorw("delete content failed", "resource", resourceID, "err", err)
	}
}

func (e *Engine) publish(action, user string, res *types.Resource) {
	resourceEventCounter.WithLabelValues(action).Inc()
	evt := events.BuildResourceEvent(action, "vfs", res)
	evt.Data.UserName = user
	eventbus.Publish(events.ActionTopic(events.TopicResourceActionFmt, action), evt)
}

func (e *Engine) publishLock(action string, lock *types.Lock) {
	resourceEventCounter.WithLabelValues(action).Inc()
	eventbus.Publish(events.ActionTopic(events.TopicLockActionFmt, action), events.BuildLockEvent(action, "vfs", lock))
}
