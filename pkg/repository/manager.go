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
	"fmt"
	"sort"
	"sync"

	"github.com/hyponet/eventbus"
	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/events"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
	"github.com/basenana/vfsrepo/utils/logger"
)

// Manager owns the configured repositories. Repositories can only be added
// until InitConfiguration freezes the manager.
type Manager struct {
	system  vfs.System
	cache   *LoginCache
	pending []Repository
	repos   map[string]Repository
	frozen  bool
	auditID string
	mux     sync.RWMutex
	logger  *zap.SugaredLogger
}

func NewManager(system vfs.System, cache *LoginCache) *Manager {
	return &Manager{
		system: system,
		cache:  cache,
		repos:  map[string]Repository{},
		logger: logger.NewLogger("repoManager"),
	}
}

func (m *Manager) AddRepositoryClass(cfg config.Repository) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.frozen {
		return fmt.Errorf("%w: repository %s added after configuration", types.ErrConfig, cfg.Name)
	}
	repo, err := NewRepository(cfg, m.system, m.cache)
	if err != nil {
		return err
	}
	m.pending = append(m.pending, repo)
	return nil
}

func (m *Manager) InitConfiguration() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.frozen {
		return nil
	}
	for _, repo := range m.pending {
		if _, ok := m.repos[repo.Name()]; ok {
			return fmt.Errorf("%w: duplicate repository %s", types.ErrConfig, repo.Name())
		}
		if err := repo.InitConfiguration(); err != nil {
			return fmt.Errorf("repository %s: %w", repo.Name(), err)
		}
		m.repos[repo.Name()] = repo
		m.logger.Infow("repository added", "repository", repo.Name())
	}
	m.pending = nil
	m.frozen = true
	m.auditID = eventbus.Subscribe(events.TopicAllActions, m.audit)
	return nil
}

// InitializeCms runs the second initialization phase. Repositories failing
// it are dropped.
func (m *Manager) InitializeCms(ctx context.Context) error {
	privileged, err := m.system.Privileged(ctx)
	if err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	for name, repo := range m.repos {
		if err = repo.InitializeCms(ctx, privileged); err != nil {
			m.logger.Warnw("initialize repository failed, repository dropped", "repository", name, "err", err)
			delete(m.repos, name)
		}
	}
	return nil
}

func (m *Manager) GetRepository(name string) (Repository, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	repo, ok := m.repos[name]
	return repo, ok
}

// Repositories lists the active repositories sorted by name.
func (m *Manager) Repositories() []Repository {
	m.mux.RLock()
	result := make([]Repository, 0, len(m.repos))
	for _, repo := range m.repos {
		result = append(result, repo)
	}
	m.mux.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

func (m *Manager) Shutdown() {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.auditID != "" {
		eventbus.Unsubscribe(m.auditID)
		m.auditID = ""
	}
	m.repos = map[string]Repository{}
	m.cache.Purge()
	m.logger.Info("repository manager shutdown")
}

func (m *Manager) audit(evt *types.Event) {
	m.logger.Debugw("vfs action", "action", evt.Type, "ref", evt.RefType,
		"path", evt.Data.RootPath, "user", evt.Data.UserName)
}
