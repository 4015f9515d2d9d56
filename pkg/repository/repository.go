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
	"runtime/trace"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
	"github.com/basenana/vfsrepo/utils"
	"github.com/basenana/vfsrepo/utils/logger"
)

const (
	ParamWrapper = "wrapper"
	ParamProject = "project"
	ParamRoot    = "root"
	ParamRole    = "role"
	ParamAddBOM  = "addBOM"

	// RoleAny turns the role check at login off.
	RoleAny = "any"
)

type Repository interface {
	Name() string
	Configuration() config.Repository
	InitConfiguration() error
	InitializeCms(ctx context.Context, privileged vfs.Accessor) error
	Login(ctx context.Context, user, password string) (Session, error)
	Filter() *Filter
	Translation() *Translator
}

// Params is the decoded parameter bag of a repository.
type Params struct {
	Wrappers []string `mapstructure:"wrapper"`
	Project  string   `mapstructure:"project"`
	Root     string   `mapstructure:"root"`
	Role     string   `mapstructure:"role"`
	AddBOM   bool     `mapstructure:"addBOM"`
}

// DecodeParams flattens the repeatable parameters, only wrapper may be given
// more than once, and decodes them over the defaults.
func DecodeParams(raw map[string][]string) (Params, []string, error) {
	params := Params{Role: types.RoleWorkplaceUser, AddBOM: true}
	flat := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == ParamWrapper {
			flat[k] = v
			continue
		}
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &params,
	})
	if err != nil {
		return params, nil, err
	}
	if err = decoder.Decode(flat); err != nil {
		return params, nil, fmt.Errorf("%w: %s", types.ErrConfig, err)
	}
	return params, md.Unused, nil
}

type Factory func(cfg config.Repository, system vfs.System, cache *LoginCache) Repository

var (
	repositoryClasses = map[string]Factory{
		config.VfsRepository: newVfsRepository,
	}
	classMux sync.RWMutex
)

func RegisterRepositoryClass(repoType string, factory Factory) {
	classMux.Lock()
	repositoryClasses[repoType] = factory
	classMux.Unlock()
}

func NewRepository(cfg config.Repository, system vfs.System, cache *LoginCache) (Repository, error) {
	repoType := cfg.Type
	if repoType == "" {
		repoType = config.VfsRepository
	}
	classMux.RLock()
	factory, ok := repositoryClasses[repoType]
	classMux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown repository type %q", types.ErrConfig, repoType)
	}
	return factory(cfg, system, cache), nil
}

type vfsRepository struct {
	cfg    config.Repository
	system vfs.System
	cache  *LoginCache

	params     Params
	filter     *Filter
	translator *Translator
	wrappers   []ResourceWrapper
	configured bool
	logger     *zap.SugaredLogger
}

func newVfsRepository(cfg config.Repository, system vfs.System, cache *LoginCache) Repository {
	return &vfsRepository{
		cfg:    cfg,
		system: system,
		cache:  cache,
		logger: logger.NewLogger("repository." + cfg.Name),
	}
}

func (r *vfsRepository) Name() string {
	return r.cfg.Name
}

func (r *vfsRepository) Configuration() config.Repository {
	return r.cfg
}

func (r *vfsRepository) Filter() *Filter {
	return r.filter
}

func (r *vfsRepository) Translation() *Translator {
	return r.translator
}

// InitConfiguration builds the filter, the translator and the wrapper
// chain. One broken wrapper disables the whole chain.
func (r *vfsRepository) InitConfiguration() error {
	if r.configured {
		return nil
	}
	params, unused, err := DecodeParams(r.cfg.Params)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		r.logger.Warnw("ignore unknown parameters", "params", unused)
	}
	r.params = params

	if r.cfg.Filter != nil {
		if r.filter, err = NewFilter(r.cfg.Filter.Type, r.cfg.Filter.Rules...); err != nil {
			return err
		}
		if err = r.filter.InitConfiguration(); err != nil {
			return err
		}
	}
	if r.cfg.Translation != nil && r.cfg.Translation.Enable {
		if r.translator, err = NewTranslator(r.cfg.Translation.Rules...); err != nil {
			return err
		}
	}

	wrappers := make([]ResourceWrapper, 0, len(params.Wrappers))
	for _, spec := range params.Wrappers {
		w, err := NewWrapper(spec)
		if err != nil {
			r.logger.Errorw("load resource wrapper failed, all wrappers disabled", "wrapper", spec, "err", err)
			wrappers = nil
			break
		}
		wrappers = append(wrappers, w)
	}
	r.wrappers = wrappers
	r.configured = true
	r.logger.Infow("repository configured", "digest", utils.ConfigDigest(r.cfg), "wrappers", len(r.wrappers))
	return nil
}

// InitializeCms checks the configured project and site root with a
// privileged accessor.
func (r *vfsRepository) InitializeCms(ctx context.Context, privileged vfs.Accessor) error {
	if !r.configured {
		return fmt.Errorf("%w: repository %s not configured", types.ErrConfig, r.cfg.Name)
	}
	acc := privileged.Clone()
	if r.params.Project != "" {
		if err := acc.SetProject(ctx, r.params.Project); err != nil {
			return fmt.Errorf("project %s: %w", r.params.Project, err)
		}
	}
	if r.params.Root != "" {
		res, err := acc.ReadResource(ctx, utils.FolderPath(r.params.Root))
		if err != nil {
			return fmt.Errorf("site root %s: %w", r.params.Root, err)
		}
		if !res.IsFolder {
			return fmt.Errorf("site root %s: %w", r.params.Root, types.ErrNoGroup)
		}
	}
	return nil
}

// Login authenticates the user or takes a recently authenticated accessor
// from the login cache.
func (r *vfsRepository) Login(ctx context.Context, user, password string) (Session, error) {
	defer trace.StartRegion(ctx, "repository.Login").End()
	defer logOperationLatency(r.cfg.Name, "login", time.Now())

	key := r.cfg.Name + "/" + r.cache.Key(user, password)
	acc := r.cache.Get(key)
	if acc == nil {
		var err error
		if acc, err = r.authenticate(ctx, user, password); err != nil {
			r.logger.Infow("login failed", "user", user, "err", err)
			return nil, logOperationError(r.cfg.Name, "login", err)
		}
		r.cache.Put(key, acc)
	}
	return NewSession(r.cfg.Name, NewObjectWrapper(acc, r.wrappers, r.params.AddBOM), r.filter, r.translator), nil
}

func (r *vfsRepository) authenticate(ctx context.Context, user, password string) (vfs.Accessor, error) {
	acc, err := r.system.Guest(ctx)
	if err != nil {
		return nil, err
	}
	if err = acc.LoginUser(ctx, user, password); err != nil {
		return nil, err
	}
	if r.params.Role != RoleAny && !acc.HasRole(ctx, r.params.Role) {
		return nil, fmt.Errorf("%w: user %s has no role %s", types.ErrNoPerm, user, r.params.Role)
	}

	project, siteRoot := r.params.Project, r.params.Root
	if project == "" || siteRoot == "" {
		settings, err := acc.ReadUser(ctx, user)
		if err != nil {
			return nil, err
		}
		if project == "" {
			project = settings.StartProject
		}
		if siteRoot == "" {
			siteRoot = settings.StartSite
		}
	}
	if project != "" {
		if err = acc.SetProject(ctx, project); err != nil {
			return nil, err
		}
	}
	if siteRoot != "" {
		acc.SetSiteRoot(siteRoot)
	}
	return acc, nil
}
