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

package apps

import (
	"context"
	"fmt"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/metastore"
	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/storage"
	"github.com/basenana/vfsrepo/pkg/vfs"
	"github.com/basenana/vfsrepo/utils/logger"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.NewConfigLoader().GetConfig()
	if err != nil {
		return cfg, err
	}
	if cfg.Debug {
		logger.SetDebug(cfg.Debug)
	}
	return cfg, nil
}

// newEngine opens the metadata store and the first configured storage and
// makes sure the bootstrap records exist.
func newEngine(ctx context.Context, cfg config.Config) (*vfs.Engine, error) {
	meta, err := metastore.NewMetaStorage(cfg.Meta.Type, cfg.Meta)
	if err != nil {
		return nil, fmt.Errorf("init meta failed: %w", err)
	}
	if len(cfg.Storages) == 0 {
		return nil, fmt.Errorf("storage must config")
	}
	sCfg := cfg.Storages[0]
	s, err := storage.NewStorage(sCfg.ID, sCfg.Type, sCfg)
	if err != nil {
		return nil, fmt.Errorf("init storage %s failed: %w", sCfg.ID, err)
	}

	engine := vfs.NewEngine(meta, s)
	if err = engine.Init(ctx, cfg.Admin); err != nil {
		return nil, fmt.Errorf("init vfs failed: %w", err)
	}
	return engine, nil
}

// newManager runs both initialization phases for every configured
// repository.
func newManager(ctx context.Context, engine *vfs.Engine, cfg config.Config) (*repository.Manager, error) {
	cache, err := repository.NewLoginCache(repository.DefaultLoginCacheExpire)
	if err != nil {
		return nil, err
	}
	mgr := repository.NewManager(engine, cache)
	for _, repoCfg := range cfg.Repositories {
		if err = mgr.AddRepositoryClass(repoCfg); err != nil {
			return nil, err
		}
	}
	if err = mgr.InitConfiguration(); err != nil {
		return nil, err
	}
	if err = mgr.InitializeCms(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
