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

package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	storageIDPattern = "^[a-zA-Z][a-zA-Z0-9-_.]{3,31}$"
	storageIDRegexp  = regexp.MustCompile(storageIDPattern)

	repoNamePattern = "^[a-zA-Z0-9][a-zA-Z0-9-_.]*$"
	repoNameRegexp  = regexp.MustCompile(repoNamePattern)

	validate = validator.New()
)

type verifier func(config *Config) error

var verifiers = []verifier{
	setDefaultValue,
	checkStruct,
	checkApiConfig,
	checkWebdavConfig,
	checkMetaConfig,
	checkStorageConfigs,
	checkRepositoryConfigs,
}

func setDefaultValue(config *Config) error {
	if config.Webdav != nil && config.Webdav.Prefix == "" {
		config.Webdav.Prefix = DefaultWebdavPrefix
	}
	for i := range config.Repositories {
		if config.Repositories[i].Type == "" {
			config.Repositories[i].Type = VfsRepository
		}
	}
	return nil
}

func checkStruct(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func checkApiConfig(config *Config) error {
	aCfg := config.Api
	if !aCfg.Enable {
		return nil
	}
	if aCfg.Host == "" || aCfg.Port == 0 {
		return fmt.Errorf("api.host or api.port not config")
	}
	return nil
}

func checkWebdavConfig(config *Config) error {
	wCfg := config.Webdav
	if wCfg == nil || !wCfg.Enable {
		return nil
	}
	if !config.Api.Enable {
		return fmt.Errorf("webdav is served by the api listener, api must be enabled")
	}
	if !strings.HasPrefix(wCfg.Prefix, "/") {
		return fmt.Errorf("webdav.prefix must start with /")
	}
	return nil
}

func checkMetaConfig(config *Config) error {
	m := config.Meta
	switch m.Type {
	case MemoryMeta:
		return nil
	case SqliteMeta:
		if m.Path == "" {
			return fmt.Errorf("path for sqlite db file is empty")
		}
		return nil
	case PostgresMeta:
		if m.DSN == "" {
			return fmt.Errorf("db dsn is empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown meta type %s", m.Type)
	}
}

func checkStorageConfigs(config *Config) error {
	if len(config.Storages) == 0 {
		return fmt.Errorf("stroage not config")
	}
	for i, s := range config.Storages {
		if err := checkStorageConfig(s); err != nil {
			return fmt.Errorf("storages[%d].%s: %s", i, s.ID, err)
		}
	}
	return nil
}

func checkStorageConfig(sConfig Storage) error {
	if sConfig.ID == "" {
		return fmt.Errorf("storage.id is empty")
	}
	if !storageIDRegexp.MatchString(sConfig.ID) {
		return fmt.Errorf("storage.id must match %s", storageIDPattern)
	}
	switch sConfig.Type {
	case MemoryStorage:
	case LocalStorage:
		if sConfig.LocalDir == "" {
			return fmt.Errorf("local path is empty")
		}
	case S3Storage:
		cfg := sConfig.S3
		if cfg == nil {
			return fmt.Errorf("s3 is nil")
		}
		if cfg.Region == "" {
			return fmt.Errorf("s3 config region is empty")
		}
		if cfg.AccessKeyID == "" {
			return fmt.Errorf("s3 config access_key_id is empty")
		}
		if cfg.SecretAccessKey == "" {
			return fmt.Errorf("s3 config secret_access_key is empty")
		}
		if cfg.BucketName == "" {
			return fmt.Errorf("s3 config bucket_name is empty")
		}
	case MinioStorage:
		cfg := sConfig.MinIO
		if cfg == nil {
			return fmt.Errorf("minio is nil")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("minio config endpoint is empty")
		}
		if cfg.AccessKeyID == "" {
			return fmt.Errorf("minio config access_key_id is empty")
		}
		if cfg.SecretAccessKey == "" {
			return fmt.Errorf("minio config secret_access_key is empty")
		}
		if cfg.BucketName == "" {
			return fmt.Errorf("minio config bucket_name is empty")
		}
	case OSSStorage:
		cfg := sConfig.OSS
		if cfg == nil {
			return fmt.Errorf("OSS config is nil")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("OSS endpoint is empty")
		}
		if cfg.AccessKeyID == "" {
			return fmt.Errorf("OSS access_key_id is empty")
		}
		if cfg.AccessKeySecret == "" {
			return fmt.Errorf("OSS access_key_secret is empty")
		}
		if cfg.BucketName == "" {
			return fmt.Errorf("OSS config bucket_name is empty")
		}
	case WebdavStorage:
		cfg := sConfig.Webdav
		if cfg == nil {
			return fmt.Errorf("webdav is nil")
		}
		if cfg.ServerURL == "" {
			return fmt.Errorf("webdav config server_url is empty")
		}
		if cfg.Username == "" {
			return fmt.Errorf("webdav config user is empty")
		}
		if cfg.Password == "" {
			return fmt.Errorf("webdav config password is empty")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", sConfig.Type)
	}
	return nil
}

func checkRepositoryConfigs(config *Config) error {
	seen := make(map[string]struct{}, len(config.Repositories))
	for i, r := range config.Repositories {
		if !repoNameRegexp.MatchString(r.Name) {
			return fmt.Errorf("repositories[%d]: name must match %s", i, repoNamePattern)
		}
		if _, ok := seen[r.Name]; ok {
			return fmt.Errorf("repositories[%d]: duplicate name %s", i, r.Name)
		}
		seen[r.Name] = struct{}{}

		if r.Type != VfsRepository {
			return fmt.Errorf("repositories[%d].%s: unknown repository type %s", i, r.Name, r.Type)
		}
		if r.Filter != nil && r.Filter.Type != FilterTypeInclude && r.Filter.Type != FilterTypeExclude {
			return fmt.Errorf("repositories[%d].%s: unknown filter type %s", i, r.Name, r.Filter.Type)
		}
	}
	return nil
}

func Verify(cfg *Config) error {
	for _, f := range verifiers {
		if err := f(cfg); err != nil {
			return err
		}
	}
	return nil
}
