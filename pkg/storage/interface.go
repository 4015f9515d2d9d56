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

package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/basenana/vfsrepo/config"
)

// Storage keeps resource content keyed by resource id.
type Storage interface {
	ID() string
	Get(ctx context.Context, key int64) (io.ReadCloser, error)
	Put(ctx context.Context, key int64, dataReader io.Reader) error
	Delete(ctx context.Context, key int64) error
	Head(ctx context.Context, key int64) (Info, error)
}

type Info struct {
	Key  string
	Size int64
}

func NewStorage(storageID, storageType string, cfg config.Storage) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch storageType {
	case LocalStorage:
		s, err = newLocalStorage(storageID, cfg.LocalDir)
	case MemoryStorage:
		s, err = newMemoryStorage(storageID), nil
	case S3Storage:
		s, err = newS3Storage(storageID, cfg.S3)
	case MinioStorage:
		s, err = newMinioStorage(storageID, cfg.MinIO)
	case OSSStorage:
		s, err = newOSSStorage(storageID, cfg.OSS)
	case WebdavStorage:
		s, err = newWebdavStorage(storageID, cfg.Webdav)
	default:
		return nil, fmt.Errorf("unknow storage type: %s", storageType)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Compress {
		s = &compressedStorage{Storage: s}
	}
	return instrumentalStorage{s: s}, nil
}
