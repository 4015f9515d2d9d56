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
	"os"
	"path"

	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
	"github.com/basenana/vfsrepo/utils/logger"
)

const (
	LocalStorage         = "local"
	defaultLocalDirMode  = 0755
	defaultLocalFileMode = 0644
)

type local struct {
	sid    string
	dir    string
	logger *zap.SugaredLogger
}

var _ Storage = &local{}

func (l *local) ID() string {
	return l.sid
}

func (l *local) Get(ctx context.Context, key int64) (io.ReadCloser, error) {
	defer utils.TraceRegion(ctx, "local.get")()
	file, err := os.Open(l.key2LocalPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotFound
		}
		l.logger.Errorw("open file failed", "key", key, "err", err)
		return nil, err
	}
	return file, nil
}

// Put writes into a temp file first so readers never see partial content.
func (l *local) Put(ctx context.Context, key int64, dataReader io.Reader) error {
	defer utils.TraceRegion(ctx, "local.put")()
	dataPath := l.key2LocalPath(key)
	if err := os.MkdirAll(path.Dir(dataPath), defaultLocalDirMode); err != nil {
		l.logger.Errorw("data path mkdir failed", "path", dataPath, "err", err)
		return err
	}

	tmp, err := os.CreateTemp(path.Dir(dataPath), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, dataReader); err != nil {
		_ = tmp.Close()
		l.logger.Errorw("copy file failed", "key", key, "err", err)
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), defaultLocalFileMode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dataPath)
}

func (l *local) Delete(ctx context.Context, key int64) error {
	defer utils.TraceRegion(ctx, "local.delete")()
	err := os.Remove(l.key2LocalPath(key))
	if err != nil && !os.IsNotExist(err) {
		l.logger.Errorw("delete file failed", "key", key, "err", err)
		return err
	}
	return nil
}

func (l *local) Head(ctx context.Context, key int64) (Info, error) {
	defer utils.TraceRegion(ctx, "local.head")()
	info, err := os.Stat(l.key2LocalPath(key))
	if err != nil && !os.IsNotExist(err) {
		return Info{}, err
	}
	if os.IsNotExist(err) {
		return Info{}, types.ErrNotFound
	}
	return Info{
		Key:  info.Name(),
		Size: info.Size(),
	}, nil
}

func (l *local) key2LocalPath(key int64) string {
	return path.Join(l.dir, fmt.Sprintf("%d", key%1000), fmt.Sprintf("%d", key))
}

func newLocalStorage(sid, dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local path is empty")
	}
	if err := os.MkdirAll(dir, defaultLocalDirMode); err != nil {
		return nil, fmt.Errorf("init local data dir failed: %s", err)
	}
	return &local{
		sid:    sid,
		dir:    dir,
		logger: logger.NewLogger("localStorage"),
	}, nil
}
