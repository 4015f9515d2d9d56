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
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/trace"
	"sync"
	"time"

	"github.com/studio-b12/gowebdav"
	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils/logger"
)

const (
	WebdavStorage = config.WebdavStorage
)

type webdavStorage struct {
	sid        string
	cli        *gowebdav.Client
	readLimit  chan struct{}
	writeLimit chan struct{}
	mux        sync.Mutex
	logger     *zap.SugaredLogger
}

var _ Storage = &webdavStorage{}

func (w *webdavStorage) ID() string {
	return w.sid
}

func (w *webdavStorage) Get(ctx context.Context, key int64) (io.ReadCloser, error) {
	defer trace.StartRegion(ctx, "storage.webdav.Get").End()
	w.readLimit <- struct{}{}
	defer func() {
		<-w.readLimit
	}()
	fileReader, err := w.cli.ReadStream(webdavObjectPath(key))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, types.ErrNotFound
		}
		w.logger.Errorw("get file from server failed", "path", webdavObjectPath(key), "err", err)
		return nil, err
	}
	return fileReader, nil
}

func (w *webdavStorage) Put(ctx context.Context, key int64, dataReader io.Reader) error {
	defer trace.StartRegion(ctx, "storage.webdav.Put").End()
	w.writeLimit <- struct{}{}
	defer func() {
		<-w.writeLimit
	}()

	// concurrent creation will result in a 403 error.
	w.mux.Lock()
	err := w.cli.MkdirAll(webdavObjectDir(key), 0755)
	w.mux.Unlock()
	if err != nil {
		w.logger.Errorw("put file to server failed: mkdir error", "path", webdavObjectDir(key), "err", err)
		return err
	}

	err = w.cli.WriteStream(webdavObjectPath(key), dataReader, 0644)
	if err != nil {
		w.logger.Errorw("put file to server failed", "path", webdavObjectPath(key), "err", err)
		return err
	}
	return nil
}

func (w *webdavStorage) Delete(ctx context.Context, key int64) error {
	defer trace.StartRegion(ctx, "storage.webdav.Delete").End()
	err := w.cli.Remove(webdavObjectPath(key))
	if err != nil && !os.IsNotExist(err) && !gowebdav.IsErrNotFound(err) {
		w.logger.Errorw("delete file failed", "path", webdavObjectPath(key), "err", err)
		return err
	}
	return nil
}

func (w *webdavStorage) Head(ctx context.Context, key int64) (Info, error) {
	defer trace.StartRegion(ctx, "storage.webdav.Head").End()
	w.readLimit <- struct{}{}
	defer func() {
		<-w.readLimit
	}()
	info, err := w.cli.Stat(webdavObjectPath(key))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return Info{}, types.ErrNotFound
		}
		w.logger.Errorw("stat file from server failed", "path", webdavObjectPath(key), "err", err)
		return Info{}, err
	}
	return Info{
		Key:  info.Name(),
		Size: info.Size(),
	}, nil
}

func newWebdavStorage(storageID string, cfg *config.WebdavStorageConfig) (Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("webdav is nil")
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("webdav config server_url is empty")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("webdav config user or password is empty")
	}

	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   60 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
	}
	if cfg.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	cli := gowebdav.NewClient(cfg.ServerURL, cfg.Username, cfg.Password)
	cli.SetTransport(t)

	return &webdavStorage{
		sid:        storageID,
		cli:        cli,
		readLimit:  make(chan struct{}, 30),
		writeLimit: make(chan struct{}, 10),
		logger:     logger.NewLogger("webdav"),
	}, nil
}

func webdavObjectPath(key int64) string {
	return fmt.Sprintf("/webdav/content/%d/%d", key/100, key)
}

func webdavObjectDir(key int64) string {
	return fmt.Sprintf("/webdav/content/%d", key/100)
}
