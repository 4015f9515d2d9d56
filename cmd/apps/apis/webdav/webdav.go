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

package webdav

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime/trace"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/basenana/vfsrepo/cmd/apps/apis/apitool"
	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils/logger"
)

var (
	log = logger.NewLogger("webdav")

	davMethods = []string{
		http.MethodOptions, http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete,
		"MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK", "PROPFIND", "PROPPATCH",
	}
)

// Webdav serves every repository of the manager below its own mount point.
type Webdav struct {
	prefix   string
	handlers map[string]http.Handler
	logger   *zap.SugaredLogger
}

func NewWebdav(mgr *repository.Manager, cfg config.Webdav) (*Webdav, error) {
	if !cfg.Enable {
		return nil, fmt.Errorf("webdav not enable")
	}
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = config.DefaultWebdavPrefix
	}

	w := &Webdav{prefix: prefix, handlers: map[string]http.Handler{}, logger: log}
	for _, repo := range mgr.Repositories() {
		w.handlers[repo.Name()] = newRepositoryHandler(prefix, repo)
		w.logger.Infow("webdav mounted", "repository", repo.Name(), "path", prefix+"/"+repo.Name()+"/")
	}
	return w, nil
}

func (w *Webdav) Prefix() string {
	return w.prefix
}

func (w *Webdav) Register(engine *gin.Engine) {
	h := gin.WrapH(w)
	for _, method := range davMethods {
		engine.Handle(method, w.prefix+"/*path", h)
	}
}

func (w *Webdav) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, w.prefix), "/")
	name, _, _ := strings.Cut(rest, "/")
	h, ok := w.handlers[name]
	if !ok {
		http.NotFound(rw, r)
		return
	}
	h.ServeHTTP(rw, r)
}

type repositoryHandler struct {
	dav  webdav.Handler
	book *lockBook
}

func newRepositoryHandler(prefix string, repo repository.Repository) http.Handler {
	h := &repositoryHandler{
		dav: webdav.Handler{
			Prefix:     prefix + "/" + repo.Name(),
			FileSystem: FsOperator{logger: log.With("repository", repo.Name())},
			Logger:     logger.InitWebdavLogger(repo.Name()).Handle,
		},
		book: newLockBook(),
	}
	return apitool.MetricMiddleware("webdav_"+repo.Name(), apitool.BasicAuthHandler(h, repo))
}

func (h *repositoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	dav := h.dav
	dav.LockSystem = &LockSystem{
		lockBook: h.book,
		ctx:      r.Context(),
		session:  apitool.GetSession(r.Context()),
		mirror:   r.Method == "LOCK",
	}
	dav.ServeHTTP(w, r)
}

// FsOperator runs webdav file operations on the session of the request.
type FsOperator struct {
	logger *zap.SugaredLogger
}

var _ webdav.FileSystem = FsOperator{}

func (o FsOperator) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	defer trace.StartRegion(ctx, "apis.webdav.Mkdir").End()
	session, err := o.session(ctx)
	if err != nil {
		return err
	}
	return error2FsError(session.Create(ctx, slashClean(name)))
}

func (o FsOperator) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	defer trace.StartRegion(ctx, "apis.webdav.OpenFile").End()
	session, err := o.session(ctx)
	if err != nil {
		return nil, err
	}
	name = slashClean(name)

	item, err := session.GetItem(ctx, name)
	if err == nil {
		if flag&os.O_CREATE > 0 && flag&os.O_EXCL > 0 {
			return nil, fs.ErrExist
		}
		return openFile(ctx, session, name, item, flag&os.O_TRUNC > 0), nil
	}
	if !errors.Is(err, types.ErrNotFound) || flag&os.O_CREATE == 0 {
		return nil, error2FsError(err)
	}
	if !session.Exists(ctx, path.Dir(name)) {
		return nil, fs.ErrNotExist
	}
	o.logger.Debugw("open new file", "path", name)
	return openFile(ctx, session, name, nil, true), nil
}

func (o FsOperator) RemoveAll(ctx context.Context, name string) error {
	defer trace.StartRegion(ctx, "apis.webdav.RemoveAll").End()
	session, err := o.session(ctx)
	if err != nil {
		return err
	}
	return error2FsError(session.Delete(ctx, slashClean(name)))
}

// Rename never overwrites, the webdav handler removes an existing target
// before when the client asked for it.
func (o FsOperator) Rename(ctx context.Context, oldName, newName string) error {
	defer trace.StartRegion(ctx, "apis.webdav.Rename").End()
	session, err := o.session(ctx)
	if err != nil {
		return err
	}
	return error2FsError(session.Move(ctx, slashClean(oldName), slashClean(newName), false))
}

func (o FsOperator) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	defer trace.StartRegion(ctx, "apis.webdav.Stat").End()
	session, err := o.session(ctx)
	if err != nil {
		return nil, err
	}
	item, err := session.GetItem(ctx, slashClean(name))
	if err != nil {
		return nil, error2FsError(err)
	}
	return Stat(item), nil
}

func (o FsOperator) session(ctx context.Context) (repository.Session, error) {
	session := apitool.GetSession(ctx)
	if session == nil {
		return nil, fs.ErrPermission
	}
	return session, nil
}
