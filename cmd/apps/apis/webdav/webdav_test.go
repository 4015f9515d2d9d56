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
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/net/webdav"

	"github.com/basenana/vfsrepo/cmd/apps/apis/apitool"
	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/repository"
)

const lockBody = `<?xml version="1.0" encoding="utf-8"?>
<D:lockinfo xmlns:D="DAV:">
  <D:lockscope><D:exclusive/></D:lockscope>
  <D:locktype><D:write/></D:locktype>
  <D:owner>alice</D:owner>
</D:lockinfo>`

var _ = Describe("FsOperator", func() {
	var (
		mgr      *repository.Manager
		operator FsOperator
		ctx      context.Context
	)

	BeforeEach(func() {
		mgr = newTestManager()
		operator = FsOperator{logger: log}
		ctx = loginContext(mgr, "alice")
	})

	writeFile := func(name, content string) {
		f, err := operator.OpenFile(ctx, name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		Expect(err).Should(BeNil())
		_, err = f.Write([]byte(content))
		Expect(err).Should(BeNil())
		Expect(f.Close()).Should(BeNil())
	}

	readFile := func(name string) string {
		f, err := operator.OpenFile(ctx, name, os.O_RDONLY, 0)
		Expect(err).Should(BeNil())
		defer f.Close()
		data, err := io.ReadAll(f)
		Expect(err).Should(BeNil())
		return string(data)
	}

	It("should reject calls without session", func() {
		_, err := operator.Stat(context.TODO(), "/")
		Expect(err).To(Equal(fs.ErrPermission))
	})

	Describe("Mkdir", func() {
		It("should create a folder", func() {
			Expect(operator.Mkdir(ctx, "/docs", fs.ModeDir|0755)).Should(BeNil())
			info, err := operator.Stat(ctx, "/docs")
			Expect(err).Should(BeNil())
			Expect(info.IsDir()).To(BeTrue())
			Expect(info.Name()).To(Equal("docs"))
		})

		It("should fail on existing folder", func() {
			Expect(operator.Mkdir(ctx, "/docs", fs.ModeDir|0755)).Should(BeNil())
			Expect(operator.Mkdir(ctx, "/docs", fs.ModeDir|0755)).To(Equal(fs.ErrExist))
		})

		It("should fail without parent", func() {
			Expect(operator.Mkdir(ctx, "/missing/docs", fs.ModeDir|0755)).To(Equal(fs.ErrNotExist))
		})
	})

	Describe("OpenFile", func() {
		BeforeEach(func() {
			Expect(operator.Mkdir(ctx, "/docs", fs.ModeDir|0755)).Should(BeNil())
		})

		It("should write a new file on close", func() {
			writeFile("/docs/a.txt", "hello")
			Expect(readFile("/docs/a.txt")).To(Equal("hello"))

			info, err := operator.Stat(ctx, "/docs/a.txt")
			Expect(err).Should(BeNil())
			Expect(info.Size()).To(Equal(int64(5)))
			Expect(info.IsDir()).To(BeFalse())
		})

		It("should overwrite with truncate", func() {
			writeFile("/docs/a.txt", "hello world")
			writeFile("/docs/a.txt", "bye")
			Expect(readFile("/docs/a.txt")).To(Equal("bye"))
		})

		It("should write at the seek offset", func() {
			writeFile("/docs/a.txt", "hello world")
			f, err := operator.OpenFile(ctx, "/docs/a.txt", os.O_RDWR, 0644)
			Expect(err).Should(BeNil())
			_, err = f.Seek(6, io.SeekStart)
			Expect(err).Should(BeNil())
			_, err = f.Write([]byte("there"))
			Expect(err).Should(BeNil())
			Expect(f.Close()).Should(BeNil())
			Expect(readFile("/docs/a.txt")).To(Equal("hello there"))
		})

		It("should fail on missing file without create", func() {
			_, err := operator.OpenFile(ctx, "/docs/none.txt", os.O_RDONLY, 0)
			Expect(err).To(Equal(fs.ErrNotExist))
		})

		It("should fail on missing parent", func() {
			_, err := operator.OpenFile(ctx, "/missing/a.txt", os.O_CREATE|os.O_WRONLY, 0644)
			Expect(err).To(Equal(fs.ErrNotExist))
		})

		It("should fail with exclusive create on existing file", func() {
			writeFile("/docs/a.txt", "hello")
			_, err := operator.OpenFile(ctx, "/docs/a.txt", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
			Expect(err).To(Equal(fs.ErrExist))
		})

		It("should list a folder", func() {
			writeFile("/docs/a.txt", "a")
			writeFile("/docs/b.txt", "b")
			d, err := operator.OpenFile(ctx, "/docs", os.O_RDONLY, 0)
			Expect(err).Should(BeNil())
			infos, err := d.Readdir(0)
			Expect(err).Should(BeNil())
			var names []string
			for _, info := range infos {
				names = append(names, info.Name())
			}
			Expect(names).To(ConsistOf("a.txt", "b.txt"))

			infos, err = d.Readdir(0)
			Expect(err).Should(BeNil())
			Expect(infos).To(BeEmpty())
		})

		It("should page a folder listing until EOF", func() {
			writeFile("/docs/a.txt", "a")
			writeFile("/docs/b.txt", "b")
			writeFile("/docs/c.txt", "c")
			d, err := operator.OpenFile(ctx, "/docs", os.O_RDONLY, 0)
			Expect(err).Should(BeNil())

			var names []string
			for {
				infos, err := d.Readdir(2)
				if err == io.EOF {
					break
				}
				Expect(err).Should(BeNil())
				Expect(len(infos)).To(BeNumerically("<=", 2))
				for _, info := range infos {
					names = append(names, info.Name())
				}
			}
			Expect(names).To(ConsistOf("a.txt", "b.txt", "c.txt"))

			_, err = d.Seek(0, io.SeekStart)
			Expect(err).Should(BeNil())
			infos, err := d.Readdir(0)
			Expect(err).Should(BeNil())
			Expect(infos).To(HaveLen(3))
		})
	})

	Describe("RemoveAll and Rename", func() {
		BeforeEach(func() {
			Expect(operator.Mkdir(ctx, "/docs", fs.ModeDir|0755)).Should(BeNil())
			writeFile("/docs/a.txt", "hello")
		})

		It("should remove a folder with content", func() {
			Expect(operator.RemoveAll(ctx, "/docs")).Should(BeNil())
			_, err := operator.Stat(ctx, "/docs/a.txt")
			Expect(err).To(Equal(fs.ErrNotExist))
		})

		It("should rename a file", func() {
			Expect(operator.Rename(ctx, "/docs/a.txt", "/docs/b.txt")).Should(BeNil())
			Expect(readFile("/docs/b.txt")).To(Equal("hello"))
			_, err := operator.Stat(ctx, "/docs/a.txt")
			Expect(err).To(Equal(fs.ErrNotExist))
		})

		It("should not rename onto an existing file", func() {
			writeFile("/docs/b.txt", "other")
			Expect(operator.Rename(ctx, "/docs/a.txt", "/docs/b.txt")).To(Equal(fs.ErrExist))
		})

		It("should deny removing a resource locked by another user", func() {
			ok, err := apitool.GetSession(ctx).Lock(ctx, "/docs/a.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).To(BeTrue())

			bobCtx := loginContext(mgr, "bob")
			Expect(operator.RemoveAll(bobCtx, "/docs/a.txt")).To(Equal(fs.ErrPermission))
		})
	})
})

var _ = Describe("LockSystem", func() {
	var (
		book         *lockBook
		alice, bob   repository.Session
		aliceCtx     context.Context
		bobCtx       context.Context
		now          time.Time
		fileLockRoot = webdav.LockDetails{Root: "/f.txt", Duration: -1}
	)

	BeforeEach(func() {
		mgr := newTestManager()
		aliceCtx, bobCtx = loginContext(mgr, "alice"), loginContext(mgr, "bob")
		alice, bob = apitool.GetSession(aliceCtx), apitool.GetSession(bobCtx)
		Expect(alice.Save(aliceCtx, "/f.txt", []byte("x"), true)).Should(BeNil())
		book = newLockBook()
		now = time.Now()
	})

	lockSystem := func(ctx context.Context, session repository.Session, mirror bool) *LockSystem {
		return &LockSystem{lockBook: book, ctx: ctx, session: session, mirror: mirror}
	}

	It("should not keep a repository lock when the token is taken", func() {
		_, err := lockSystem(aliceCtx, alice, false).Create(now, fileLockRoot)
		Expect(err).Should(BeNil())

		_, err = lockSystem(bobCtx, bob, true).Create(now, fileLockRoot)
		Expect(err).To(Equal(webdav.ErrLocked))

		info, err := bob.GetLock(bobCtx, "/f.txt")
		Expect(err).Should(BeNil())
		Expect(info).To(BeNil())
		Expect(book.size()).To(Equal(0))
	})

	It("should drop the token when the repository refuses the lock", func() {
		ok, err := alice.Lock(aliceCtx, "/f.txt", nil)
		Expect(err).Should(BeNil())
		Expect(ok).To(BeTrue())

		_, err = lockSystem(bobCtx, bob, true).Create(now, fileLockRoot)
		Expect(err).To(Equal(webdav.ErrLocked))
		Expect(book.size()).To(Equal(0))

		_, err = lockSystem(aliceCtx, alice, false).Create(now, fileLockRoot)
		Expect(err).Should(BeNil())
	})

	It("should release repository locks of expired tokens", func() {
		details := webdav.LockDetails{Root: "/f.txt", Duration: time.Second}
		_, err := lockSystem(aliceCtx, alice, true).Create(now, details)
		Expect(err).Should(BeNil())
		info, err := bob.GetLock(bobCtx, "/f.txt")
		Expect(err).Should(BeNil())
		Expect(info.Username).To(Equal("alice"))

		_, err = lockSystem(bobCtx, bob, true).Create(now.Add(time.Minute), details)
		Expect(err).Should(BeNil())
		info, err = bob.GetLock(bobCtx, "/f.txt")
		Expect(err).Should(BeNil())
		Expect(info.Username).To(Equal("bob"))
		Expect(book.size()).To(Equal(1))
	})

	It("should release expired locks on confirm", func() {
		_, err := lockSystem(aliceCtx, alice, true).Create(now, webdav.LockDetails{Root: "/f.txt", Duration: time.Second})
		Expect(err).Should(BeNil())

		release, err := lockSystem(bobCtx, bob, false).Confirm(now.Add(time.Minute), "/f.txt", "")
		if err == nil {
			release()
		}
		info, err := bob.GetLock(bobCtx, "/f.txt")
		Expect(err).Should(BeNil())
		Expect(info).To(BeNil())
		Expect(book.size()).To(Equal(0))
	})

	It("should keep refreshed locks", func() {
		token, err := lockSystem(aliceCtx, alice, true).Create(now, webdav.LockDetails{Root: "/f.txt", Duration: time.Second})
		Expect(err).Should(BeNil())
		_, err = lockSystem(aliceCtx, alice, false).Refresh(now, token, 10*time.Minute)
		Expect(err).Should(BeNil())

		_, err = lockSystem(bobCtx, bob, true).Create(now.Add(time.Minute), fileLockRoot)
		Expect(err).To(Equal(webdav.ErrLocked))
		info, err := bob.GetLock(bobCtx, "/f.txt")
		Expect(err).Should(BeNil())
		Expect(info.Username).To(Equal("alice"))
	})
})

var _ = Describe("Webdav", func() {
	var (
		mgr    *repository.Manager
		engine *gin.Engine
	)

	BeforeEach(func() {
		mgr = newTestManager()
		w, err := NewWebdav(mgr, config.Webdav{Enable: true})
		Expect(err).Should(BeNil())
		Expect(w.Prefix()).To(Equal(config.DefaultWebdavPrefix))
		engine = gin.New()
		w.Register(engine)
	})

	do := func(method, target, user string, body string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if user != "" {
			req.SetBasicAuth(user, user+"-pw")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	It("should be disabled by config", func() {
		_, err := NewWebdav(mgr, config.Webdav{Enable: false})
		Expect(err).ShouldNot(BeNil())
	})

	It("should ask for credentials", func() {
		rec := do(http.MethodGet, "/webdav/cms/", "", "", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Header().Get("WWW-Authenticate")).ToNot(BeEmpty())

		req := httptest.NewRequest(http.MethodGet, "/webdav/cms/", nil)
		req.SetBasicAuth("alice", "wrong")
		rec = httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should answer unknown repositories with not found", func() {
		rec := do(http.MethodGet, "/webdav/none/", "alice", "", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should put and get files", func() {
		Expect(do("MKCOL", "/webdav/cms/docs", "alice", "", nil).Code).To(Equal(http.StatusCreated))
		Expect(do(http.MethodPut, "/webdav/cms/docs/hello.txt", "alice", "hello", nil).Code).To(Equal(http.StatusCreated))

		rec := do(http.MethodGet, "/webdav/cms/docs/hello.txt", "bob", "", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("hello"))
		Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/plain"))

		rec = do("PROPFIND", "/webdav/cms/docs/", "alice", "", map[string]string{"Depth": "1"})
		Expect(rec.Code).To(Equal(http.StatusMultiStatus))
		Expect(rec.Body.String()).To(ContainSubstring("hello.txt"))

		Expect(do(http.MethodDelete, "/webdav/cms/docs/hello.txt", "alice", "", nil).Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, "/webdav/cms/docs/hello.txt", "alice", "", nil).Code).To(Equal(http.StatusNotFound))
	})

	It("should mirror webdav locks to the repository", func() {
		Expect(do(http.MethodPut, "/webdav/cms/hello.txt", "alice", "hello", nil).Code).To(Equal(http.StatusCreated))

		rec := do("LOCK", "/webdav/cms/hello.txt", "alice", lockBody, map[string]string{"Timeout": "Second-600"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		token := rec.Header().Get("Lock-Token")
		Expect(token).ToNot(BeEmpty())

		aliceCtx := loginContext(mgr, "alice")
		info, err := apitool.GetSession(aliceCtx).GetLock(aliceCtx, "/hello.txt")
		Expect(err).Should(BeNil())
		Expect(info).ToNot(BeNil())
		Expect(info.Username).To(Equal("alice"))

		Expect(do(http.MethodPut, "/webdav/cms/hello.txt", "bob", "bob", nil).Code).To(Equal(http.StatusLocked))

		rec = do("UNLOCK", "/webdav/cms/hello.txt", "alice", "", map[string]string{"Lock-Token": token})
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		info, err = apitool.GetSession(aliceCtx).GetLock(aliceCtx, "/hello.txt")
		Expect(err).Should(BeNil())
		Expect(info).To(BeNil())

		Expect(do(http.MethodPut, "/webdav/cms/hello.txt", "bob", "bob", nil).Code).To(Equal(http.StatusCreated))
	})
})
