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
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/types"
)

func itemNames(items []*Item) []string {
	names := make([]string, 0, len(items))
	for _, i := range items {
		names = append(names, i.Name())
	}
	return names
}

var _ = Describe("TestSession", func() {
	var (
		env  *testEnv
		repo Repository
		sess Session
	)

	BeforeEach(func() {
		env = newTestEnv()
		cfg := offlineRepositoryConfig("cms")
		cfg.Filter = &config.Filter{Type: FilterTypeExclude, Rules: []string{"/system/modules/.*", "/private/.*"}}
		repo = env.newRepository(cfg)
		sess = env.login(repo, "alice")
		Expect(sess.Create(ctx, "/a")).Should(BeNil())
	})

	Context("save", func() {
		It("save new path should round trip", func() {
			Expect(sess.Save(ctx, "/a/new.txt", []byte("hello world"), false)).Should(BeNil())
			item, err := sess.GetItem(ctx, "/a/new.txt")
			Expect(err).Should(BeNil())
			content, err := item.Content(ctx)
			Expect(err).Should(BeNil())
			Expect(content).Should(Equal([]byte("hello world")))
			Expect(item.ContentLength()).Should(Equal(int64(11)))
			Expect(item.IsCollection()).Should(BeFalse())
		})
		It("save existed path without overwrite should fail", func() {
			Expect(sess.Save(ctx, "/a/f.txt", []byte("same"), false)).Should(BeNil())
			Expect(sess.Save(ctx, "/a/f.txt", []byte("same"), false)).Should(Equal(types.ErrIsExist))
			Expect(sess.Save(ctx, "/a/f.txt", []byte("other"), false)).Should(Equal(types.ErrIsExist))
		})
		It("save with overwrite should replace the content and keep it unlocked", func() {
			Expect(sess.Save(ctx, "/a/f.txt", []byte("v1"), false)).Should(BeNil())
			Expect(sess.Save(ctx, "/a/f.txt", []byte("v2"), true)).Should(BeNil())
			item, err := sess.GetItem(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			content, err := item.Content(ctx)
			Expect(err).Should(BeNil())
			Expect(string(content)).Should(Equal("v2"))

			lock, err := sess.GetLock(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
		It("save should keep an existing lock", func() {
			Expect(sess.Save(ctx, "/a/f.txt", []byte("v1"), false)).Should(BeNil())
			ok, err := sess.Lock(ctx, "/a/f.txt", &LockInfo{Scope: LockScopeExclusive, Type: LockTypeWrite})
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			Expect(sess.Save(ctx, "/a/f.txt", []byte("v2"), true)).Should(BeNil())
			lock, err := sess.GetLock(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(lock).ShouldNot(BeNil())
			Expect(lock.Username).Should(Equal("alice"))
		})
		It("saved file should get the default type of its name", func() {
			Expect(sess.Save(ctx, "/a/pic.png", []byte{0x89, 'P', 'N', 'G'}, false)).Should(BeNil())
			item, err := sess.GetItem(ctx, "/a/pic.png")
			Expect(err).Should(BeNil())
			Expect(item.Resource().Type).Should(Equal(types.ImageType))
			Expect(item.MimeType(ctx)).Should(Equal("image/png"))
		})
	})

	Context("filtered paths", func() {
		It("filtered path should be refused", func() {
			err := sess.Save(ctx, "/system/modules/foo/bar", []byte("x"), false)
			Expect(errors.Is(err, types.ErrFiltered)).Should(BeTrue())
			Expect(errors.Is(err, types.ErrNoAccess)).Should(BeTrue())
			_, err = sess.GetItem(ctx, "/private/a")
			Expect(errors.Is(err, types.ErrFiltered)).Should(BeTrue())
			Expect(sess.Exists(ctx, "/private/a")).Should(BeFalse())
		})
		It("filtered folder should not be created", func() {
			Expect(errors.Is(sess.Create(ctx, "/private"), types.ErrFiltered)).Should(BeTrue())
			Expect(sess.Accessor().Exists(ctx, "/private")).Should(BeFalse())
		})
		It("list should leave filtered children out", func() {
			env.createUnlocked("/private/", types.FolderType, nil)
			Expect(sess.Save(ctx, "/b.txt", []byte("b"), false)).Should(BeNil())
			items, err := sess.List(ctx, "/")
			Expect(err).Should(BeNil())
			Expect(itemNames(items)).Should(ConsistOf("a", "b.txt"))
		})
	})

	Context("copy and move", func() {
		BeforeEach(func() {
			Expect(sess.Save(ctx, "/a/f.txt", []byte("content of f"), false)).Should(BeNil())
			Expect(sess.Save(ctx, "/a/g.txt", []byte("content of g"), false)).Should(BeNil())
		})
		It("copy over an existing file should replace it and leave it unlocked", func() {
			Expect(sess.Copy(ctx, "/a/f.txt", "/a/g.txt", true)).Should(BeNil())
			item, err := sess.GetItem(ctx, "/a/g.txt")
			Expect(err).Should(BeNil())
			content, err := item.Content(ctx)
			Expect(err).Should(BeNil())
			Expect(string(content)).Should(Equal("content of f"))

			lock, err := sess.GetLock(ctx, "/a/g.txt")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
		It("copy over an existing file without overwrite should fail", func() {
			Expect(sess.Copy(ctx, "/a/f.txt", "/a/g.txt", false)).Should(Equal(types.ErrIsExist))
		})
		It("copy over a folder should fail", func() {
			Expect(sess.Create(ctx, "/b")).Should(BeNil())
			err := sess.Copy(ctx, "/a/f.txt", "/b", true)
			Expect(errors.Is(err, types.ErrInternal)).Should(BeTrue())
			Expect(sess.Exists(ctx, "/b")).Should(BeTrue())
		})
		It("copy of a folder should copy the subtree", func() {
			Expect(sess.Copy(ctx, "/a", "/c", false)).Should(BeNil())
			items, err := sess.List(ctx, "/c")
			Expect(err).Should(BeNil())
			Expect(itemNames(items)).Should(ConsistOf("f.txt", "g.txt"))
			lock, err := sess.GetLock(ctx, "/c")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
		It("copy to a filtered path should fail", func() {
			err := sess.Copy(ctx, "/a/f.txt", "/private/f.txt", false)
			Expect(errors.Is(err, types.ErrFiltered)).Should(BeTrue())
		})
		It("move over an existing file should replace it", func() {
			Expect(sess.Move(ctx, "/a/f.txt", "/a/g.txt", true)).Should(BeNil())
			Expect(sess.Exists(ctx, "/a/f.txt")).Should(BeFalse())
			item, err := sess.GetItem(ctx, "/a/g.txt")
			Expect(err).Should(BeNil())
			content, err := item.Content(ctx)
			Expect(err).Should(BeNil())
			Expect(string(content)).Should(Equal("content of f"))
			lock, err := sess.GetLock(ctx, "/a/g.txt")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
		It("move without overwrite should fail", func() {
			Expect(sess.Move(ctx, "/a/f.txt", "/a/g.txt", false)).Should(Equal(types.ErrIsExist))
			Expect(sess.Exists(ctx, "/a/f.txt")).Should(BeTrue())
		})
		It("move of a folder should succeed", func() {
			Expect(sess.Move(ctx, "/a", "/moved", false)).Should(BeNil())
			Expect(sess.Exists(ctx, "/a")).Should(BeFalse())
			Expect(sess.Exists(ctx, "/moved/f.txt")).Should(BeTrue())
			lock, err := sess.GetLock(ctx, "/moved")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
	})

	Context("delete", func() {
		BeforeEach(func() {
			Expect(sess.Save(ctx, "/a/f.txt", []byte("f"), false)).Should(BeNil())
		})
		It("delete of an unlocked resource should leave no lock", func() {
			Expect(sess.Delete(ctx, "/a/f.txt")).Should(BeNil())
			Expect(sess.Exists(ctx, "/a/f.txt")).Should(BeFalse())
			lock, err := sess.GetLock(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
		It("delete of a locked resource should keep the lock", func() {
			ok, err := sess.Lock(ctx, "/a/f.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			Expect(sess.Delete(ctx, "/a/f.txt")).Should(BeNil())
			Expect(sess.Exists(ctx, "/a/f.txt")).Should(BeFalse())
			lock, err := sess.GetLock(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(lock).ShouldNot(BeNil())
			Expect(lock.Owner).Should(Equal("alice"))
		})
		It("delete of a folder should remove its children", func() {
			Expect(sess.Delete(ctx, "/a")).Should(BeNil())
			Expect(sess.Exists(ctx, "/a/f.txt")).Should(BeFalse())
			lock, err := sess.GetLock(ctx, "/a/")
			Expect(err).Should(BeNil())
			Expect(lock).Should(BeNil())
		})
	})

	Context("locks", func() {
		var bob Session

		BeforeEach(func() {
			bob = env.login(repo, "bob")
			Expect(sess.Save(ctx, "/a/f.txt", []byte("f"), false)).Should(BeNil())
		})
		It("lock held by other user should not be acquired", func() {
			ok, err := sess.Lock(ctx, "/a/f.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			ok, err = bob.Lock(ctx, "/a/f.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeFalse())
			Expect(bob.Save(ctx, "/a/f.txt", []byte("bob"), true)).Should(Equal(types.ErrLocked))
		})
		It("lock inherited from a folder should count as held", func() {
			ok, err := sess.Lock(ctx, "/a", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			ok, err = sess.Lock(ctx, "/a/f.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			lock, err := sess.GetLock(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(lock.Scope).Should(Equal(LockScopeExclusive))
			Expect(lock.Depth).Should(Equal(DepthInfinity))
			Expect(lock.IsInfinite()).Should(BeTrue())
		})
		It("own lock from another project should be changed", func() {
			ok, err := sess.Lock(ctx, "/a/f.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())

			Expect(env.meta.SaveProject(ctx, &types.Project{Name: "Release"})).Should(BeNil())
			Expect(sess.Accessor().SetProject(ctx, "Release")).Should(BeNil())
			ok, err = sess.Lock(ctx, "/a/f.txt", nil)
			Expect(err).Should(BeNil())
			Expect(ok).Should(BeTrue())
			lock, err := sess.Accessor().GetLock(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(lock.Project).Should(Equal("Release"))
		})
		It("unlock failures should be swallowed", func() {
			sess.Unlock(ctx, "/a/f.txt")
			sess.Unlock(ctx, "/private/x")
			bob.Unlock(ctx, "/a/f.txt")
		})
	})
})

var _ = Describe("TestSessionWrappers", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
		env.createUnlocked("/docs/", types.FolderType, nil)
		env.createUnlocked("/docs/secret.txt", types.PlainType, []byte("secret"))
		env.createUnlocked("/docs/open.txt", types.PlainType, []byte("open"))
	})

	It("list should drop items whose original path is filtered", func() {
		cfg := offlineRepositoryConfig("wrapped")
		cfg.Params[ParamWrapper] = []string{"extension:plain=.html"}
		cfg.Filter = &config.Filter{Type: FilterTypeExclude, Rules: []string{"/docs/secret\\.txt"}}
		sess := env.login(env.newRepository(cfg), "alice")

		items, err := sess.List(ctx, "/docs")
		Expect(err).Should(BeNil())
		Expect(itemNames(items)).Should(ConsistOf("open.txt.html"))

		item, err := sess.GetItem(ctx, "/docs/open.txt.html")
		Expect(err).Should(BeNil())
		content, err := item.Content(ctx)
		Expect(err).Should(BeNil())
		Expect(string(content)).Should(Equal("open"))
		Expect(item.MimeType(ctx)).Should(HavePrefix("text/html"))
	})
	It("list should drop items whose own path is filtered", func() {
		cfg := offlineRepositoryConfig("wrapped")
		cfg.Params[ParamWrapper] = []string{"extension:plain=.html"}
		cfg.Filter = &config.Filter{Type: FilterTypeExclude, Rules: []string{".*\\.html"}}
		sess := env.login(env.newRepository(cfg), "alice")

		items, err := sess.List(ctx, "/docs")
		Expect(err).Should(BeNil())
		Expect(items).Should(BeEmpty())
		Expect(sess.Exists(ctx, "/docs/open.txt")).Should(BeTrue())
	})
	It("system folder wrapper should add /system/ to the site root", func() {
		cfg := offlineRepositoryConfig("wrapped")
		cfg.Params[ParamWrapper] = []string{WrapperSystemFolder}
		sess := env.login(env.newRepository(cfg), "alice")

		items, err := sess.List(ctx, "/")
		Expect(err).Should(BeNil())
		Expect(itemNames(items)).Should(ConsistOf("docs", "system"))
	})
	It("one broken wrapper should disable every wrapper", func() {
		cfg := offlineRepositoryConfig("wrapped")
		cfg.Params[ParamWrapper] = []string{WrapperSystemFolder, "no-such-wrapper"}
		sess := env.login(env.newRepository(cfg), "alice")

		items, err := sess.List(ctx, "/")
		Expect(err).Should(BeNil())
		Expect(itemNames(items)).Should(ConsistOf("docs"))
	})
	It("text files should get a byte order mark when enabled", func() {
		cfg := offlineRepositoryConfig("bom")
		cfg.Params[ParamAddBOM] = []string{"true"}
		sess := env.login(env.newRepository(cfg), "alice")

		item, err := sess.GetItem(ctx, "/docs/open.txt")
		Expect(err).Should(BeNil())
		Expect(item.ContentLength()).Should(Equal(int64(7)))
		content, err := item.Content(ctx)
		Expect(err).Should(BeNil())
		Expect(content).Should(Equal(append([]byte{0xEF, 0xBB, 0xBF}, "open"...)))

		Expect(sess.Save(ctx, "/docs/open.txt", content, true)).Should(BeNil())
		raw, err := env.engine.Privileged(ctx)
		Expect(err).Should(BeNil())
		f, err := raw.ReadFile(ctx, "/sites/default/docs/open.txt")
		Expect(err).Should(BeNil())
		Expect(string(f.Content)).Should(Equal("open"))
	})
	It("translation should rewrite incoming paths", func() {
		cfg := offlineRepositoryConfig("translated")
		cfg.Translation = &config.Translation{Enable: true, Rules: []string{"s#[\\s]+#_#g"}}
		sess := env.login(env.newRepository(cfg), "alice")

		Expect(sess.Save(ctx, "/docs/my file.txt", []byte("x"), false)).Should(BeNil())
		Expect(sess.Accessor().Exists(ctx, "/docs/my_file.txt")).Should(BeTrue())
		Expect(sess.Exists(ctx, "/docs/my file.txt")).Should(BeTrue())
	})
})
