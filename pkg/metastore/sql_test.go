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

package metastore

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
)

func newTestResource(rootPath, resType string) *types.Resource {
	now := time.Now()
	id := utils.GenerateNewID()
	return &types.Resource{
		StructureID: id,
		ResourceID:  id,
		RootPath:    rootPath,
		Name:        utils.BaseName(rootPath),
		Type:        resType,
		IsFolder:    utils.IsFolderPath(rootPath),
		CreatedBy:   "Admin",
		ModifiedBy:  "Admin",
		CreatedAt:   now,
		ModifiedAt:  now,
	}
}

var _ = Describe("TestSqliteResourceOperation", func() {
	var meta Meta

	BeforeEach(func() {
		meta = buildNewSqliteMetaStore(fmt.Sprintf("test_resource_%d.db", utils.GenerateNewID()))
		Expect(meta.CreateResource(ctx, newTestResource("/", types.FolderType))).Should(BeNil())
		Expect(meta.CreateResource(ctx, newTestResource("/a/", types.FolderType))).Should(BeNil())
		Expect(meta.CreateResource(ctx, newTestResource("/a/f.txt", types.PlainType))).Should(BeNil())
		Expect(meta.CreateResource(ctx, newTestResource("/a/b/", types.FolderType))).Should(BeNil())
		Expect(meta.CreateResource(ctx, newTestResource("/a/b/g.txt", types.PlainType))).Should(BeNil())
		Expect(meta.CreateResource(ctx, newTestResource("/ab.txt", types.PlainType))).Should(BeNil())
	})

	Context("create a resource on an existing path", func() {
		It("should be rejected", func() {
			err := meta.CreateResource(ctx, newTestResource("/a/f.txt", types.PlainType))
			Expect(err).Should(Equal(types.ErrIsExist))
		})
	})

	Context("list children of a folder", func() {
		It("should return direct children only", func() {
			children, err := meta.ListChildren(ctx, "/a/")
			Expect(err).Should(BeNil())
			var paths []string
			for _, c := range children {
				paths = append(paths, c.RootPath)
			}
			Expect(paths).Should(ConsistOf("/a/b/", "/a/f.txt"))
		})
	})

	Context("move a folder", func() {
		It("should rename every descendant", func() {
			Expect(meta.SaveLock(ctx, &types.Lock{RootPath: "/a/b/g.txt", Type: types.LockExclusive, UserName: "Admin", Project: "Offline"})).Should(BeNil())
			Expect(meta.MoveTree(ctx, "/a/", "/c/")).Should(BeNil())

			_, err := meta.GetResource(ctx, "/a/f.txt")
			Expect(err).Should(Equal(types.ErrNotFound))

			moved, err := meta.GetResource(ctx, "/c/b/g.txt")
			Expect(err).Should(BeNil())
			Expect(moved.Name).Should(Equal("g.txt"))

			folder, err := meta.GetResource(ctx, "/c/")
			Expect(err).Should(BeNil())
			Expect(folder.Name).Should(Equal("c"))

			children, err := meta.ListChildren(ctx, "/c/b/")
			Expect(err).Should(BeNil())
			Expect(children).Should(HaveLen(1))

			locks, err := meta.FindLocks(ctx, []string{"/a/b/g.txt", "/c/b/g.txt"})
			Expect(err).Should(BeNil())
			Expect(locks).Should(HaveLen(1))
			Expect(locks[0].RootPath).Should(Equal("/c/b/g.txt"))

			_, err = meta.GetResource(ctx, "/ab.txt")
			Expect(err).Should(BeNil())
		})
	})

	Context("delete a folder tree", func() {
		It("should remove the folder and descendants but nothing else", func() {
			f, err := meta.GetResource(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			Expect(meta.SetProperty(ctx, f.StructureID, types.PropertyTitle, "hello")).Should(BeNil())

			deleted, err := meta.DeleteTree(ctx, "/a/")
			Expect(err).Should(BeNil())
			Expect(deleted).Should(HaveLen(4))

			props, err := meta.GetProperties(ctx, f.StructureID)
			Expect(err).Should(BeNil())
			Expect(props).Should(BeEmpty())

			_, err = meta.GetResource(ctx, "/ab.txt")
			Expect(err).Should(BeNil())
		})
	})

	Context("update content of siblings", func() {
		It("should update every sibling", func() {
			f, err := meta.GetResource(ctx, "/a/f.txt")
			Expect(err).Should(BeNil())
			sib := newTestResource("/a/sib.txt", types.PlainType)
			sib.ResourceID = f.ResourceID
			Expect(meta.CreateResource(ctx, sib)).Should(BeNil())

			Expect(meta.UpdateContent(ctx, f.ResourceID, 42, "Editor", time.Now())).Should(BeNil())
			siblings, err := meta.ListSiblings(ctx, f.ResourceID)
			Expect(err).Should(BeNil())
			Expect(siblings).Should(HaveLen(2))
			for _, s := range siblings {
				Expect(s.Length).Should(Equal(int64(42)))
				Expect(s.ModifiedBy).Should(Equal("Editor"))
			}
		})
	})
})

var _ = Describe("TestMemoryLockOperation", func() {
	var meta Meta

	BeforeEach(func() {
		meta = buildNewMemoryMetaStore()
	})

	It("should save, replace and delete locks", func() {
		lock := &types.Lock{RootPath: "/a/", Type: types.LockExclusive, UserName: "Admin", Project: "Offline", CreatedAt: time.Now()}
		Expect(meta.SaveLock(ctx, lock)).Should(BeNil())
		lock.UserName = "Editor"
		Expect(meta.SaveLock(ctx, lock)).Should(BeNil())
		Expect(meta.SaveLock(ctx, &types.Lock{RootPath: "/a/f.txt", Type: types.LockExclusive, UserName: "Admin"})).Should(BeNil())

		locks, err := meta.FindLocks(ctx, []string{"/", "/a/"})
		Expect(err).Should(BeNil())
		Expect(locks).Should(HaveLen(1))
		Expect(locks[0].UserName).Should(Equal("Editor"))

		under, err := meta.ListLocksUnder(ctx, "/a/")
		Expect(err).Should(BeNil())
		Expect(under).Should(HaveLen(1))
		Expect(under[0].RootPath).Should(Equal("/a/f.txt"))

		Expect(meta.DeleteLocksUnder(ctx, "/a/")).Should(BeNil())
		locks, err = meta.FindLocks(ctx, []string{"/a/", "/a/f.txt"})
		Expect(err).Should(BeNil())
		Expect(locks).Should(HaveLen(1))

		Expect(meta.DeleteLock(ctx, "/a/")).Should(BeNil())
		locks, err = meta.FindLocks(ctx, []string{"/a/"})
		Expect(err).Should(BeNil())
		Expect(locks).Should(BeEmpty())
	})

	It("should keep users and projects", func() {
		Expect(meta.SaveUser(ctx, &types.User{Name: "Editor", Roles: []string{types.RoleWorkplaceUser}, Enabled: true})).Should(BeNil())
		u, err := meta.GetUser(ctx, "Editor")
		Expect(err).Should(BeNil())
		Expect(u.Roles).Should(Equal([]string{types.RoleWorkplaceUser}))

		u.StartProject = types.OfflineProject
		Expect(meta.SaveUser(ctx, u)).Should(BeNil())
		users, err := meta.ListUsers(ctx)
		Expect(err).Should(BeNil())
		Expect(users).Should(HaveLen(1))
		Expect(users[0].StartProject).Should(Equal(types.OfflineProject))

		Expect(meta.SaveProject(ctx, &types.Project{Name: types.OnlineProject, Online: true})).Should(BeNil())
		p, err := meta.GetProject(ctx, types.OnlineProject)
		Expect(err).Should(BeNil())
		Expect(p.Online).Should(BeTrue())

		_, err = meta.GetProject(ctx, "missing")
		Expect(err).Should(Equal(types.ErrNotFound))
	})
})
