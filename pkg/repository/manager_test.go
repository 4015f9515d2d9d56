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

var _ = Describe("TestManager", func() {
	var (
		env *testEnv
		mgr *Manager
	)

	BeforeEach(func() {
		env = newTestEnv()
		mgr = NewManager(env.engine, env.cache)
	})
	AfterEach(func() {
		mgr.Shutdown()
	})

	It("configured repositories should be served by name", func() {
		Expect(mgr.AddRepositoryClass(offlineRepositoryConfig("b"))).Should(BeNil())
		Expect(mgr.AddRepositoryClass(offlineRepositoryConfig("a"))).Should(BeNil())
		Expect(mgr.InitConfiguration()).Should(BeNil())
		Expect(mgr.InitializeCms(ctx)).Should(BeNil())

		repos := mgr.Repositories()
		Expect(repos).Should(HaveLen(2))
		Expect(repos[0].Name()).Should(Equal("a"))
		repo, ok := mgr.GetRepository("b")
		Expect(ok).Should(BeTrue())
		_, err := repo.Login(ctx, "alice", "alice-pw")
		Expect(err).Should(BeNil())
	})
	It("add after configuration should fail", func() {
		Expect(mgr.InitConfiguration()).Should(BeNil())
		err := mgr.AddRepositoryClass(offlineRepositoryConfig("late"))
		Expect(errors.Is(err, types.ErrConfig)).Should(BeTrue())
		_, ok := mgr.GetRepository("late")
		Expect(ok).Should(BeFalse())
	})
	It("duplicate names should fail", func() {
		Expect(mgr.AddRepositoryClass(offlineRepositoryConfig("a"))).Should(BeNil())
		Expect(mgr.AddRepositoryClass(offlineRepositoryConfig("a"))).Should(BeNil())
		Expect(errors.Is(mgr.InitConfiguration(), types.ErrConfig)).Should(BeTrue())
	})
	It("repository failing the second phase should be dropped", func() {
		broken := offlineRepositoryConfig("broken")
		broken.Params[ParamProject] = []string{"NoSuchProject"}
		missingRoot := offlineRepositoryConfig("missing-root")
		missingRoot.Params[ParamRoot] = []string{"/sites/nowhere"}
		Expect(mgr.AddRepositoryClass(broken)).Should(BeNil())
		Expect(mgr.AddRepositoryClass(missingRoot)).Should(BeNil())
		Expect(mgr.AddRepositoryClass(offlineRepositoryConfig("good"))).Should(BeNil())
		Expect(mgr.InitConfiguration()).Should(BeNil())
		Expect(mgr.InitializeCms(ctx)).Should(BeNil())

		Expect(mgr.Repositories()).Should(HaveLen(1))
		_, ok := mgr.GetRepository("broken")
		Expect(ok).Should(BeFalse())
		_, ok = mgr.GetRepository("good")
		Expect(ok).Should(BeTrue())
	})
	It("unknown repository type should be refused", func() {
		err := mgr.AddRepositoryClass(config.Repository{Name: "x", Type: "jcr"})
		Expect(errors.Is(err, types.ErrConfig)).Should(BeTrue())
	})
	It("shutdown should drop repositories and cached logins", func() {
		Expect(mgr.AddRepositoryClass(offlineRepositoryConfig("a"))).Should(BeNil())
		Expect(mgr.InitConfiguration()).Should(BeNil())
		repo, _ := mgr.GetRepository("a")
		_, err := repo.Login(ctx, "alice", "alice-pw")
		Expect(err).Should(BeNil())
		Expect(env.cache.Len()).Should(Equal(1))

		mgr.Shutdown()
		Expect(mgr.Repositories()).Should(BeEmpty())
		Expect(env.cache.Len()).Should(Equal(0))
	})
})
