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
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
)

// countingSystem counts the credential checks of the accessors it hands out.
type countingSystem struct {
	vfs.System
	logins *int32
}

func (c *countingSystem) Guest(ctx context.Context) (vfs.Accessor, error) {
	acc, err := c.System.Guest(ctx)
	if err != nil {
		return nil, err
	}
	return &countingAccessor{Accessor: acc, logins: c.logins}, nil
}

type countingAccessor struct {
	vfs.Accessor
	logins *int32
}

func (c *countingAccessor) LoginUser(ctx context.Context, username, password string) error {
	atomic.AddInt32(c.logins, 1)
	return c.Accessor.LoginUser(ctx, username, password)
}

func (c *countingAccessor) Clone() vfs.Accessor {
	return &countingAccessor{Accessor: c.Accessor.Clone(), logins: c.logins}
}

var _ = Describe("TestLoginCache", func() {
	It("key should depend on credentials and salt", func() {
		c1, err := NewLoginCache(DefaultLoginCacheExpire)
		Expect(err).Should(BeNil())
		c2, err := NewLoginCache(DefaultLoginCacheExpire)
		Expect(err).Should(BeNil())

		Expect(c1.Key("alice", "pw")).Should(Equal(c1.Key("alice", "pw")))
		Expect(c1.Key("alice", "pw")).Should(HaveLen(32))
		Expect(c1.Key("alice", "pw")).ShouldNot(Equal(c1.Key("alice", "pw2")))
		Expect(c1.Key("alice", "pw")).ShouldNot(Equal(c1.Key("alicepw", "")))
		Expect(c1.Key("alice", "pw")).ShouldNot(Equal(c2.Key("alice", "pw")))
	})
	It("entries should be copied on put and get", func() {
		env := newTestEnv()
		acc, err := env.engine.Guest(ctx)
		Expect(err).Should(BeNil())

		key := env.cache.Key("guest", "")
		Expect(env.cache.Get(key)).Should(BeNil())
		env.cache.Put(key, acc)
		acc.SetSiteRoot("/changed")

		cached := env.cache.Get(key)
		Expect(cached).ShouldNot(BeNil())
		Expect(cached.RequestContext().SiteRoot).Should(Equal(vfs.DefaultSiteRoot))
		cached.SetSiteRoot("/other")
		Expect(env.cache.Get(key).RequestContext().SiteRoot).Should(Equal(vfs.DefaultSiteRoot))
	})
	It("entries should expire", func() {
		c, err := NewLoginCache(50 * time.Millisecond)
		Expect(err).Should(BeNil())
		env := newTestEnv()
		acc, err := env.engine.Guest(ctx)
		Expect(err).Should(BeNil())

		hits, misses := testutil.ToFloat64(loginCacheHitCounter), testutil.ToFloat64(loginCacheMissCounter)
		c.Put("k", acc)
		Expect(c.Get("k")).ShouldNot(BeNil())
		Expect(testutil.ToFloat64(loginCacheHitCounter) - hits).Should(Equal(float64(1)))
		time.Sleep(100 * time.Millisecond)
		Expect(c.Get("k")).Should(BeNil())
		Expect(testutil.ToFloat64(loginCacheMissCounter) - misses).Should(Equal(float64(1)))
	})
})

var _ = Describe("TestRepositoryLogin", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
	})

	It("second login within the expiry should skip the credential check", func() {
		var logins int32
		cache, err := NewLoginCache(200 * time.Millisecond)
		Expect(err).Should(BeNil())
		repo, err := NewRepository(offlineRepositoryConfig("cms"), &countingSystem{System: env.engine, logins: &logins}, cache)
		Expect(err).Should(BeNil())
		Expect(repo.InitConfiguration()).Should(BeNil())

		_, err = repo.Login(ctx, "alice", "alice-pw")
		Expect(err).Should(BeNil())
		_, err = repo.Login(ctx, "alice", "alice-pw")
		Expect(err).Should(BeNil())
		Expect(atomic.LoadInt32(&logins)).Should(Equal(int32(1)))

		time.Sleep(300 * time.Millisecond)
		_, err = repo.Login(ctx, "alice", "alice-pw")
		Expect(err).Should(BeNil())
		Expect(atomic.LoadInt32(&logins)).Should(Equal(int32(2)))
	})
	It("sessions from cached logins should not share state", func() {
		repo := env.newRepository(offlineRepositoryConfig("cms"))
		s1 := env.login(repo, "alice")
		s2 := env.login(repo, "alice")
		s1.Accessor().SetSiteRoot("/")
		Expect(s2.Accessor().RequestContext().SiteRoot).Should(Equal(vfs.DefaultSiteRoot))
	})
	It("wrong password should fail and not be cached", func() {
		repo := env.newRepository(offlineRepositoryConfig("cms"))
		_, err := repo.Login(ctx, "alice", "bad")
		Expect(err).Should(Equal(types.ErrLoginFailed))
		Expect(env.cache.Len()).Should(Equal(0))
	})
	It("project and site should come from the parameters", func() {
		cfg := offlineRepositoryConfig("cms")
		cfg.Params[ParamRoot] = []string{"/sites"}
		sess := env.login(env.newRepository(cfg), "alice")
		reqCtx := sess.Accessor().RequestContext()
		Expect(reqCtx.ProjectName()).Should(Equal(types.OfflineProject))
		Expect(reqCtx.SiteRoot).Should(Equal("/sites"))
	})
	It("project and site should default to the user settings", func() {
		repo := env.newRepository(config.Repository{Name: "cms"})
		sess, err := repo.Login(ctx, "alice", "alice-pw")
		Expect(err).Should(BeNil())
		reqCtx := sess.Accessor().RequestContext()
		Expect(reqCtx.ProjectName()).Should(Equal(types.OfflineProject))
		Expect(reqCtx.SiteRoot).Should(Equal(vfs.DefaultSiteRoot))
	})
	It("missing role should refuse the login", func() {
		cfg := offlineRepositoryConfig("cms")
		cfg.Params[ParamRole] = []string{types.RoleDeveloper}
		repo := env.newRepository(cfg)
		_, err := repo.Login(ctx, "alice", "alice-pw")
		Expect(errors.Is(err, types.ErrNoPerm)).Should(BeTrue())
		Expect(env.cache.Len()).Should(Equal(0))

		_, err = repo.Login(ctx, types.AdminUser, "admin-pw")
		Expect(err).Should(BeNil())
	})
	It("role any should accept every user", func() {
		_, err := env.engine.AddUser(ctx, "carol", "carol-pw", nil)
		Expect(err).Should(BeNil())
		cfg := offlineRepositoryConfig("cms")
		repo := env.newRepository(cfg)
		_, err = repo.Login(ctx, "carol", "carol-pw")
		Expect(errors.Is(err, types.ErrNoPerm)).Should(BeTrue())

		cfg = offlineRepositoryConfig("open")
		cfg.Params[ParamRole] = []string{RoleAny}
		repo = env.newRepository(cfg)
		_, err = repo.Login(ctx, "carol", "carol-pw")
		Expect(err).Should(BeNil())
	})
})

var _ = Describe("TestRepositoryConfiguration", func() {
	It("params should be decoded over the defaults", func() {
		params, unused, err := DecodeParams(map[string][]string{
			ParamWrapper: {WrapperSystemFolder, "extension:jsp=.jsp"},
			ParamProject: {"Offline", "ignored"},
			"unknown":    {"x"},
		})
		Expect(err).Should(BeNil())
		Expect(params.Wrappers).Should(Equal([]string{WrapperSystemFolder, "extension:jsp=.jsp"}))
		Expect(params.Project).Should(Equal("Offline"))
		Expect(params.Role).Should(Equal(types.RoleWorkplaceUser))
		Expect(params.AddBOM).Should(BeTrue())
		Expect(unused).Should(ConsistOf("unknown"))
	})
	It("malformed boolean should fail", func() {
		_, _, err := DecodeParams(map[string][]string{ParamAddBOM: {"maybe"}})
		Expect(errors.Is(err, types.ErrConfig)).Should(BeTrue())
	})
	It("unknown repository type should fail", func() {
		_, err := NewRepository(config.Repository{Name: "x", Type: "jcr"}, nil, nil)
		Expect(errors.Is(err, types.ErrConfig)).Should(BeTrue())
	})
	It("bad filter type should fail", func() {
		repo, err := NewRepository(config.Repository{Name: "x", Filter: &config.Filter{Type: "both"}}, nil, nil)
		Expect(err).Should(BeNil())
		Expect(errors.Is(repo.InitConfiguration(), types.ErrConfig)).Should(BeTrue())
	})
	It("unknown wrapper should fail to build", func() {
		_, err := NewWrapper("nope:cfg")
		Expect(errors.Is(err, types.ErrConfig)).Should(BeTrue())
		_, err = NewWrapper("extension:broken")
		Expect(errors.Is(err, types.ErrConfig)).Should(BeTrue())
		w, err := NewWrapper("extension:jsp=.jsp,xmlcontent=.xml")
		Expect(err).Should(BeNil())
		Expect(w).ShouldNot(BeNil())
	})
})
