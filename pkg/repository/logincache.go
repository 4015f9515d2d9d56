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
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/bluele/gcache"

	"github.com/basenana/vfsrepo/pkg/vfs"
	"github.com/basenana/vfsrepo/utils"
)

const (
	DefaultLoginCacheExpire = 30 * time.Second
	loginCacheSize          = 4096
	loginSaltLength         = 32
)

// LoginCache remembers authenticated accessors for a short time so repeated
// logins skip the credential check. The salt lives only in memory, entries
// never survive a restart.
type LoginCache struct {
	salt  string
	cache gcache.Cache
}

func NewLoginCache(expire time.Duration) (*LoginCache, error) {
	salt, err := utils.RandString(loginSaltLength)
	if err != nil {
		return nil, err
	}
	return &LoginCache{
		salt:  salt,
		cache: gcache.New(loginCacheSize).LRU().Expiration(expire).Build(),
	}, nil
}

// Key hashes the credentials, the password itself is never kept.
func (c *LoginCache) Key(user, password string) string {
	h := md5.New()
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write([]byte{0})
	h.Write([]byte(c.salt))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a private copy of the cached accessor, or nil.
func (c *LoginCache) Get(key string) vfs.Accessor {
	val, err := c.cache.Get(key)
	if err != nil {
		loginCacheMissCounter.Inc()
		return nil
	}
	loginCacheHitCounter.Inc()
	return val.(vfs.Accessor).Clone()
}

func (c *LoginCache) Put(key string, acc vfs.Accessor) {
	if err := c.cache.Set(key, acc.Clone()); err != nil {
		c.cache.Remove(key)
	}
}

func (c *LoginCache) Remove(key string) {
	c.cache.Remove(key)
}

func (c *LoginCache) Purge() {
	c.cache.Purge()
}

func (c *LoginCache) Len() int {
	return c.cache.Len(true)
}
