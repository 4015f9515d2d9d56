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
	"sync"
	"time"

	"golang.org/x/net/webdav"

	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
)

// mirroredLock is a repository lock taken for a webdav token. The owner
// session releases it, whichever request notices the token is gone.
type mirroredLock struct {
	root    string
	owner   repository.Session
	expires time.Time
}

func (m mirroredLock) expiredAt(now time.Time) bool {
	return !m.expires.IsZero() && !now.Before(m.expires)
}

// lockBook keeps the webdav lock tokens of one repository across requests.
type lockBook struct {
	webdav.LockSystem

	mux   sync.Mutex
	roots map[string]mirroredLock
}

func newLockBook() *lockBook {
	return &lockBook{LockSystem: webdav.NewMemLS(), roots: map[string]mirroredLock{}}
}

func (b *lockBook) remember(token string, lock mirroredLock) {
	b.mux.Lock()
	b.roots[token] = lock
	b.mux.Unlock()
}

func (b *lockBook) forget(token string) (mirroredLock, bool) {
	b.mux.Lock()
	defer b.mux.Unlock()
	lock, ok := b.roots[token]
	delete(b.roots, token)
	return lock, ok
}

func (b *lockBook) extend(token string, expires time.Time) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if lock, ok := b.roots[token]; ok {
		lock.expires = expires
		b.roots[token] = lock
	}
}

// sweep releases the repository locks whose tokens timed out. memLS drops
// those tokens on its own without telling anyone.
func (b *lockBook) sweep(ctx context.Context, now time.Time) {
	b.mux.Lock()
	var expired []mirroredLock
	for token, lock := range b.roots {
		if lock.expiredAt(now) {
			expired = append(expired, lock)
			delete(b.roots, token)
		}
	}
	b.mux.Unlock()

	for _, lock := range expired {
		log.Infow("release expired lock", "path", lock.root)
		lock.owner.Unlock(ctx, lock.root)
	}
}

func (b *lockBook) size() int {
	b.mux.Lock()
	defer b.mux.Unlock()
	return len(b.roots)
}

// LockSystem binds the token book to the session of one request. With
// mirror set, locks on existing resources are taken in the repository too.
// The handler creates short lived locks for every write request, those stay
// in the book only.
type LockSystem struct {
	*lockBook
	ctx     context.Context
	session repository.Session
	mirror  bool
}

var _ webdav.LockSystem = &LockSystem{}

func (l *LockSystem) Confirm(now time.Time, name0, name1 string, conditions ...webdav.Condition) (func(), error) {
	l.sweep(l.ctx, now)
	return l.lockBook.Confirm(now, name0, name1, conditions...)
}

// Create reserves the token first, the repository lock is taken only once
// the token exists and the token is dropped again if that fails.
func (l *LockSystem) Create(now time.Time, details webdav.LockDetails) (string, error) {
	l.sweep(l.ctx, now)

	name := slashClean(details.Root)
	mirrored := l.mirror && l.session.Exists(l.ctx, name)

	token, err := l.lockBook.Create(now, details)
	if err != nil {
		return "", err
	}
	if !mirrored {
		return token, nil
	}

	info := lockInfo(now, name, l.userName(), details)
	ok, err := l.session.Lock(l.ctx, name, info)
	if err == nil && !ok {
		err = webdav.ErrLocked
	}
	if err != nil {
		_ = l.lockBook.Unlock(now, token)
		if errors.Is(err, types.ErrLocked) || errors.Is(err, webdav.ErrLocked) {
			return "", webdav.ErrLocked
		}
		return "", error2FsError(err)
	}

	l.remember(token, mirroredLock{root: name, owner: l.session, expires: info.ExpiresAt})
	return token, nil
}

func (l *LockSystem) Refresh(now time.Time, token string, duration time.Duration) (webdav.LockDetails, error) {
	l.sweep(l.ctx, now)
	details, err := l.lockBook.Refresh(now, token, duration)
	if err != nil {
		return details, err
	}
	var expires time.Time
	if duration >= 0 {
		expires = now.Add(duration)
	}
	l.extend(token, expires)
	return details, nil
}

func (l *LockSystem) Unlock(now time.Time, token string) error {
	l.sweep(l.ctx, now)
	if err := l.lockBook.Unlock(now, token); err != nil {
		return err
	}
	if lock, ok := l.forget(token); ok {
		lock.owner.Unlock(l.ctx, lock.root)
	}
	return nil
}

func (l *LockSystem) userName() string {
	return l.session.Accessor().RequestContext().UserName()
}

func lockInfo(now time.Time, name, user string, details webdav.LockDetails) *repository.LockInfo {
	info := &repository.LockInfo{
		Scope:     repository.LockScopeExclusive,
		Type:      repository.LockTypeWrite,
		Owner:     details.OwnerXML,
		Username:  user,
		Path:      name,
		Depth:     repository.DepthInfinity,
		CreatedAt: now,
	}
	if details.ZeroDepth {
		info.Depth = 0
	}
	if details.Duration >= 0 {
		info.ExpiresAt = now.Add(details.Duration)
	}
	return info
}
