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
	"bytes"
	"context"
	"io"
	"path"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
)

func readAll(s Storage, key int64) []byte {
	r, err := s.Get(context.TODO(), key)
	Expect(err).Should(BeNil())
	defer r.Close()
	data, err := io.ReadAll(r)
	Expect(err).Should(BeNil())
	return data
}

func storageCases(build func() Storage) {
	var (
		s   Storage
		key int64
	)

	BeforeEach(func() {
		s = build()
		key = utils.GenerateNewID()
	})

	It("should put and get content", func() {
		data := []byte("<html><body>hello</body></html>")
		Expect(s.Put(context.TODO(), key, bytes.NewReader(data))).Should(BeNil())
		Expect(readAll(s, key)).Should(Equal(data))
	})

	It("should replace content", func() {
		Expect(s.Put(context.TODO(), key, bytes.NewReader([]byte("first version of the file")))).Should(BeNil())
		Expect(s.Put(context.TODO(), key, bytes.NewReader([]byte("v2")))).Should(BeNil())
		Expect(readAll(s, key)).Should(Equal([]byte("v2")))
	})

	It("should report missing content", func() {
		_, err := s.Head(context.TODO(), key)
		Expect(err).Should(Equal(types.ErrNotFound))
		_, err = s.Get(context.TODO(), key)
		Expect(err).Should(Equal(types.ErrNotFound))
	})

	It("should delete content", func() {
		Expect(s.Put(context.TODO(), key, bytes.NewReader([]byte("bye")))).Should(BeNil())
		_, err := s.Head(context.TODO(), key)
		Expect(err).Should(BeNil())
		Expect(s.Delete(context.TODO(), key)).Should(BeNil())
		_, err = s.Head(context.TODO(), key)
		Expect(err).Should(Equal(types.ErrNotFound))
		Expect(s.Delete(context.TODO(), key)).Should(BeNil())
	})
}

var _ = Describe("TestMemoryStorage", func() {
	storageCases(func() Storage {
		s, err := NewStorage("memory-test", MemoryStorage, config.Storage{ID: "memory-test", Type: MemoryStorage})
		Expect(err).Should(BeNil())
		return s
	})
})

var _ = Describe("TestLocalStorage", func() {
	storageCases(func() Storage {
		s, err := NewStorage("local-test", LocalStorage, config.Storage{ID: "local-test", Type: LocalStorage, LocalDir: path.Join(workdir, "local")})
		Expect(err).Should(BeNil())
		return s
	})
})

var _ = Describe("TestCompressedLocalStorage", func() {
	storageCases(func() Storage {
		s, err := NewStorage("local-lz4", LocalStorage, config.Storage{ID: "local-lz4", Type: LocalStorage, Compress: true, LocalDir: path.Join(workdir, "local-lz4")})
		Expect(err).Should(BeNil())
		return s
	})

	It("should store compressed frames", func() {
		dir := path.Join(workdir, "local-raw")
		raw, err := newLocalStorage("local-raw", dir)
		Expect(err).Should(BeNil())
		s := &compressedStorage{Storage: raw}

		data := bytes.Repeat([]byte("vfsrepo "), 4096)
		key := utils.GenerateNewID()
		Expect(s.Put(context.TODO(), key, bytes.NewReader(data))).Should(BeNil())

		info, err := raw.Head(context.TODO(), key)
		Expect(err).Should(BeNil())
		Expect(info.Size).Should(BeNumerically("<", len(data)))
		Expect(readAll(s, key)).Should(Equal(data))
	})
})
