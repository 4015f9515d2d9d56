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
	"errors"
	"fmt"
	"io/fs"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/basenana/vfsrepo/pkg/types"
)

var _ = Describe("Utils", func() {
	Describe("error2FsError", func() {
		It("should map repository errors", func() {
			Expect(error2FsError(nil)).Should(BeNil())
			Expect(error2FsError(types.ErrNotFound)).To(Equal(fs.ErrNotExist))
			Expect(error2FsError(types.ErrFiltered)).To(Equal(fs.ErrNotExist))
			Expect(error2FsError(fmt.Errorf("wrapped: %w", types.ErrIsExist))).To(Equal(fs.ErrExist))
			Expect(error2FsError(types.ErrLocked)).To(Equal(fs.ErrPermission))
			Expect(error2FsError(types.ErrNoPerm)).To(Equal(fs.ErrPermission))
			Expect(error2FsError(types.ErrNameTooLong)).To(Equal(fs.ErrInvalid))
		})

		It("should keep unknown errors", func() {
			err := errors.New("boom")
			Expect(error2FsError(err)).To(Equal(err))
		})
	})

	Describe("slashClean", func() {
		It("should clean paths", func() {
			Expect(slashClean("")).To(Equal("/"))
			Expect(slashClean("docs/")).To(Equal("/docs"))
			Expect(slashClean("/docs/../a.txt")).To(Equal("/a.txt"))
		})
	})
})
