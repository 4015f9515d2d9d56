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
	"context"
	"io"

	"github.com/pierrec/lz4/v4"
)

// compressedStorage stores content as lz4 frames.
type compressedStorage struct {
	Storage
}

func (c *compressedStorage) Get(ctx context.Context, key int64) (io.ReadCloser, error) {
	r, err := c.Storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &lz4ReadCloser{Reader: lz4.NewReader(r), raw: r}, nil
}

func (c *compressedStorage) Put(ctx context.Context, key int64, dataReader io.Reader) error {
	pr, pw := io.Pipe()
	go func() {
		zw := lz4.NewWriter(pw)
		_, err := io.Copy(zw, dataReader)
		if err == nil {
			err = zw.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	err := c.Storage.Put(ctx, key, pr)
	_ = pr.CloseWithError(err)
	return err
}

type lz4ReadCloser struct {
	*lz4.Reader
	raw io.ReadCloser
}

func (l *lz4ReadCloser) Close() error {
	return l.raw.Close()
}
