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

package v1

type TransferRequest struct {
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Overwrite   bool   `json:"overwrite"`
}

// LockRequest asks for an exclusive write lock. Repository locks are held
// until unlocked, only a zero Timeout is accepted.
type LockRequest struct {
	Owner   string `json:"owner"`
	Timeout int64  `json:"timeout" binding:"gte=0"`
}
