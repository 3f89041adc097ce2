// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package duplex

// State is the loop's own bookkeeping. Times are milliseconds.
type State struct {
	LastSendTime int64
	Interval     int64
	MsgCount     uint64
}

// NextInterval derives the send period from the send time:
// base + (lastSendTime mod rng), always in [base, base+rng).
// The offset depends only on the send time.
func NextInterval(lastSendTime, base, rng int64) int64 {
	offset := lastSendTime % rng
	if offset < 0 {
		offset += rng
	}
	return base + offset
}
