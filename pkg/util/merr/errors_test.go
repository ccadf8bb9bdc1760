// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrSessionNotFound("s1")
	errors.Wrap(err, "failed to broadcast")
	s.ErrorIs(err, ErrSessionNotFound)
	s.Equal(Code(ErrSessionNotFound), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newRelayError("new error", ErrSessionNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrSessionNotFound))
}

func (s *ErrSuite) TestWrap() {
	// Login 相关错误。
	s.ErrorIs(WrapErrLoginInvalid("", "s1"), ErrLoginInvalid)
	s.ErrorIs(WrapErrLoginInvalid("user", "s1", "login failed"), ErrLoginInvalid)
	s.ErrorIs(WrapErrAlreadyLogged("s1"), ErrAlreadyLogged)

	// 协议相关错误。
	s.ErrorIs(WrapErrDecodeFailed("change", errors.New("bad json")), ErrDecodeFailed)
	s.ErrorIs(WrapErrEncodeFailed("change", errors.New("bad value")), ErrEncodeFailed)

	// 注册表相关错误。
	s.ErrorIs(WrapErrSessionNotFound("s1"), ErrSessionNotFound)
	s.ErrorIs(WrapErrPeerNotFound("conn-1"), ErrPeerNotFound)
	s.ErrorIs(WrapErrPeerDuplicate("conn-1"), ErrPeerDuplicate)

	// 传输相关错误。
	s.ErrorIs(WrapErrMailboxClosed("conn-1"), ErrMailboxClosed)
	s.ErrorIs(WrapErrHandshakeFailed("127.0.0.1:1234", errors.New("bad upgrade")), ErrHandshakeFailed)
}

func (s *ErrSuite) TestIsInputErr() {
	s.True(IsInputErr(WrapErrLoginInvalid("", "")))
	s.True(IsInputErr(WrapErrDecodeFailed("change", errors.New("bad json"))))
	s.False(IsInputErr(WrapErrMailboxClosed("conn-1")))
	s.False(IsInputErr(errors.New("random")))
}

func (s *ErrSuite) TestIsRetryable() {
	s.True(IsRetryableErr(ErrHandshakeFailed))
	s.False(IsRetryableErr(ErrLoginInvalid))
	s.False(IsRetryableErr(errors.New("not a relay error")))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.Equal("first: second", err.Error())

	err = Combine(errFirst, errSecond, errThird)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.True(errors.Is(err, errThird))

	err = Combine(nil, errFirst)
	s.True(errors.Is(err, errFirst))

	err = Combine(errFirst, nil)
	s.True(errors.Is(err, errFirst))

	s.NoError(Combine(nil, nil))
}

func (s *ErrSuite) TestIsCanceledOrTimeout() {
	s.True(IsCanceledOrTimeout(context.Canceled))
	s.True(IsCanceledOrTimeout(context.DeadlineExceeded))
	s.False(IsCanceledOrTimeout(ErrSessionNotFound))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
