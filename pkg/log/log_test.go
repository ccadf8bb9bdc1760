// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RateLimiterSuite struct {
	suite.Suite
}

func (s *RateLimiterSuite) TearDownTest() {
	s.T().Setenv("INTERVIEWER_LOG_RATE_ENABLE", "0")
	configureRateLimiterFromEnv()
}

func (s *RateLimiterSuite) TestDisabledFallsBackToNop() {
	s.T().Setenv("INTERVIEWER_LOG_RATE_ENABLE", "0")
	configureRateLimiterFromEnv()

	_, ok := R().(nopRateLimiter)
	s.True(ok)
	s.True(R().CheckCredit(1))
}

func (s *RateLimiterSuite) TestEnableSwapsLimiterWithoutPanic() {
	s.T().Setenv("INTERVIEWER_LOG_RATE_ENABLE", "1")
	s.T().Setenv("INTERVIEWER_LOG_RATE_CREDIT_PER_SECOND", "100")
	s.T().Setenv("INTERVIEWER_LOG_RATE_MAX_BALANCE", "100")

	// _globalR 已在 init 中存入 nop 实现，启用后换成信用限流器；
	// 两者必须以同一具体类型写入，否则 atomic.Value 会 panic。
	s.NotPanics(configureRateLimiterFromEnv)

	_, isNop := R().(nopRateLimiter)
	s.False(isNop)
	s.True(R().CheckCredit(1))
}

func (s *RateLimiterSuite) TestToggleRepeatedly() {
	for i := 0; i < 3; i++ {
		s.T().Setenv("INTERVIEWER_LOG_RATE_ENABLE", "1")
		s.NotPanics(configureRateLimiterFromEnv)
		s.T().Setenv("INTERVIEWER_LOG_RATE_ENABLE", "0")
		s.NotPanics(configureRateLimiterFromEnv)
	}
	_, ok := R().(nopRateLimiter)
	s.True(ok)
}

func TestRateLimiter(t *testing.T) {
	suite.Run(t, new(RateLimiterSuite))
}
