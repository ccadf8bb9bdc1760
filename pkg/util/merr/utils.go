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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case relayError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := err.(relayError); ok {
		return err.retriable
	}

	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// IsInputErr 判断错误是否由对端输入引起。
// 输入类错误只回发给出错的连接，永远不会升级为进程级故障。
func IsInputErr(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(relayError); ok {
		return cause.errType == InputError
	}
	return false
}

// Login related

func WrapErrLoginInvalid(username, sessionID string, msg ...string) error {
	err := wrapFields(ErrLoginInvalid,
		value("username_len", len(username)),
		value("session_id_len", len(sessionID)),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrAlreadyLogged(sessionID string, msg ...string) error {
	err := wrapFields(ErrAlreadyLogged,
		value("session", sessionID),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Protocol related

func WrapErrDecodeFailed(kind string, cause error, msg ...string) error {
	err := wrapFieldsWithDesc(ErrDecodeFailed, cause.Error(),
		value("event", kind),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrEncodeFailed(kind string, cause error, msg ...string) error {
	err := wrapFieldsWithDesc(ErrEncodeFailed, cause.Error(),
		value("event", kind),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Registry related

func WrapErrSessionNotFound(sessionID string, msg ...string) error {
	err := wrapFields(ErrSessionNotFound,
		value("session", sessionID),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrPeerNotFound(conn any, msg ...string) error {
	err := wrapFields(ErrPeerNotFound,
		value("conn", conn),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrPeerDuplicate(conn any, msg ...string) error {
	err := wrapFields(ErrPeerDuplicate,
		value("conn", conn),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Transport related

func WrapErrMailboxClosed(conn any, msg ...string) error {
	err := wrapFields(ErrMailboxClosed,
		value("conn", conn),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrHandshakeFailed(remote string, cause error, msg ...string) error {
	err := wrapFieldsWithDesc(ErrHandshakeFailed, cause.Error(),
		value("remote", remote),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err relayError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err relayError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
