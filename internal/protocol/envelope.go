package protocol

import (
	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

// defaultSerializer 为信封和载荷编解码使用的序列化实现。
var defaultSerializer Serializer = JSONSerializer{}

// Encode 将载荷包入 Event 信封并编码为一帧待发送的字节序列。
//
// 参数：
//   - username：信封的归属用户名；
//   - kind    ：事件类型；
//   - payload ：载荷对象；为 nil 时 data 字段为空字符串（例如 send_value）。
//
// 说明：
//   - 时间戳在编码时刻填充；
//   - 广播场景下应只调用一次 Encode，把同一份字节投递给全部接收方。
func Encode(username, kind string, payload any) ([]byte, error) {
	data := ""
	if payload != nil {
		b, err := defaultSerializer.Marshal(payload)
		if err != nil {
			return nil, merr.WrapErrEncodeFailed(kind, err)
		}
		data = string(b)
	}

	raw, err := defaultSerializer.Marshal(Event{
		Username: username,
		Kind:     kind,
		Data:     data,
		Ts:       NowMillis(),
	})
	if err != nil {
		return nil, merr.WrapErrEncodeFailed(kind, err)
	}
	return raw, nil
}

// Decode 将一帧原始字节解码为 Event 信封。
//
// 信封解析失败不视为致命错误：返回一条空事件（Kind 为 ""），由上层忽略。
// 这是刻意的宽容策略，倾向可用性而非严格校验。
func Decode(raw []byte) Event {
	var ev Event
	if err := defaultSerializer.Unmarshal(raw, &ev); err != nil {
		return Event{}
	}
	return ev
}

// DecodePayload 将信封中的 data 字段解码到目标载荷对象。
//
// v 必须为指针。解析失败返回 ErrDecodeFailed，由上层降级为一条 error 事件，
// 而不是断开连接。
func DecodePayload(ev Event, v any) error {
	if err := defaultSerializer.Unmarshal([]byte(ev.Data), v); err != nil {
		return merr.WrapErrDecodeFailed(ev.Kind, err)
	}
	return nil
}
