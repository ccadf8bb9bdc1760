package protocol

import "time"

// protocol 包定义了 relay 的线上协议：所有消息都包裹在统一的 Event 信封中，
// data 字段为按事件类型序列化后的嵌套 JSON 字符串。
//
// 约定：
//   - 信封和载荷都是 UTF-8 JSON，通过 WebSocket 文本帧传输；
//   - 信封解析失败时不断开连接，由上层降级为一条空事件（kind 为 ""）；
//   - ts 为毫秒级 Unix 时间戳，由服务端在发出事件时填充。

// 事件类型常量。
const (
	KindLogin      = "login"
	KindChange     = "change"
	KindSetValue   = "set_value"
	KindGetValue   = "get_value"
	KindSendValue  = "send_value"
	KindAddUser    = "add_user"
	KindRemoveUser = "remove_user"
	KindError      = "error"
)

// MaxFieldLen 为 username / session_id 允许的最大字节长度。
const MaxFieldLen = 24

// Event 是所有线上消息共用的信封结构。
//
// 字段说明：
//   - Username：事件归属的用户名（发起方或被描述方，取决于事件类型）；
//   - Kind    ：事件类型，取值见 Kind* 常量；
//   - Data    ：嵌套编码后的载荷 JSON 字符串，空事件为 ""；
//   - Ts      ：毫秒级时间戳。
type Event struct {
	Username string `json:"username"`
	Kind     string `json:"event"`
	Data     string `json:"data"`
	Ts       int64  `json:"ts"`
}

// LoginCommand 为 login 命令载荷，也复用为 add_user/remove_user 事件的载荷
// （与参考客户端的线上格式保持一致）。
type LoginCommand struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
}

// Position 表示文档中的一个坐标。
type Position struct {
	Row    uint64 `json:"row"`
	Column uint64 `json:"column"`
}

// ChangeCommand 为 change 命令载荷：一条按范围寻址的编辑操作。
//
// 服务端不理解其语义，仅原样转发；ID 为客户端自定的操作标识，可缺省。
type ChangeCommand struct {
	ID     *uint64  `json:"id"`
	Action string   `json:"action"`
	Start  Position `json:"start"`
	End    Position `json:"end"`
	Lines  []string `json:"lines"`
}

// ValueCommand 为 set_value 命令载荷：把 Text 定向投递给用户名为 Target 的成员。
type ValueCommand struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

// ErrorCommand 为 error 事件载荷。
type ErrorCommand struct {
	Msg string `json:"msg"`
}

// NowMillis 返回当前时刻的毫秒级 Unix 时间戳。
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
