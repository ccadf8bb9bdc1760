package json

import (
	"io"

	"github.com/bytedance/sonic"
)

// json 包是项目内部统一的 JSON 编解码入口，底层基于 bytedance/sonic。
//
// 约定：
//   - 业务代码不直接 import encoding/json 或 sonic，统一通过本包；
//   - 使用 ConfigStd 保持与标准库兼容的行为（键排序、HTML 转义等）。
var api = sonic.ConfigStd

// Marshal 将对象编码为 JSON 字节序列。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal 将 JSON 字节序列解码到目标对象。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// MarshalString 将对象编码为 JSON 字符串。
func MarshalString(v any) (string, error) {
	return api.MarshalToString(v)
}

// UnmarshalString 将 JSON 字符串解码到目标对象。
func UnmarshalString(data string, v any) error {
	return api.UnmarshalFromString(data, v)
}

// NewEncoder 创建一个向 w 写出的流式编码器。
func NewEncoder(w io.Writer) sonic.Encoder {
	return api.NewEncoder(w)
}

// NewDecoder 创建一个从 r 读取的流式解码器。
func NewDecoder(r io.Reader) sonic.Decoder {
	return api.NewDecoder(r)
}
