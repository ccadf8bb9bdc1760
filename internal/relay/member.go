package relay

// ConnID 是一条连接在进程内的全局唯一标识。
//
// 约定：
//   - 由接入层在连接建立时分配（当前实现为 UUID 字符串）；
//   - 在连接的整个生命周期内保持稳定，作为两张注册表的键。
type ConnID string

// Member 表示会话中的一个成员：用户名与其连接标识的二元组。
// 在登录成功时创建，之后不可变。
type Member struct {
	Username string `json:"username"`
	Conn     ConnID `json:"conn"`
}

// Identity 为一条连接登录成功后的身份信息。
//
// 约定：
//   - 由一次成功的 login 构造，且只构造一次，之后不再修改；
//   - 后续该连接发起的所有操作都通过显式传入 Identity 来确定其会话范围，
//     避免读到更新到一半的共享字段。
type Identity struct {
	SessionID string
	Username  string
}
