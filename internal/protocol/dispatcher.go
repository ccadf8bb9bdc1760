package protocol

import "fmt"

// Handler 是分发器暴露给业务层的通用处理函数签名。
//
// 说明：
//   - ev     ：完整的事件信封，包含发起方用户名和时间戳；
//   - payload：已经从 ev.Data 反序列化完成的载荷对象（通常为 *XXXCommand），
//     具体类型由业务侧在 Register 时通过 NewPayload 决定；
//     当路由未声明 NewPayload 时为 nil。
type Handler func(ev Event, payload any) error

// Route 描述一条路由规则：事件种类 -> 载荷类型 + 业务 Handler。
type Route struct {
	// NewPayload 用于创建一个空的载荷对象实例。
	//
	// 要求：
	//   - 必须返回指向具体载荷类型的指针（例如：func() any { return &LoginCommand{} }）；
	//   - 为 nil 时表示该事件不携带载荷，Handler 收到的 payload 为 nil。
	NewPayload func() any

	// Handler 为业务层实现的处理函数。
	Handler Handler
}

// Dispatcher 维护事件种类到路由规则的映射，并负责从事件信封到业务 Handler
// 的完整调度流程。
//
// 典型调用链（服务器侧）：
//  1. 连接的读协程从底层连接读出一帧文本，经 Decode 得到 Event；
//  2. 上层调用 Dispatcher.Dispatch(ev)；
//  3. Dispatcher 根据 ev.Kind 找到 Route：
//     - NewPayload() 创建载荷对象；
//     - 使用 DecodePayload(ev, payload) 反序列化；
//     - 调用业务 Handler(ev, payload)。
type Dispatcher struct {
	routes map[string]Route
}

// NewDispatcher 创建一个空路由表的 Dispatcher。
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		routes: make(map[string]Route),
	}
}

// Register 为事件种类 kind 注册一条路由规则。
//
// 要求：
//   - 同一事件种类不允许重复注册，重复时返回错误。
func (d *Dispatcher) Register(kind string, route Route) error {
	if kind == "" {
		return fmt.Errorf("dispatcher: kind must not be empty")
	}
	if route.Handler == nil {
		return fmt.Errorf("dispatcher: Handler is nil for kind=%q", kind)
	}
	if _, exists := d.routes[kind]; exists {
		return fmt.Errorf("dispatcher: kind=%q already registered", kind)
	}
	d.routes[kind] = route
	return nil
}

// Dispatch 处理一条已经解析出的事件。
//
// 行为：
//  1. ev.Kind 为空（信封解码失败的占位事件）或未注册时静默忽略，
//     与信封解析同样宽容；
//  2. 若路由声明了 NewPayload，则先反序列化 ev.Data 再调用 Handler，
//     载荷解码失败只返回错误，不中断连接。
func (d *Dispatcher) Dispatch(ev Event) error {
	route, ok := d.routes[ev.Kind]
	if !ok {
		return nil
	}

	var payload any
	if route.NewPayload != nil {
		payload = route.NewPayload()
		if payload == nil {
			return fmt.Errorf("dispatcher: NewPayload returned nil for kind=%q", ev.Kind)
		}
		if err := DecodePayload(ev, payload); err != nil {
			return err
		}
	}

	return route.Handler(ev, payload)
}
