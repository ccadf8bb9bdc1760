package server

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tarasyarema/interviewer/internal/protocol"
	"github.com/tarasyarema/interviewer/internal/relay"
	"github.com/tarasyarema/interviewer/pkg/log"
	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

// Conn 驱动单条 WebSocket 连接的完整生命周期。
//
// 每条连接由两个协程驱动：
//   - 读协程（Run 所在协程）循环读取文本帧、解码信封并交给 Dispatcher，
//     业务处理在读协程上串行执行，同一连接的命令天然有序；
//   - 写协程循环从 Mailbox 取出已编码的事件并写入底层连接，
//     保证对 websocket.Conn 的写操作单协程串行。
//
// 任一协程退出都会触发 shutdown，另一协程随之级联退出；
// shutdown 整条路径幂等，Disconnect 对注册表的清理只生效一次。
type Conn struct {
	log.Binder

	id relay.ConnID
	ws *websocket.Conn

	coord      *relay.Coordinator
	mailbox    *relay.Mailbox
	dispatcher *protocol.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	// identity 在登录成功后设置且不再变更；写协程和 shutdown 路径
	// 可能跨协程读取，因此用原子指针承载。
	identity atomic.Pointer[relay.Identity]

	closeOnce sync.Once
}

// newConn 创建连接驱动并注册事件路由。
//
// 此时 Mailbox 已可接收事件，但读写协程尚未启动，由调用方通过 Run 驱动。
func newConn(parent context.Context, id relay.ConnID, ws *websocket.Conn, coord *relay.Coordinator) (*Conn, error) {
	ctx, cancel := context.WithCancel(parent)

	c := &Conn{
		id:         id,
		ws:         ws,
		coord:      coord,
		mailbox:    relay.NewMailbox(),
		dispatcher: protocol.NewDispatcher(),
		ctx:        ctx,
		cancel:     cancel,
	}
	c.SetLogger(log.With(log.FieldComponent("conn"), log.FieldConn(string(id))))

	if err := c.registerRoutes(); err != nil {
		cancel()
		return nil, err
	}

	if err := coord.Attach(id, c.mailbox); err != nil {
		cancel()
		return nil, err
	}

	return c, nil
}

// registerRoutes 注册客户端可发起的三种命令。
// 其余事件类型只会由服务端发出，客户端送来时按未注册种类处理。
func (c *Conn) registerRoutes() error {
	routes := map[string]protocol.Route{
		protocol.KindLogin: {
			NewPayload: func() any { return &protocol.LoginCommand{} },
			Handler:    c.onLogin,
		},
		protocol.KindChange: {
			NewPayload: func() any { return &protocol.ChangeCommand{} },
			Handler:    c.onChange,
		},
		protocol.KindSetValue: {
			NewPayload: func() any { return &protocol.ValueCommand{} },
			Handler:    c.onSetValue,
		},
	}
	for kind, route := range routes {
		if err := c.dispatcher.Register(kind, route); err != nil {
			return err
		}
	}
	return nil
}

// onLogin 处理 login 命令。
//
// 重复登录不改变既有身份：只向该连接回发一条 error 事件。
// 校验失败和重复加入的通知由 Coordinator 负责，这里不再重复回发。
func (c *Conn) onLogin(ev protocol.Event, payload any) error {
	cmd := payload.(*protocol.LoginCommand)

	if c.identity.Load() != nil {
		c.coord.SendError(c.id, cmd.Username, merr.ErrAlreadyLogged.Error())
		c.Logger().Warn("duplicate login rejected",
			zap.String("username", cmd.Username),
			log.FieldSession(cmd.SessionID))
		return nil
	}

	id, err := c.coord.Login(c.id, *cmd)
	if err != nil && id == nil {
		return nil
	}
	c.identity.Store(id)
	return err
}

// onChange 处理 change 命令：广播给会话中的其他成员。
// 未登录的连接没有会话可言，静默忽略。
func (c *Conn) onChange(ev protocol.Event, payload any) error {
	id := c.identity.Load()
	if id == nil {
		return nil
	}
	return c.coord.BroadcastChange(c.id, id, *payload.(*protocol.ChangeCommand))
}

// onSetValue 处理 set_value 命令：把文档全文定向转发给目标成员。
func (c *Conn) onSetValue(ev protocol.Event, payload any) error {
	id := c.identity.Load()
	if id == nil {
		return nil
	}
	return c.coord.ForwardValue(c.id, id, *payload.(*protocol.ValueCommand))
}

// Run 驱动读循环直到连接终止。写循环须由调用方另行启动（WriteLoop）。
func (c *Conn) Run() {
	defer c.shutdown()

	for {
		msgType, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.Logger().Info("connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		c.handleFrame(raw)

		select {
		case <-c.ctx.Done():
			return
		default:
		}
	}
}

// handleFrame 处理一帧入站消息。
//
// 信封解码失败产出空事件，Dispatch 直接忽略；载荷解码失败等输入类错误
// 降级为回发给本连接的一条 error 事件，连接保持存活。
func (c *Conn) handleFrame(raw []byte) {
	ev := protocol.Decode(raw)

	err := c.dispatcher.Dispatch(ev)
	if err == nil {
		return
	}

	if merr.IsInputErr(err) || merr.Code(err) == merr.Code(merr.ErrDecodeFailed) {
		username := ""
		if id := c.identity.Load(); id != nil {
			username = id.Username
		}
		c.coord.SendError(c.id, username, err.Error())
		c.Logger().Debug("rejected malformed command",
			zap.String("event", ev.Kind),
			zap.Error(err))
		return
	}

	c.Logger().Warn("command handling failed",
		zap.String("event", ev.Kind),
		zap.Error(err))
}

// WriteLoop 循环把 Mailbox 中的事件刷到底层连接，直到邮箱耗尽且关闭、
// 上下文取消或写失败。
func (c *Conn) WriteLoop() {
	defer c.shutdown()

	for {
		raw, ok := c.mailbox.Next(c.ctx)
		if !ok {
			return
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
			c.Logger().Info("write failed", zap.Error(err))
			return
		}
	}
}

// shutdown 终止连接并清理成员关系。读写协程都会到达这里，只生效一次。
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mailbox.Close()
		c.coord.Disconnect(c.id, c.identity.Load())
		_ = c.ws.Close()
	})
}
