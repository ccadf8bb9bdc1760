package relay

import (
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tarasyarema/interviewer/internal/protocol"
	"github.com/tarasyarema/interviewer/pkg/log"
	"github.com/tarasyarema/interviewer/pkg/metrics"
	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

// Coordinator 实现会话协调协议：登录、值索取、定向转发、变更广播与断线清理。
//
// 并发纪律：
//   - 所有方法都在调用方（连接的读协程）上同步执行，自身不做网络 I/O；
//   - 两张注册表各自持有最小临界区，方法内先在锁内算出接收方快照，
//     释放锁之后才向各接收方的 Mailbox 入队；
//   - Mailbox.Put 不阻塞，单个接收方失败只计数，不影响扇出中的其余接收方。
type Coordinator struct {
	log.Binder

	peers    *PeerRegistry
	sessions *SessionRegistry
}

// NewCoordinator 创建一个空注册表的 Coordinator。
func NewCoordinator() *Coordinator {
	c := &Coordinator{
		peers:    NewPeerRegistry(),
		sessions: NewSessionRegistry(),
	}
	c.SetLogger(log.With(log.FieldComponent("coordinator")))
	return c
}

// Attach 在连接被接受时登记其 Mailbox。
func (c *Coordinator) Attach(conn ConnID, mb *Mailbox) error {
	if err := c.peers.Register(conn, mb); err != nil {
		return err
	}
	metrics.ActiveConnections.Set(float64(c.peers.Count()))
	return nil
}

// Login 处理 login 命令。
//
// 流程：
//  1. 校验 username / session_id 非空且不超过最大长度，失败时只向发起方
//     回发一条 error 事件，不触碰任何注册表；
//  2. 原子地读取会话既有成员并追加新成员（快照先于追加可见）；
//  3. 对每个既有成员 M（按加入顺序）：向 M 发送携带新成员用户名的 add_user，
//     同时向发起方发送携带 M 用户名的 add_user；
//  4. 触发值索取协议。
//
// 返回该连接此后不再变更的 Identity；任何失败路径都返回 nil。
func (c *Coordinator) Login(conn ConnID, cmd protocol.LoginCommand) (*Identity, error) {
	username, sessionID := cmd.Username, cmd.SessionID

	if len(username) == 0 || len(username) > protocol.MaxFieldLen ||
		len(sessionID) == 0 || len(sessionID) > protocol.MaxFieldLen {
		c.Logger().Info("login validation failed",
			log.FieldConn(string(conn)),
			zap.Int("username_len", len(username)),
			zap.Int("session_id_len", len(sessionID)))

		c.SendError(conn, username, merr.ErrLoginInvalid.Error())
		return nil, merr.WrapErrLoginInvalid(username, sessionID)
	}

	id := &Identity{SessionID: sessionID, Username: username}

	others, err := c.sessions.Join(sessionID, Member{Username: username, Conn: conn})
	if err != nil {
		c.SendError(conn, username, merr.ErrAlreadyLogged.Error())
		return nil, err
	}

	c.Logger().Info("member logged in",
		log.FieldConn(string(conn)),
		log.FieldSession(sessionID),
		zap.String("username", username),
		zap.Int("existing_members", len(others)))

	// 通知双方互相加入参与者列表。发往既有成员的事件内容相同，只编码一次；
	// 发往新成员的事件按既有成员逐个编码。
	toOthers, err := protocol.Encode(username, protocol.KindAddUser, protocol.LoginCommand{
		Username:  username,
		SessionID: sessionID,
	})
	if err != nil {
		return id, err
	}

	var errs []error
	for _, other := range others {
		errs = append(errs, c.send(other.Conn, protocol.KindAddUser, toOthers))

		toSelf, err := protocol.Encode(username, protocol.KindAddUser, protocol.LoginCommand{
			Username:  other.Username,
			SessionID: sessionID,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, c.send(conn, protocol.KindAddUser, toSelf))
	}

	metrics.RegisteredSessions.Set(float64(c.sessions.Count()))
	metrics.SessionMembers.Set(float64(c.sessions.MemberCount()))

	c.petitionValue(conn, id)

	return id, merr.Combine(errs...)
}

// petitionValue 触发晚加入者的状态引导："others" 非空时，向其中最早加入的
// 那一个成员发送一条 send_value 事件，让它把当前文档内容补发给新成员。
//
// 约定：
//   - 至多只选一个目标，固定为有序成员表中的第一个（确定性，不随机）；
//   - 选中的目标不可达时不改选其他成员，新成员从隐式空文档开始；
//   - "others" 为空（新成员是会话中第一人）时不发送任何索取。
func (c *Coordinator) petitionValue(conn ConnID, id *Identity) {
	others := c.sessions.Others(id.SessionID, conn)
	if len(others) == 0 {
		return
	}

	target := others[0]

	raw, err := protocol.Encode(id.Username, protocol.KindSendValue, nil)
	if err != nil {
		c.Logger().Warn("encode send_value failed", zap.Error(err))
		return
	}

	if err := c.send(target.Conn, protocol.KindSendValue, raw); err != nil {
		c.Logger().Warn("value petition undeliverable",
			log.FieldSession(id.SessionID),
			zap.String("target", target.Username),
			zap.Error(err))
		return
	}

	c.Logger().Debug("sent value petition",
		log.FieldConn(string(conn)),
		log.FieldSession(id.SessionID),
		zap.String("target", target.Username))
}

// ForwardValue 处理 set_value 命令：把文档全文定向投递给用户名等于 target
// 的会话成员。没有成员匹配时静默忽略——目标可能在索取和应答之间已经断线。
func (c *Coordinator) ForwardValue(conn ConnID, id *Identity, cmd protocol.ValueCommand) error {
	raw, err := protocol.Encode(id.Username, protocol.KindSetValue, cmd)
	if err != nil {
		return err
	}

	matched := lo.Filter(c.sessions.Others(id.SessionID, conn), func(m Member, _ int) bool {
		return m.Username == cmd.Target
	})

	var errs []error
	for _, m := range matched {
		errs = append(errs, c.send(m.Conn, protocol.KindSetValue, raw))
	}

	c.Logger().Debug("forwarded value",
		log.FieldConn(string(conn)),
		log.FieldSession(id.SessionID),
		zap.String("target", cmd.Target),
		zap.Int("matched", len(matched)),
		zap.Int("bytes", len(cmd.Text)))

	return merr.Combine(errs...)
}

// BroadcastChange 处理 change 命令：把编辑操作原样广播给会话中除发起方
// 以外的全部成员。只编码一次，所有接收方收到完全相同的字节。
func (c *Coordinator) BroadcastChange(conn ConnID, id *Identity, cmd protocol.ChangeCommand) error {
	raw, err := protocol.Encode(id.Username, protocol.KindChange, cmd)
	if err != nil {
		return err
	}

	others := c.sessions.Others(id.SessionID, conn)

	var errs []error
	for _, m := range others {
		errs = append(errs, c.send(m.Conn, protocol.KindChange, raw))
	}

	metrics.BroadcastFanout.Observe(float64(len(others)))

	c.Logger().WithRateGroup("relay.change", 1, 60).RatedDebug(1, "broadcast change",
		log.FieldConn(string(conn)),
		log.FieldSession(id.SessionID),
		zap.Int("recipients", len(others)),
		zap.Int("bytes", len(raw)))

	return merr.Combine(errs...)
}

// Disconnect 处理连接终止。
//
// 流程：
//  1. 无条件将连接从 PeerRegistry 移除；
//  2. id 为 nil（登录从未完成）则到此为止，没有需要通告的成员关系；
//  3. 原子地移除成员并取得剩余成员快照，向每个剩余成员发送 remove_user。
//
// 读协程和写协程可能先后触发本方法，整条路径幂等。
func (c *Coordinator) Disconnect(conn ConnID, id *Identity) {
	removed := c.peers.Unregister(conn)
	if removed {
		metrics.ActiveConnections.Set(float64(c.peers.Count()))
	}

	if id == nil {
		return
	}

	remaining := c.sessions.Leave(id.SessionID, conn)

	metrics.SessionMembers.Set(float64(c.sessions.MemberCount()))

	if !removed && len(remaining) == 0 {
		// 第二次触发：成员早已移除，剩余成员也已各自收到过通告。
		return
	}

	raw, err := protocol.Encode(id.Username, protocol.KindRemoveUser, protocol.LoginCommand{
		Username:  id.Username,
		SessionID: id.SessionID,
	})
	if err != nil {
		c.Logger().Warn("encode remove_user failed", zap.Error(err))
		return
	}

	for _, m := range remaining {
		// 扇出失败只计数。
		_ = c.send(m.Conn, protocol.KindRemoveUser, raw)
	}

	c.Logger().Info("member disconnected",
		log.FieldConn(string(conn)),
		log.FieldSession(id.SessionID),
		zap.String("username", id.Username),
		zap.Int("remaining", len(remaining)))
}

// SendError 向指定连接回发一条 error 事件。只影响该连接，不触碰注册表。
func (c *Coordinator) SendError(conn ConnID, username, msg string) {
	raw, err := protocol.Encode(username, protocol.KindError, protocol.ErrorCommand{Msg: msg})
	if err != nil {
		c.Logger().Warn("encode error event failed", zap.Error(err))
		return
	}
	_ = c.send(conn, protocol.KindError, raw)
}

// send 将一帧已编码事件投递到指定连接的 Mailbox。
//
// 查找落空或邮箱已关闭都不是调用方的错误：对端可能刚刚断线。
// 只记录指标和限流日志，返回值供调用方按需聚合。
func (c *Coordinator) send(conn ConnID, kind string, raw []byte) error {
	mb, ok := c.peers.Get(conn)
	if !ok {
		metrics.EventsDropped.Inc()
		return merr.WrapErrPeerNotFound(conn)
	}

	if err := mb.Put(raw); err != nil {
		metrics.EventsDropped.Inc()
		c.Logger().WithRateGroup("relay.drop", 1, 60).RatedWarn(1, "event dropped",
			log.FieldConn(string(conn)),
			zap.String("event", kind),
			zap.Error(err))
		return err
	}

	metrics.EventsRelayed.WithLabelValues(kind).Inc()
	return nil
}
