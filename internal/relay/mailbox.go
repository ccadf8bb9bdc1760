package relay

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

// Mailbox 是绑定到单条连接的出站投递队列。
//
// 设计目标：
//   - 把“决定发送”（在共享锁内完成）与“实际写出”（每连接独立的发送协程）解耦；
//   - Put 永不阻塞、永不做 I/O，可以安全地在扇出循环中对任意多个接收方调用；
//   - 队列无界且保序：同一接收方的事件按入队顺序写出；
//   - 单消费者：只有该连接的发送协程调用 Next。
type Mailbox struct {
	mu    sync.Mutex
	queue [][]byte

	// notify 容量为 1，入队时做非阻塞唤醒。
	notify chan struct{}
	done   chan struct{}

	closed    *atomic.Bool
	closeOnce sync.Once
}

// NewMailbox 创建一个空的 Mailbox。
func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		closed: atomic.NewBool(false),
	}
}

// Put 将一帧已编码的消息追加到队尾。
//
// 行为：
//   - 不阻塞、不写网络；
//   - 邮箱已关闭时返回 ErrMailboxClosed，调用方通常只计数后忽略：
//     广播扇出中个别接收方的失败不影响其余接收方。
func (m *Mailbox) Put(frame []byte) error {
	if m.closed.Load() {
		return merr.WrapErrMailboxClosed("put")
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return merr.WrapErrMailboxClosed("put")
	}
	m.queue = append(m.queue, frame)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next 返回队首的下一帧，必要时阻塞等待。
//
// 返回值：
//   - ok 为 false 表示邮箱已关闭且队列已清空，或 ctx 被取消，消费方应退出；
//   - 关闭后仍会先吐出已入队的剩余帧，保证关闭前的消息不被静默丢弃。
//
// 仅允许单一消费协程调用。
func (m *Mailbox) Next(ctx context.Context) ([]byte, bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			frame := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return frame, true
		}
		m.mu.Unlock()

		if m.closed.Load() {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-m.done:
			// 关闭后再回到循环头部，清空可能残留的帧。
		case <-m.notify:
		}
	}
}

// Len 返回当前排队待发送的帧数。
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close 关闭邮箱。幂等，可被读协程和写协程并发调用。
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.done)
	})
}

// Closed 返回邮箱是否已关闭。
func (m *Mailbox) Closed() bool {
	return m.closed.Load()
}
