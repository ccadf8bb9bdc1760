package relay

import (
	"sync"

	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

// PeerRegistry 维护进程内所有在线连接到其 Mailbox 的索引。
//
// 职责说明：
//   - 只负责 Mailbox 的注册、查询和移除，不负责创建或关闭底层连接；
//   - 连接的具体生命周期由接入层决定：接受连接时 Register，连接终止时 Unregister；
//   - 定向投递（error、send_value、add_user 等）都经由本注册表查找收件箱。
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[ConnID]*Mailbox
}

// NewPeerRegistry 创建一个空的 PeerRegistry。
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[ConnID]*Mailbox),
	}
}

// Register 将连接的 Mailbox 注册到索引中。
// 相同 ConnID 重复注册时返回错误，避免覆盖旧连接的收件箱。
func (r *PeerRegistry) Register(id ConnID, mb *Mailbox) error {
	if mb == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; exists {
		return merr.WrapErrPeerDuplicate(id)
	}
	r.peers[id] = mb
	return nil
}

// Get 根据 ConnID 查找 Mailbox。
func (r *PeerRegistry) Get(id ConnID) (*Mailbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mb, ok := r.peers[id]
	return mb, ok
}

// Unregister 从索引中移除指定连接。
//
// 移除不存在的条目是无害的空操作并返回 false：
// 断线清理可能由读协程和写协程先后触发，必须保证幂等。
func (r *PeerRegistry) Unregister(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; !exists {
		return false
	}
	delete(r.peers, id)
	return true
}

// Count 返回当前已注册的连接数量。
func (r *PeerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// SessionRegistry 维护会话标识到其有序成员列表的索引。
//
// 约定：
//   - 成员列表按加入顺序排列，加入顺序是协议语义的一部分
//     （值索取固定选择最早加入者）；
//   - 同一 ConnID 在同一会话中至多出现一次；
//   - 会话在首次加入时隐式创建，之后永不删除：成员清空后保留空条目。
//     这是已知的内存增长上限问题，换来的是无需引用计数的简单清理路径。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string][]Member
}

// NewSessionRegistry 创建一个空的 SessionRegistry。
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string][]Member),
	}
}

// Join 将成员追加到会话末尾，并返回加入之前的成员快照。
//
// 行为：
//   - “读取快照”和“追加成员”在同一临界区内完成：
//     返回值严格是加入者可见的“先于我存在的成员”，空切片表示会话原先不存在；
//   - 若该 ConnID 已是会话成员，则不做任何修改并返回错误。
func (r *SessionRegistry) Join(sessionID string, m Member) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.sessions[sessionID]
	for i := range list {
		if list[i].Conn == m.Conn {
			return nil, merr.WrapErrPeerDuplicate(m.Conn, "already a member of "+sessionID)
		}
	}

	snapshot := make([]Member, len(list))
	copy(snapshot, list)

	r.sessions[sessionID] = append(list, m)
	return snapshot, nil
}

// Leave 将指定连接从会话中移除，并返回移除之后剩余成员的快照。
//
// 会话或成员不存在时为空操作，返回 nil：
// 断线清理必须幂等，查找落空不是错误。
func (r *SessionRegistry) Leave(sessionID string, conn ConnID) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}

	found := false
	kept := list[:0]
	for _, m := range list {
		if m.Conn == conn {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return nil
	}
	r.sessions[sessionID] = kept

	snapshot := make([]Member, len(kept))
	copy(snapshot, kept)
	return snapshot
}

// Members 返回会话当前成员的快照，保持加入顺序。
func (r *SessionRegistry) Members(sessionID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.sessions[sessionID]
	snapshot := make([]Member, len(list))
	copy(snapshot, list)
	return snapshot
}

// Others 返回会话中除指定连接以外的成员快照，保持加入顺序。
func (r *SessionRegistry) Others(sessionID string, conn ConnID) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.sessions[sessionID]
	others := make([]Member, 0, len(list))
	for _, m := range list {
		if m.Conn != conn {
			others = append(others, m)
		}
	}
	return others
}

// Count 返回会话条目数（含空会话）。
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// MemberCount 返回所有会话中的成员总数。
func (r *SessionRegistry) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, list := range r.sessions {
		total += len(list)
	}
	return total
}
