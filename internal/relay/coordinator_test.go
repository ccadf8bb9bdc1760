package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tarasyarema/interviewer/internal/protocol"
	"github.com/tarasyarema/interviewer/pkg/log"
)

type CoordinatorSuite struct {
	suite.Suite

	coord *Coordinator
	boxes map[ConnID]*Mailbox
}

func (s *CoordinatorSuite) SetupSuite() {
	logger, props, err := log.InitTestLogger(s.T(), &log.Config{Level: "info", Format: "text"})
	s.Require().NoError(err)
	log.ReplaceGlobals(logger, props)
}

func (s *CoordinatorSuite) SetupTest() {
	s.coord = NewCoordinator()
	s.boxes = make(map[ConnID]*Mailbox)
}

func (s *CoordinatorSuite) attach(conn ConnID) {
	mb := NewMailbox()
	s.Require().NoError(s.coord.Attach(conn, mb))
	s.boxes[conn] = mb
}

func (s *CoordinatorSuite) login(conn ConnID, username, sessionID string) *Identity {
	id, err := s.coord.Login(conn, protocol.LoginCommand{Username: username, SessionID: sessionID})
	s.Require().NoError(err)
	s.Require().NotNil(id)
	return id
}

// drain 取出并解码指定连接当前排队的全部事件。
func (s *CoordinatorSuite) drain(conn ConnID) []protocol.Event {
	mb := s.boxes[conn]
	var events []protocol.Event
	for mb.Len() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		raw, ok := mb.Next(ctx)
		cancel()
		s.Require().True(ok)
		events = append(events, protocol.Decode(raw))
	}
	return events
}

func (s *CoordinatorSuite) TestFirstLoginQuiet() {
	s.attach("c1")
	id := s.login("c1", "alice", "room")

	s.Equal("alice", id.Username)
	s.Equal("room", id.SessionID)
	// 会话中的第一人既没有同伴可通告，也没有人可索取文档。
	s.Empty(s.drain("c1"))
}

func (s *CoordinatorSuite) TestLoginValidation() {
	s.attach("c1")

	cases := []protocol.LoginCommand{
		{Username: "", SessionID: "room"},
		{Username: "alice", SessionID: ""},
		{Username: "this-username-is-way-too-long", SessionID: "room"},
		{Username: "alice", SessionID: "this-session-id-is-way-too-long"},
	}
	for _, cmd := range cases {
		id, err := s.coord.Login("c1", cmd)
		s.Error(err)
		s.Nil(id)

		events := s.drain("c1")
		s.Require().Len(events, 1)
		s.Equal(protocol.KindError, events[0].Kind)
	}

	// 校验失败不留任何成员痕迹。
	s.Empty(s.coord.sessions.Members("room"))
}

func (s *CoordinatorSuite) TestSecondLoginAnnouncesBothWays() {
	s.attach("c1")
	s.attach("c2")
	s.login("c1", "alice", "room")
	s.login("c2", "bob", "room")

	// 最早的成员先收到新成员的 add_user，随后收到值索取。
	aliceEvents := s.drain("c1")
	s.Require().Len(aliceEvents, 2)
	s.Equal(protocol.KindAddUser, aliceEvents[0].Kind)
	s.Equal("bob", aliceEvents[0].Username)

	var joined protocol.LoginCommand
	s.Require().NoError(protocol.DecodePayload(aliceEvents[0], &joined))
	s.Equal("bob", joined.Username)
	s.Equal("room", joined.SessionID)

	s.Equal(protocol.KindSendValue, aliceEvents[1].Kind)
	s.Equal("bob", aliceEvents[1].Username)
	s.Equal("", aliceEvents[1].Data)

	// 晚加入者只收到既有成员的 add_user。
	bobEvents := s.drain("c2")
	s.Require().Len(bobEvents, 1)
	s.Equal(protocol.KindAddUser, bobEvents[0].Kind)

	var existing protocol.LoginCommand
	s.Require().NoError(protocol.DecodePayload(bobEvents[0], &existing))
	s.Equal("alice", existing.Username)
}

func (s *CoordinatorSuite) TestPetitionGoesToEarliestMember() {
	s.attach("c1")
	s.attach("c2")
	s.attach("c3")
	s.login("c1", "alice", "room")
	s.login("c2", "bob", "room")
	s.drain("c1")
	s.drain("c2")

	s.login("c3", "carol", "room")

	aliceEvents := s.drain("c1")
	s.Require().Len(aliceEvents, 2)
	s.Equal(protocol.KindAddUser, aliceEvents[0].Kind)
	s.Equal(protocol.KindSendValue, aliceEvents[1].Kind)
	s.Equal("carol", aliceEvents[1].Username)
	s.Equal("", aliceEvents[1].Data)

	// 索取只发给一个成员。
	bobEvents := s.drain("c2")
	s.Require().Len(bobEvents, 1)
	s.Equal(protocol.KindAddUser, bobEvents[0].Kind)
}

func (s *CoordinatorSuite) TestDuplicateConnLogin() {
	s.attach("c1")
	s.login("c1", "alice", "room")

	id, err := s.coord.Login("c1", protocol.LoginCommand{Username: "alice2", SessionID: "room"})
	s.Error(err)
	s.Nil(id)

	events := s.drain("c1")
	s.Require().Len(events, 1)
	s.Equal(protocol.KindError, events[0].Kind)
}

func (s *CoordinatorSuite) TestBroadcastChangeExcludesSelf() {
	s.attach("c1")
	s.attach("c2")
	s.attach("c3")
	alice := s.login("c1", "alice", "room")
	s.login("c2", "bob", "room")
	s.login("c3", "carol", "room")
	s.drain("c1")
	s.drain("c2")
	s.drain("c3")

	cmd := protocol.ChangeCommand{
		Action: "insert",
		Start:  protocol.Position{Row: 0, Column: 0},
		End:    protocol.Position{Row: 0, Column: 5},
		Lines:  []string{"hello"},
	}
	s.NoError(s.coord.BroadcastChange("c1", alice, cmd))

	s.Empty(s.drain("c1"))

	for _, conn := range []ConnID{"c2", "c3"} {
		events := s.drain(conn)
		s.Require().Len(events, 1)
		s.Equal(protocol.KindChange, events[0].Kind)
		s.Equal("alice", events[0].Username)

		var got protocol.ChangeCommand
		s.Require().NoError(protocol.DecodePayload(events[0], &got))
		s.Equal(cmd.Action, got.Action)
		s.Equal(cmd.Lines, got.Lines)
		s.Equal(cmd.End, got.End)
	}
}

func (s *CoordinatorSuite) TestForwardValue() {
	s.attach("c1")
	s.attach("c2")
	s.attach("c3")
	alice := s.login("c1", "alice", "room")
	s.login("c2", "bob", "room")
	s.login("c3", "carol", "room")
	s.drain("c1")
	s.drain("c2")
	s.drain("c3")

	cmd := protocol.ValueCommand{Target: "carol", Text: "the document"}
	s.NoError(s.coord.ForwardValue("c1", alice, cmd))

	s.Empty(s.drain("c2"))

	events := s.drain("c3")
	s.Require().Len(events, 1)
	s.Equal(protocol.KindSetValue, events[0].Kind)
	s.Equal("alice", events[0].Username)

	var got protocol.ValueCommand
	s.Require().NoError(protocol.DecodePayload(events[0], &got))
	s.Equal("carol", got.Target)
	s.Equal("the document", got.Text)
}

func (s *CoordinatorSuite) TestForwardValueNoMatchIsSilent() {
	s.attach("c1")
	s.attach("c2")
	alice := s.login("c1", "alice", "room")
	s.login("c2", "bob", "room")
	s.drain("c1")
	s.drain("c2")

	s.NoError(s.coord.ForwardValue("c1", alice, protocol.ValueCommand{Target: "ghost", Text: "x"}))
	s.Empty(s.drain("c2"))
}

func (s *CoordinatorSuite) TestDisconnectNotifiesRemaining() {
	s.attach("c1")
	s.attach("c2")
	s.attach("c3")
	s.login("c1", "alice", "room")
	bob := s.login("c2", "bob", "room")
	s.login("c3", "carol", "room")
	s.drain("c1")
	s.drain("c2")
	s.drain("c3")

	s.coord.Disconnect("c2", bob)

	for _, conn := range []ConnID{"c1", "c3"} {
		events := s.drain(conn)
		s.Require().Len(events, 1)
		s.Equal(protocol.KindRemoveUser, events[0].Kind)
		s.Equal("bob", events[0].Username)
	}

	members := s.coord.sessions.Members("room")
	s.Len(members, 2)
	_, ok := s.coord.peers.Get("c2")
	s.False(ok)
}

func (s *CoordinatorSuite) TestDisconnectIdempotent() {
	s.attach("c1")
	s.attach("c2")
	s.login("c1", "alice", "room")
	bob := s.login("c2", "bob", "room")
	s.drain("c1")
	s.drain("c2")

	s.coord.Disconnect("c2", bob)
	s.coord.Disconnect("c2", bob)

	// 第二次触发不产生第二条 remove_user。
	events := s.drain("c1")
	s.Require().Len(events, 1)
	s.Equal(protocol.KindRemoveUser, events[0].Kind)
}

func (s *CoordinatorSuite) TestDisconnectBeforeLogin() {
	s.attach("c1")
	s.attach("c2")
	s.login("c1", "alice", "room")
	s.drain("c1")

	// c2 从未登录，断开时不通告任何人。
	s.coord.Disconnect("c2", nil)
	s.Empty(s.drain("c1"))
}

func (s *CoordinatorSuite) TestSendToDeadPeerIsolated() {
	s.attach("c1")
	s.attach("c2")
	s.attach("c3")
	alice := s.login("c1", "alice", "room")
	s.login("c2", "bob", "room")
	s.login("c3", "carol", "room")
	s.drain("c1")
	s.drain("c2")
	s.drain("c3")

	// bob 的邮箱已关闭但成员关系尚未清理，广播对其余成员照常送达。
	s.boxes["c2"].Close()
	s.drain("c2")

	err := s.coord.BroadcastChange("c1", alice, protocol.ChangeCommand{Action: "insert"})
	s.Error(err)

	events := s.drain("c3")
	s.Require().Len(events, 1)
	s.Equal(protocol.KindChange, events[0].Kind)
}

func TestCoordinator(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}
