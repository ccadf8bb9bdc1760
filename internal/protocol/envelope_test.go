package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tarasyarema/interviewer/internal/json"
	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

type EnvelopeSuite struct {
	suite.Suite
}

func (s *EnvelopeSuite) TestEncodeFillsEnvelope() {
	before := time.Now().UnixMilli()
	raw, err := Encode("alice", KindLogin, LoginCommand{Username: "alice", SessionID: "room"})
	s.Require().NoError(err)

	ev := Decode(raw)
	s.Equal("alice", ev.Username)
	s.Equal(KindLogin, ev.Kind)
	s.GreaterOrEqual(ev.Ts, before)
	s.LessOrEqual(ev.Ts, time.Now().UnixMilli())

	var cmd LoginCommand
	s.Require().NoError(DecodePayload(ev, &cmd))
	s.Equal("alice", cmd.Username)
	s.Equal("room", cmd.SessionID)
}

func (s *EnvelopeSuite) TestEncodeNilPayload() {
	raw, err := Encode("alice", KindSendValue, nil)
	s.Require().NoError(err)

	ev := Decode(raw)
	s.Equal(KindSendValue, ev.Kind)
	s.Equal("", ev.Data)
}

func (s *EnvelopeSuite) TestDataIsNestedString() {
	raw, err := Encode("alice", KindSetValue, ValueCommand{Target: "bob", Text: "doc"})
	s.Require().NoError(err)

	// data 字段是嵌套编码的 JSON 字符串，不是内联对象。
	var outer map[string]any
	s.Require().NoError(json.Unmarshal(raw, &outer))
	data, ok := outer["data"].(string)
	s.Require().True(ok)

	var cmd ValueCommand
	s.Require().NoError(json.UnmarshalString(data, &cmd))
	s.Equal("bob", cmd.Target)
}

func (s *EnvelopeSuite) TestDecodeGarbageYieldsEmptyEvent() {
	for _, raw := range [][]byte{
		[]byte("not json at all"),
		[]byte("{\"event\": 42}"),
		nil,
	} {
		ev := Decode(raw)
		s.Equal("", ev.Kind)
		s.Equal("", ev.Username)
	}
}

func (s *EnvelopeSuite) TestDecodePayloadFailure() {
	ev := Event{Kind: KindChange, Data: "{broken"}
	var cmd ChangeCommand
	err := DecodePayload(ev, &cmd)
	s.Require().Error(err)
	s.Equal(merr.Code(merr.ErrDecodeFailed), merr.Code(err))
}

func (s *EnvelopeSuite) TestChangeRoundTrip() {
	id := uint64(7)
	in := ChangeCommand{
		ID:     &id,
		Action: "remove",
		Start:  Position{Row: 1, Column: 2},
		End:    Position{Row: 3, Column: 4},
		Lines:  []string{"a", "b"},
	}
	raw, err := Encode("bob", KindChange, in)
	s.Require().NoError(err)

	var out ChangeCommand
	s.Require().NoError(DecodePayload(Decode(raw), &out))
	s.Equal(in, out)
}

func TestEnvelope(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}
