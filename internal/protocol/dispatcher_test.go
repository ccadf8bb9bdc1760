package protocol

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type DispatcherSuite struct {
	suite.Suite

	d *Dispatcher
}

func (s *DispatcherSuite) SetupTest() {
	s.d = NewDispatcher()
}

func (s *DispatcherSuite) TestRegisterValidation() {
	s.Error(s.d.Register("", Route{Handler: func(Event, any) error { return nil }}))
	s.Error(s.d.Register(KindLogin, Route{}))

	s.NoError(s.d.Register(KindLogin, Route{Handler: func(Event, any) error { return nil }}))
	s.Error(s.d.Register(KindLogin, Route{Handler: func(Event, any) error { return nil }}))
}

func (s *DispatcherSuite) TestDispatchDecodesPayload() {
	var got *LoginCommand
	s.Require().NoError(s.d.Register(KindLogin, Route{
		NewPayload: func() any { return &LoginCommand{} },
		Handler: func(ev Event, payload any) error {
			got = payload.(*LoginCommand)
			return nil
		},
	}))

	raw, err := Encode("alice", KindLogin, LoginCommand{Username: "alice", SessionID: "room"})
	s.Require().NoError(err)

	s.NoError(s.d.Dispatch(Decode(raw)))
	s.Require().NotNil(got)
	s.Equal("alice", got.Username)
	s.Equal("room", got.SessionID)
}

func (s *DispatcherSuite) TestDispatchWithoutPayload() {
	called := false
	s.Require().NoError(s.d.Register(KindGetValue, Route{
		Handler: func(ev Event, payload any) error {
			s.Nil(payload)
			called = true
			return nil
		},
	}))

	s.NoError(s.d.Dispatch(Event{Kind: KindGetValue, Username: "alice"}))
	s.True(called)
}

func (s *DispatcherSuite) TestDispatchEmptyKindIsNoop() {
	s.Require().NoError(s.d.Register(KindLogin, Route{
		Handler: func(Event, any) error {
			s.FailNow("handler must not run for an empty event")
			return nil
		},
	}))

	s.NoError(s.d.Dispatch(Event{}))
}

func (s *DispatcherSuite) TestDispatchUnknownKindIsNoop() {
	s.NoError(s.d.Dispatch(Event{Kind: "warp"}))
}

func (s *DispatcherSuite) TestDispatchBrokenPayload() {
	s.Require().NoError(s.d.Register(KindChange, Route{
		NewPayload: func() any { return &ChangeCommand{} },
		Handler: func(Event, any) error {
			s.FailNow("handler must not run when the payload does not decode")
			return nil
		},
	}))

	s.Error(s.d.Dispatch(Event{Kind: KindChange, Data: "{broken"}))
}

func TestDispatcher(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}
