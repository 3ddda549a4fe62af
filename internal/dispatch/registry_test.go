package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/zt1106/baodatui3/internal/testutil"
)

type greetReq struct {
	Name string `json:"name"`
}

type greetRes struct {
	Greeting string `json:"greeting"`
}

type RegistrySuite struct {
	suite.Suite
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry(testutil.NopLogger())
	s.ctx = context.Background()

	RegisterRequest(s.registry, "Greet", func(ctx context.Context, callerID uint32, req greetReq) (greetRes, error) {
		return greetRes{Greeting: "hello " + req.Name}, nil
	})
}

func (s *RegistrySuite) TestDispatchRequestRoundTrip() {
	out, err := s.registry.DispatchRequest(s.ctx, "Greet", 1, []byte(`{"name":"ada"}`))
	s.Require().NoError(err)

	var res greetRes
	s.Require().NoError(json.Unmarshal(out, &res))
	s.Equal("hello ada", res.Greeting)
}

func (s *RegistrySuite) TestEmptyPayloadDecodesToZeroValue() {
	out, err := s.registry.DispatchRequest(s.ctx, "Greet", 1, nil)
	s.Require().NoError(err)

	var res greetRes
	s.Require().NoError(json.Unmarshal(out, &res))
	s.Equal("hello ", res.Greeting)
}

func (s *RegistrySuite) TestUnknownCommand() {
	_, err := s.registry.DispatchRequest(s.ctx, "Nope", 1, nil)
	s.ErrorIs(err, ErrUnknownCommand)

	_, err = s.registry.DispatchStream(s.ctx, "Nope", 1, nil)
	s.ErrorIs(err, ErrUnknownCommand)
}

func (s *RegistrySuite) TestDecodeError() {
	_, err := s.registry.DispatchRequest(s.ctx, "Greet", 1, []byte(`{invalid`))
	s.ErrorIs(err, ErrDecode)
}

func (s *RegistrySuite) TestHandlerErrorPassesThrough() {
	sentinel := errors.New("boom")
	RegisterRequest(s.registry, "Fail", func(ctx context.Context, callerID uint32, req greetReq) (greetRes, error) {
		return greetRes{}, sentinel
	})

	_, err := s.registry.DispatchRequest(s.ctx, "Fail", 1, nil)
	s.ErrorIs(err, sentinel)
}

func (s *RegistrySuite) TestCallerIDReachesHandler() {
	RegisterRequest(s.registry, "WhoAmI", func(ctx context.Context, callerID uint32, req struct{}) (uint32, error) {
		return callerID, nil
	})

	out, err := s.registry.DispatchRequest(s.ctx, "WhoAmI", 42, nil)
	s.Require().NoError(err)
	s.Equal("42", string(out))
}

func (s *RegistrySuite) TestDuplicateRegistrationPanics() {
	s.Panics(func() {
		RegisterRequest(s.registry, "Greet", func(ctx context.Context, callerID uint32, req greetReq) (greetRes, error) {
			return greetRes{}, nil
		})
	})
}

func (s *RegistrySuite) TestDuplicateAcrossKindsPanics() {
	s.Panics(func() {
		RegisterStream(s.registry, "Greet", func(ctx context.Context, callerID uint32, req struct{}) (<-chan int, error) {
			return nil, nil
		})
	})
}

func (s *RegistrySuite) TestDispatchStreamDeliversItems() {
	RegisterStream(s.registry, "Count", func(ctx context.Context, callerID uint32, req struct{}) (<-chan int, error) {
		items := make(chan int, 3)
		items <- 1
		items <- 2
		items <- 3
		close(items)
		return items, nil
	})

	out, err := s.registry.DispatchStream(s.ctx, "Count", 1, nil)
	s.Require().NoError(err)

	var got []int
	for raw := range out {
		var v int
		s.Require().NoError(json.Unmarshal(raw, &v))
		got = append(got, v)
	}
	s.Equal([]int{1, 2, 3}, got)
}

func (s *RegistrySuite) TestStreamEncodeFailureDropsOnlyThatItem() {
	type item struct {
		V any `json:"v"`
	}
	RegisterStream(s.registry, "Mixed", func(ctx context.Context, callerID uint32, req struct{}) (<-chan item, error) {
		items := make(chan item, 2)
		items <- item{V: make(chan int)} // not encodable, should be skipped
		items <- item{V: "ok"}
		close(items)
		return items, nil
	})

	out, err := s.registry.DispatchStream(s.ctx, "Mixed", 1, nil)
	s.Require().NoError(err)

	var got []string
	for raw := range out {
		var v item
		s.Require().NoError(json.Unmarshal(raw, &v))
		got = append(got, v.V.(string))
	}
	s.Equal([]string{"ok"}, got)
}

func (s *RegistrySuite) TestStreamEndsOnContextCancel() {
	RegisterStream(s.registry, "Forever", func(ctx context.Context, callerID uint32, req struct{}) (<-chan int, error) {
		return make(chan int), nil // never produces, never closes
	})

	ctx, cancel := context.WithCancel(s.ctx)
	out, err := s.registry.DispatchStream(ctx, "Forever", 1, nil)
	s.Require().NoError(err)

	cancel()
	select {
	case _, open := <-out:
		s.False(open)
	case <-time.After(time.Second):
		s.Fail("stream did not end after cancellation")
	}
}

func (s *RegistrySuite) TestStreamHandlerErrorPassesThrough() {
	sentinel := errors.New("refused")
	RegisterStream(s.registry, "Refuse", func(ctx context.Context, callerID uint32, req struct{}) (<-chan int, error) {
		return nil, sentinel
	})

	_, err := s.registry.DispatchStream(s.ctx, "Refuse", 1, nil)
	s.ErrorIs(err, sentinel)
}
