// Package user manages the process-wide user population: creation on
// first connection, lookup by reconnect token, and profile mutation.
package user

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zt1106/baodatui3/internal/dependencies/clock"
	"github.com/zt1106/baodatui3/internal/dependencies/random"
	"github.com/zt1106/baodatui3/internal/model"
	"github.com/zt1106/baodatui3/internal/store"
)

// MaxNameLength is the display-name limit, counted in runes.
const MaxNameLength = 10

// Generated display names are cosmetic; pick one per list draw.
var (
	nameAdjectives = []string{
		"Brave", "Calm", "Clever", "Eager", "Gentle", "Jolly",
		"Keen", "Lucky", "Merry", "Nimble", "Quiet", "Swift",
	}
	nameAnimals = []string{
		"Badger", "Crane", "Fox", "Heron", "Lynx", "Otter",
		"Panda", "Raven", "Seal", "Tiger", "Vole", "Wren",
	}
)

// Service owns the user store and its token index. Users are never
// destroyed; their lifetime is the process.
type Service struct {
	users *store.Store[*model.User]

	mu      sync.RWMutex
	byToken map[string]*store.Handle[*model.User]

	clock  clock.Clock
	random random.Random
	logger *slog.Logger
}

// NewService creates the user service.
func NewService(clk clock.Clock, rnd random.Random, logger *slog.Logger) *Service {
	return &Service{
		users:   store.New[*model.User](),
		byToken: make(map[string]*store.Handle[*model.User]),
		clock:   clk,
		random:  rnd,
		logger:  logger.With(slog.String("component", "users")),
	}
}

// Login resolves a connection to a user. A known token returns the
// existing user with a refreshed login timestamp; anything else creates
// a fresh user with a new token and a generated display name.
func (s *Service) Login(token string) *store.Handle[*model.User] {
	if token != "" {
		s.mu.RLock()
		h, ok := s.byToken[token]
		s.mu.RUnlock()
		if ok {
			h.Update(func(u *model.User) {
				u.LoginTimestamp = s.clock.Now().Unix()
			})
			s.logger.Info("user reconnected", slog.Uint64("user_id", uint64(h.ID())))
			return h
		}
	}

	u := &model.User{
		NickName:       s.randomNickName(),
		UUID:           uuid.NewString(),
		LoginTimestamp: s.clock.Now().Unix(),
	}
	h := s.users.Insert(u)

	s.mu.Lock()
	s.byToken[u.UUID] = h
	s.mu.Unlock()

	s.logger.Info("user created",
		slog.Uint64("user_id", uint64(u.ID)),
		slog.String("nick_name", u.NickName))
	return h
}

// Get returns the handle for a user id.
func (s *Service) Get(id uint32) (*store.Handle[*model.User], bool) {
	return s.users.Get(id)
}

// FindByToken returns the user holding the given reconnect token.
func (s *Service) FindByToken(token string) (*store.Handle[*model.User], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byToken[token]
	return h, ok
}

// Snapshot returns a copy of the user's current state.
func (s *Service) Snapshot(id uint32) (model.User, error) {
	h, ok := s.users.Get(id)
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	var snapshot model.User
	h.View(func(u *model.User) {
		snapshot = *u
	})
	return snapshot, nil
}

// Rename changes a user's display name. The name must be non-empty and
// at most MaxNameLength runes.
func (s *Service) Rename(id uint32, name string) error {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return model.ErrInvalidName
	}
	h, ok := s.users.Get(id)
	if !ok {
		return model.ErrUserNotFound
	}
	h.Update(func(u *model.User) {
		u.NickName = name
	})
	return nil
}

func (s *Service) randomNickName() string {
	adj := nameAdjectives[s.random.Intn(len(nameAdjectives))]
	animal := nameAnimals[s.random.Intn(len(nameAnimals))]
	return adj + " " + animal
}
