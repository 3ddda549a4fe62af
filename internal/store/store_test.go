package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type widget struct {
	id   uint32
	name string
}

func (w *widget) EntityID() uint32      { return w.id }
func (w *widget) SetEntityID(id uint32) { w.id = id }

type StoreSuite struct {
	suite.Suite
	store *Store[*widget]
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New[*widget]()
}

func (s *StoreSuite) TestInsertAssignsStrictlyIncreasingIDs() {
	var prev uint32
	for i := 0; i < 100; i++ {
		h := s.store.Insert(&widget{name: "w"})
		id := h.ID()
		if i > 0 {
			s.Greater(id, prev)
		}
		prev = id
	}
	s.Equal(100, s.store.Len())
}

func (s *StoreSuite) TestGetReturnsInsertedValue() {
	h := s.store.Insert(&widget{name: "gear"})

	got, ok := s.store.Get(h.ID())
	s.Require().True(ok)
	got.View(func(w *widget) {
		s.Equal("gear", w.name)
	})
}

func (s *StoreSuite) TestGetMissingID() {
	_, ok := s.store.Get(42)
	s.False(ok)
}

func (s *StoreSuite) TestContains() {
	h := s.store.Insert(&widget{})
	s.True(s.store.Contains(h.ID()))
	s.False(s.store.Contains(h.ID() + 1))
}

func (s *StoreSuite) TestRemove() {
	h := s.store.Insert(&widget{})
	s.store.Remove(h.ID())
	s.False(s.store.Contains(h.ID()))

	// removing again is a no-op
	s.store.Remove(h.ID())
	s.Equal(0, s.store.Len())
}

func (s *StoreSuite) TestRemoveHandle() {
	h := s.store.Insert(&widget{})
	s.store.RemoveHandle(h)
	s.False(s.store.Contains(h.ID()))
}

func (s *StoreSuite) TestHandleStaysValidAfterRemove() {
	h := s.store.Insert(&widget{name: "kept"})
	s.store.RemoveHandle(h)

	h.View(func(w *widget) {
		s.Equal("kept", w.name)
	})
}

func (s *StoreSuite) TestAllIsSnapshot() {
	s.store.Insert(&widget{})
	s.store.Insert(&widget{})

	snapshot := s.store.All()
	s.store.Insert(&widget{})

	s.Len(snapshot, 2)
	s.Equal(3, s.store.Len())
}

func (s *StoreSuite) TestFind() {
	s.store.Insert(&widget{name: "a"})
	target := s.store.Insert(&widget{name: "b"})

	h, ok := s.store.Find(func(w *widget) bool { return w.name == "b" })
	s.Require().True(ok)
	s.Equal(target.ID(), h.ID())
}

func (s *StoreSuite) TestFindNoMatch() {
	s.store.Insert(&widget{name: "a"})

	_, ok := s.store.Find(func(w *widget) bool { return w.name == "z" })
	s.False(ok)
}

func (s *StoreSuite) TestUpdateMutatesUnderLock() {
	h := s.store.Insert(&widget{name: "old"})
	h.Update(func(w *widget) {
		w.name = "new"
	})
	h.View(func(w *widget) {
		s.Equal("new", w.name)
	})
}

func (s *StoreSuite) TestConcurrentInsertsProduceUniqueIDs() {
	const (
		workers = 10
		perWork = 100
	)

	ids := make(chan uint32, workers*perWork)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWork; j++ {
				ids <- s.store.Insert(&widget{}).ID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint32]bool)
	for id := range ids {
		s.False(seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	s.Len(seen, workers*perWork)
	s.Equal(workers*perWork, s.store.Len())
}
