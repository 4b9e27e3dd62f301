package archive

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"assistantportal/internal/domain/realtime"
)

const (
	DefaultArchiveName = "기본 대화"
	NewArchiveName     = "새 대화"
	MaxNameRunes       = 100
)

// Store is the archive list plus a per-user "current archive" pointer.
type Store struct {
	repo Repository
	pub  realtime.Publisher

	mu      sync.Mutex
	current map[string]*Archive // userID -> selected archive
}

func NewStore(repo Repository, pub realtime.Publisher) *Store {
	if pub == nil {
		pub = realtime.Discard
	}
	return &Store{
		repo:    repo,
		pub:     pub,
		current: make(map[string]*Archive),
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// List returns the user's archives, creating the default archive on first use.
func (s *Store) List(ctx context.Context, userID string) ([]*Archive, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		if a.IsDefault {
			return list, nil
		}
	}

	def := &Archive{ID: newID(), UserID: userID, Name: DefaultArchiveName, IsDefault: true}
	if err := s.repo.Create(ctx, def); err != nil {
		return nil, err
	}
	return append([]*Archive{def}, list...), nil
}

// Create adds a fresh archive and makes it current.
func (s *Store) Create(ctx context.Context, userID, name string) (*Archive, error) {
	name = cleanName(name)
	if name == "" {
		name = NewArchiveName
	}
	a := &Archive{ID: newID(), UserID: userID, Name: name}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.setCurrent(userID, a)
	return a, nil
}

// Get loads an archive owned by userID.
func (s *Store) Get(ctx context.Context, userID, id string) (*Archive, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotOwner
	}
	return a, nil
}

// Select moves the current pointer.
func (s *Store) Select(ctx context.Context, userID, id string) (*Archive, error) {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.setCurrent(userID, a)
	return a, nil
}

// Current returns a copy of the selected archive.
func (s *Store) Current(userID string) (Archive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.current[userID]
	if !ok {
		return Archive{}, false
	}
	return *a, true
}

// Forget drops the current pointer, at logout.
func (s *Store) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, userID)
}

func (s *Store) setCurrent(userID string, a *Archive) {
	cp := *a
	s.mu.Lock()
	s.current[userID] = &cp
	s.mu.Unlock()
}

// RenamedEvent is published after every rename.
type RenamedEvent struct {
	ArchiveID string `json:"archive_id"`
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
}

// Rename updates the stored name and the current pointer when it points at id.
func (s *Store) Rename(ctx context.Context, userID, id, name string) error {
	name = cleanName(name)
	if name == "" {
		return ErrEmptyName
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return err
	}

	s.mu.Lock()
	cur, isCurrent := s.current[userID]
	isCurrent = isCurrent && cur.ID == id
	if isCurrent {
		cur.Name = name
		cur.UpdatedAt = time.Now()
	}
	s.mu.Unlock()

	s.pub.Publish(userID, realtime.NewEvent(realtime.EventArchiveRenamed, RenamedEvent{
		ArchiveID: id,
		Name:      name,
		IsCurrent: isCurrent,
	}))
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, archiveID string, role Role, content string, truncated bool) (*Message, error) {
	m := &Message{
		ID:        newID(),
		ArchiveID: archiveID,
		Role:      role,
		Content:   content,
		Truncated: truncated,
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) CountMessages(ctx context.Context, archiveID string) (int64, error) {
	return s.repo.CountMessages(ctx, archiveID)
}

func (s *Store) Messages(ctx context.Context, userID, archiveID string, limit, offset int) ([]*Message, error) {
	if _, err := s.Get(ctx, userID, archiveID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, archiveID, limit, offset)
}

// cleanName trims, folds newlines and caps the length.
func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) > MaxNameRunes {
		name = string([]rune(name)[:MaxNameRunes])
	}
	return name
}
