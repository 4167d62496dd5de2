package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bgrizzle97/socialMedia/internal/auth"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/repository"
)

// memDB is an in-memory stand-in for MySQL. Transactions are serialized and
// roll back by restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users       []*model.User
	identities  map[string]model.ExternalIdentity
	friendships map[[2]uuid.UUID]bool
	requests    []model.FriendRequest
	nextReqID   uint

	// fail, when set, is returned by every storage call.
	fail  error
	calls int
}

func newMemDB() *memDB {
	return &memDB{
		identities:  map[string]model.ExternalIdentity{},
		friendships: map[[2]uuid.UUID]bool{},
	}
}

type memSnapshot struct {
	users       []model.User
	identities  map[string]model.ExternalIdentity
	friendships map[[2]uuid.UUID]bool
	requests    []model.FriendRequest
	nextReqID   uint
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		identities:  map[string]model.ExternalIdentity{},
		friendships: map[[2]uuid.UUID]bool{},
		requests:    append([]model.FriendRequest(nil), m.requests...),
		nextReqID:   m.nextReqID,
	}
	for _, u := range m.users {
		s.users = append(s.users, *u)
	}
	for k, v := range m.identities {
		s.identities[k] = v
	}
	for k, v := range m.friendships {
		s.friendships[k] = v
	}
	return s
}

func (m *memDB) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = nil
	for i := range s.users {
		u := s.users[i]
		m.users = append(m.users, &u)
	}
	m.identities = s.identities
	m.friendships = s.friendships
	m.requests = s.requests
	m.nextReqID = s.nextReqID
}

func (m *memDB) transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memDB) begin() error {
	m.mu.Lock()
	m.calls++
	if m.fail != nil {
		err := m.fail
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memDB) storageCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memDB) findUser(pred func(*model.User) bool) *model.User {
	for _, u := range m.users {
		if pred(u) {
			return u
		}
	}
	return nil
}

// addUser inserts a user directly with a cheap password hash.
func (m *memDB) addUser(name, email, password string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := &model.User{ID: uuid.New(), Name: name, Email: email, PasswordHash: string(hash), CreatedAt: time.Now()}
	m.mu.Lock()
	m.users = append(m.users, u)
	m.mu.Unlock()
	cp := *u
	return &cp
}

func (m *memDB) pendingRequests(recipient uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, r := range m.requests {
		if r.RecipientID == recipient {
			out = append(out, r.SenderID)
		}
	}
	return out
}

func (m *memDB) areFriends(a, b uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.friendships[[2]uuid.UUID{a, b}]
}

func (m *memDB) friendsOf(id uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for k := range m.friendships {
		if k[0] == id {
			out = append(out, k[1])
		}
	}
	return out
}

// memUserRepo implements repository.UserRepository.
type memUserRepo struct{ db *memDB }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	if r.db.findUser(func(u *model.User) bool { return u.Email == user.Email || u.Name == user.Name }) != nil {
		return gorm.ErrDuplicatedKey
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	cp := *user
	r.db.users = append(r.db.users, &cp)
	return nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, update repository.ProfileUpdate) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	if update.Name != nil && r.db.findUser(func(u *model.User) bool { return u.ID != id && u.Name == *update.Name }) != nil {
		return gorm.ErrDuplicatedKey
	}
	existing := r.db.findUser(func(u *model.User) bool { return u.ID == id })
	if existing == nil {
		return nil
	}
	if update.Name != nil {
		existing.Name = *update.Name
	}
	if update.PasswordHash != nil {
		existing.PasswordHash = *update.PasswordHash
	}
	if update.SetProfilePic {
		existing.ProfilePic = update.ProfilePic
	}
	return nil
}

func (r *memUserRepo) lookup(pred func(*model.User) bool) (*model.User, error) {
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	u := r.db.findUser(pred)
	if u == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.lookup(func(u *model.User) bool { return u.ID == id })
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.lookup(func(u *model.User) bool { return u.Email == email })
}

func (r *memUserRepo) FindByName(_ context.Context, name string) (*model.User, error) {
	return r.lookup(func(u *model.User) bool { return u.Name == name })
}

func (r *memUserRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	// reverse insertion order so callers cannot rely on storage order
	var out []model.User
	for i := len(r.db.users) - 1; i >= 0; i-- {
		if containsID(ids, r.db.users[i].ID) {
			out = append(out, *r.db.users[i])
		}
	}
	return out, nil
}

func (r *memUserRepo) Search(_ context.Context, query string, exclude []uuid.UUID, limit int) ([]model.User, error) {
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	q := strings.ToLower(query)
	var out []model.User
	for _, u := range r.db.users {
		if len(out) == limit {
			break
		}
		if containsID(exclude, u.ID) {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUserRepo) SetResetToken(_ context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	u := r.db.findUser(func(u *model.User) bool { return u.ID == id })
	if u == nil {
		return nil
	}
	u.ResetTokenHash = &digest
	u.ResetTokenExpiresAt = &expiresAt
	return nil
}

func (r *memUserRepo) ConsumeResetToken(_ context.Context, email, digest, passwordHash string, now time.Time) (bool, error) {
	if err := r.db.begin(); err != nil {
		return false, err
	}
	defer r.db.mu.Unlock()
	u := r.db.findUser(func(u *model.User) bool {
		return u.Email == email && u.ResetTokenHash != nil && *u.ResetTokenHash == digest &&
			u.ResetTokenExpiresAt != nil && !u.ResetTokenExpiresAt.Before(now)
	})
	if u == nil {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	return true, nil
}

func (r *memUserRepo) ClearExpiredResetToken(_ context.Context, email string, now time.Time) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	u := r.db.findUser(func(u *model.User) bool {
		return u.Email == email && u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.Before(now)
	})
	if u != nil {
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
	}
	return nil
}

func identityKey(provider, externalID string) string {
	return provider + "|" + externalID
}

func (r *memUserRepo) FindExternalIdentity(_ context.Context, provider, externalID string) (*model.ExternalIdentity, error) {
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	identity, ok := r.db.identities[identityKey(provider, externalID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &identity, nil
}

func (r *memUserRepo) CreateExternalIdentity(_ context.Context, identity *model.ExternalIdentity) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	key := identityKey(identity.Provider, identity.ExternalID)
	if _, ok := r.db.identities[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.db.identities[key] = *identity
	return nil
}

func (r *memUserRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	return r.db.transaction(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

// memFriendRepo implements repository.FriendshipRepository.
type memFriendRepo struct {
	db *memDB
	// failAddFriendship makes AddFriendship fail to exercise rollback.
	failAddFriendship error
}

var _ repository.FriendshipRepository = (*memFriendRepo)(nil)

func (r *memFriendRepo) LockUsers(_ context.Context, ids ...uuid.UUID) ([]uuid.UUID, error) {
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	var out []uuid.UUID
	for _, u := range r.db.users {
		if containsID(ids, u.ID) {
			out = append(out, u.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (r *memFriendRepo) AreFriends(_ context.Context, userID, otherID uuid.UUID) (bool, error) {
	if err := r.db.begin(); err != nil {
		return false, err
	}
	defer r.db.mu.Unlock()
	return r.db.friendships[[2]uuid.UUID{userID, otherID}], nil
}

func (r *memFriendRepo) HasRequest(_ context.Context, recipientID, senderID uuid.UUID) (bool, error) {
	if err := r.db.begin(); err != nil {
		return false, err
	}
	defer r.db.mu.Unlock()
	for _, req := range r.db.requests {
		if req.RecipientID == recipientID && req.SenderID == senderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memFriendRepo) AddRequest(_ context.Context, recipientID, senderID uuid.UUID) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	for _, req := range r.db.requests {
		if req.RecipientID == recipientID && req.SenderID == senderID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.db.nextReqID++
	r.db.requests = append(r.db.requests, model.FriendRequest{
		ID:          r.db.nextReqID,
		RecipientID: recipientID,
		SenderID:    senderID,
	})
	return nil
}

func (r *memFriendRepo) DeleteRequest(_ context.Context, recipientID, senderID uuid.UUID) (bool, error) {
	if err := r.db.begin(); err != nil {
		return false, err
	}
	defer r.db.mu.Unlock()
	for i, req := range r.db.requests {
		if req.RecipientID == recipientID && req.SenderID == senderID {
			r.db.requests = append(r.db.requests[:i:i], r.db.requests[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memFriendRepo) AddFriendship(_ context.Context, userID, otherID uuid.UUID) error {
	if err := r.db.begin(); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	if r.failAddFriendship != nil {
		return r.failAddFriendship
	}
	r.db.friendships[[2]uuid.UUID{userID, otherID}] = true
	r.db.friendships[[2]uuid.UUID{otherID, userID}] = true
	return nil
}

func (r *memFriendRepo) ListFriendIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	var out []uuid.UUID
	for _, u := range r.db.users {
		if r.db.friendships[[2]uuid.UUID{userID, u.ID}] {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (r *memFriendRepo) ListRequestSenderIDs(_ context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	if err := r.db.begin(); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	var out []uuid.UUID
	for _, req := range r.db.requests {
		if req.RecipientID == recipientID {
			out = append(out, req.SenderID)
		}
	}
	return out, nil
}

func (r *memFriendRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.FriendshipRepository) error) error {
	return r.db.transaction(ctx, func(ctx context.Context) error { return fn(ctx, r) })
}

// fixture bundles the services over one memDB.
type fixture struct {
	db          *memDB
	users       *memUserRepo
	friendRepo  *memFriendRepo
	credentials *CredentialStore
	friends     FriendshipService
	search      SearchService
}

func newFixture() *fixture {
	db := newMemDB()
	users := &memUserRepo{db: db}
	friendRepo := &memFriendRepo{db: db}
	credentials := NewCredentialStore(users, auth.NewPasswordHasher(bcrypt.MinCost), time.Hour, nil)
	return &fixture{
		db:          db,
		users:       users,
		friendRepo:  friendRepo,
		credentials: credentials,
		friends:     NewFriendshipService(friendRepo, credentials, nil, nil),
		search:      NewSearchService(friendRepo, credentials),
	}
}
