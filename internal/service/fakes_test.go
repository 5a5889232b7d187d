package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/repository"
)

type inMemoryAccountRepo struct {
	mu      sync.Mutex
	nextID  uint
	byID    map[uint]*domain.Account
	failErr error
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{nextID: 1, byID: map[uint]*domain.Account{}}
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	cp.Roles = append(domain.RoleSet(nil), a.Roles...)
	cp.Interests = append(domain.StringList(nil), a.Interests...)
	if a.VerificationCode != nil {
		code := *a.VerificationCode
		cp.VerificationCode = &code
	}
	if a.VerificationCodeExpiry != nil {
		exp := *a.VerificationCodeExpiry
		cp.VerificationCodeExpiry = &exp
	}
	return &cp
}

func (r *inMemoryAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	for _, a := range r.byID {
		if a.Email == repository.NormalizeEmail(email) {
			return cloneAccount(a), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *inMemoryAccountRepo) FindByUsername(_ context.Context, username string, verifiedOnly bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.Account
	for _, a := range r.byID {
		if a.Username != repository.NormalizeUsername(username) || (verifiedOnly && !a.IsVerified) {
			continue
		}
		if found == nil || a.ID < found.ID {
			found = a
		}
	}
	if found == nil {
		return nil, repository.ErrAccountNotFound
	}
	return cloneAccount(found), nil
}

func (r *inMemoryAccountRepo) FindByID(_ context.Context, id uint) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *inMemoryAccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account.Email = repository.NormalizeEmail(account.Email)
	account.Username = repository.NormalizeUsername(account.Username)
	for _, a := range r.byID {
		if a.Email == account.Email {
			return repository.ErrAccountConflict
		}
	}
	account.ID = r.nextID
	r.nextID++
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	r.byID[account.ID] = cloneAccount(account)
	return nil
}

func (r *inMemoryAccountRepo) UpdateByID(_ context.Context, id uint, u repository.AccountUpdate) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	if (u.VerificationCode == nil) != (u.VerificationCodeExpiry == nil) {
		return nil, repository.ErrInvalidUpdate
	}
	if u.IsVerified != nil && *u.IsVerified && !a.IsVerified {
		for _, other := range r.byID {
			if other.ID != id && other.IsVerified && other.Username == a.Username {
				return nil, repository.ErrAccountConflict
			}
		}
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Bio != nil {
		a.Bio = *u.Bio
	}
	if u.Interests != nil {
		a.Interests = append(domain.StringList(nil), (*u.Interests)...)
	}
	if u.Username != nil {
		a.Username = repository.NormalizeUsername(*u.Username)
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.IsVerified != nil {
		a.IsVerified = *u.IsVerified
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.ClearCode {
		a.VerificationCode = nil
		a.VerificationCodeExpiry = nil
	}
	if u.VerificationCode != nil {
		code := *u.VerificationCode
		exp := *u.VerificationCodeExpiry
		a.VerificationCode = &code
		a.VerificationCodeExpiry = &exp
	}
	a.UpdatedAt = time.Now().UTC()
	return cloneAccount(a), nil
}

func (r *inMemoryAccountRepo) ListPaged(_ context.Context, q repository.AccountListQuery) (repository.PageResult[domain.Account], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.Account
	search := strings.ToLower(q.Search)
	for id := uint(1); id < r.nextID; id++ {
		a, ok := r.byID[id]
		if !ok {
			continue
		}
		if search != "" && !strings.Contains(a.Username, search) && !strings.Contains(a.Email, search) && !strings.Contains(strings.ToLower(a.Name), search) {
			continue
		}
		items = append(items, *cloneAccount(a))
	}
	return pageOf(items, q.PageRequest), nil
}

func (r *inMemoryAccountRepo) get(id uint) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAccount(r.byID[id])
}

// staleUsernameRepo answers username lookups as if no account were verified
// yet, the view a request has while a concurrent verification commits.
type staleUsernameRepo struct {
	*inMemoryAccountRepo
}

func (staleUsernameRepo) FindByUsername(context.Context, string, bool) (*domain.Account, error) {
	return nil, repository.ErrAccountNotFound
}

type followEdge struct{ from, to uint }

type inMemoryFollowRepo struct {
	mu       sync.Mutex
	accounts *inMemoryAccountRepo
	edges    []followEdge
}

func newInMemoryFollowRepo(accounts *inMemoryAccountRepo) *inMemoryFollowRepo {
	return &inMemoryFollowRepo{accounts: accounts}
}

func (r *inMemoryFollowRepo) indexLocked(from, to uint) int {
	for i, e := range r.edges {
		if e.from == from && e.to == to {
			return i
		}
	}
	return -1
}

func (r *inMemoryFollowRepo) Follow(_ context.Context, followerID, followingID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(followerID, followingID) >= 0 {
		return repository.ErrAlreadyFollowing
	}
	r.edges = append(r.edges, followEdge{from: followerID, to: followingID})
	return nil
}

func (r *inMemoryFollowRepo) Unfollow(_ context.Context, followerID, followingID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(followerID, followingID)
	if i < 0 {
		return false, nil
	}
	r.edges = append(r.edges[:i], r.edges[i+1:]...)
	return true, nil
}

func (r *inMemoryFollowRepo) IsFollowing(_ context.Context, followerID, followingID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(followerID, followingID) >= 0, nil
}

func (r *inMemoryFollowRepo) side(userID uint, followers bool) []domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Account
	for i := len(r.edges) - 1; i >= 0; i-- {
		e := r.edges[i]
		var other uint
		switch {
		case followers && e.to == userID:
			other = e.from
		case !followers && e.from == userID:
			other = e.to
		default:
			continue
		}
		a := r.accounts.get(other)
		if a.Status == domain.AccountStatusActive {
			out = append(out, *a)
		}
	}
	return out
}

func (r *inMemoryFollowRepo) CountFollowers(_ context.Context, userID uint) (int64, error) {
	return int64(len(r.side(userID, true))), nil
}

func (r *inMemoryFollowRepo) CountFollowing(_ context.Context, userID uint) (int64, error) {
	return int64(len(r.side(userID, false))), nil
}

func (r *inMemoryFollowRepo) ListFollowers(_ context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Account], error) {
	return pageOf(r.side(userID, true), page), nil
}

func (r *inMemoryFollowRepo) ListFollowing(_ context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Account], error) {
	return pageOf(r.side(userID, false), page), nil
}

func pageOf(items []domain.Account, req repository.PageRequest) repository.PageResult[domain.Account] {
	page, size := req.Page, req.PageSize
	if page < 1 {
		page = repository.DefaultPage
	}
	if size < 1 {
		size = repository.DefaultPageSize
	}
	total := int64(len(items))
	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))
	return repository.PageResult[domain.Account]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}
}

type inMemorySessionRepo struct {
	mu         sync.Mutex
	nextID     uint
	byID       map[uint]*domain.Session
	replaceErr error
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{nextID: 1, byID: map[uint]*domain.Session{}}
}

func (r *inMemorySessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(s)
	return nil
}

func (r *inMemorySessionRepo) insertLocked(s *domain.Session) {
	s.ID = r.nextID
	r.nextID++
	cp := *s
	r.byID[cp.ID] = &cp
}

func (r *inMemorySessionRepo) FindByTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.RefreshTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *inMemorySessionRepo) DeleteByID(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *inMemorySessionRepo) DeleteByUserID(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteUserLocked(userID), nil
}

func (r *inMemorySessionRepo) deleteUserLocked(userID uint) int64 {
	var n int64
	for id, s := range r.byID {
		if s.UserID == userID {
			delete(r.byID, id)
			n++
		}
	}
	return n
}

func (r *inMemorySessionRepo) ReplaceForUser(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.deleteUserLocked(s.UserID)
	r.insertLocked(s)
	return nil
}

func (r *inMemorySessionRepo) CleanupExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if !s.ExpiresAt.After(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) forUser(userID uint) []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, s := range r.byID {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

type sentCode struct {
	Kind string
	To   Recipient
	Code string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, to Recipient, code string, _ time.Duration) error {
	return n.record("verification", to, code)
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to Recipient, code string, _ time.Duration) error {
	return n.record("password_reset", to, code)
}

func (n *recordingNotifier) record(kind string, to Recipient, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentCode{Kind: kind, To: to, Code: code})
	return nil
}

func (n *recordingNotifier) last() (sentCode, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentCode{}, false
	}
	return n.sent[len(n.sent)-1], true
}

var errStoreDown = errors.New("store unavailable")
