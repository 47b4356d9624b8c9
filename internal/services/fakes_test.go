package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/nutriplan-app/apiserver/internal/mailer"
	"github.com/nutriplan-app/apiserver/internal/store"
	"github.com/nutriplan-app/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByVerificationCode(_ context.Context, code string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.VerificationCode != nil && *user.VerificationCode == code {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByResetCode(_ context.Context, code string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ResetCode != nil && *user.ResetCode == code {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) SetRefreshToken(_ context.Context, id int, digest string, expires time.Time) error {
	return f.mutate(id, func(u *types.User) {
		u.RefreshTokenHash = &digest
		u.RefreshTokenExpires = &expires
	})
}

func (f *fakeUserRepo) ClearRefreshToken(_ context.Context, id int) error {
	return f.mutate(id, func(u *types.User) {
		u.RefreshTokenHash = nil
		u.RefreshTokenExpires = nil
	})
}

func (f *fakeUserRepo) SetVerificationCode(_ context.Context, id int, code string, expires time.Time) error {
	return f.mutate(id, func(u *types.User) {
		u.VerificationCode = &code
		u.VerificationExpires = &expires
	})
}

func (f *fakeUserRepo) MarkVerified(_ context.Context, id int) error {
	return f.mutate(id, func(u *types.User) {
		u.IsVerified = true
		u.VerificationCode = nil
		u.VerificationExpires = nil
	})
}

func (f *fakeUserRepo) SetResetCode(_ context.Context, id int, code string, expires time.Time) error {
	return f.mutate(id, func(u *types.User) {
		u.ResetCode = &code
		u.ResetExpires = &expires
	})
}

func (f *fakeUserRepo) ResetPassword(_ context.Context, id int, passwordHash string) error {
	return f.mutate(id, func(u *types.User) {
		u.PasswordHash = passwordHash
		u.ResetCode = nil
		u.ResetExpires = nil
	})
}

func (f *fakeUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]types.User, 0, len(f.users))
	for _, user := range f.users {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) mutate(id int, fn func(*types.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now()
	f.users[id] = user
	return nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	messages []mailer.Message
	fail     bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msg mailer.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("dispatch failed")
	}
	d.messages = append(d.messages, msg)
	return nil
}

func (d *fakeDispatcher) sent() []mailer.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]mailer.Message(nil), d.messages...)
}

type fakeAudit struct {
	mu     sync.Mutex
	events []types.AuditEvent
}

func (a *fakeAudit) Record(_ context.Context, event types.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) byType(eventType string) []types.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []types.AuditEvent
	for _, event := range a.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fakePlanRepo struct {
	mu      sync.Mutex
	nextID  int
	plans   map[int]types.MealPlan
	days    map[int][]types.MealPlanDay
	addFail bool
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{
		plans: make(map[int]types.MealPlan),
		days:  make(map[int][]types.MealPlanDay),
	}
}

func (f *fakePlanRepo) Create(_ context.Context, plan types.MealPlan) (types.MealPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	plan.ID = f.nextID
	plan.CreatedAt = time.Now()
	f.plans[plan.ID] = plan
	return plan, nil
}

func (f *fakePlanRepo) Get(_ context.Context, id int) (types.MealPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.plans[id]
	if !ok {
		return types.MealPlan{}, store.ErrNotFound
	}
	return plan, nil
}

func (f *fakePlanRepo) ListByUser(_ context.Context, userID, offset, limit int) ([]types.MealPlan, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.MealPlan
	for _, plan := range f.plans {
		if plan.UserID == userID {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (f *fakePlanRepo) AddDays(_ context.Context, planID int, days []types.MealPlanDay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addFail {
		return errors.New("insert failed")
	}
	f.days[planID] = append(f.days[planID], days...)
	return nil
}

func (f *fakePlanRepo) GetDays(_ context.Context, planID int) ([]types.MealPlanDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.MealPlanDay(nil), f.days[planID]...), nil
}

func (f *fakePlanRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.plans[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.plans, id)
	delete(f.days, id)
	return nil
}

type fakeGenerator struct {
	days []types.MealPlanDay
	err  error
}

func (g *fakeGenerator) Generate(_ context.Context, _ types.MealPlanRequest) ([]types.MealPlanDay, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.days, nil
}

type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) EnsureBucket(_ context.Context) error { return nil }

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "test-bucket" }
