package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"doulitsa/internal/fsm"
	"doulitsa/internal/models"
	"doulitsa/internal/repositories"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type sentMail struct {
	Template string
	To       string
	Admin    bool
	Data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Deliver(template, to string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Template: template, To: to, Data: data})
}

func (m *fakeMailer) DeliverAdmin(template, replyTo string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Template: template, To: replyTo, Admin: true, Data: data})
}

type pushCall struct {
	UserID int64
	Title  string
	Body   string
	Data   map[string]string
}

type fakePusher struct {
	calls   []pushCall
	devices map[int64]int
}

func (p *fakePusher) NotifyUser(_ context.Context, userID int64, title, body string, data map[string]string) int {
	p.calls = append(p.calls, pushCall{UserID: userID, Title: title, Body: body, Data: data})
	return p.devices[userID]
}

type fakeUploader struct {
	uploaded []string
	deleted  []string
	err      error
}

func (u *fakeUploader) UploadImage(_ context.Context, _ []byte, folder string) (string, string, error) {
	if u.err != nil {
		return "", "", u.err
	}
	key := folder + "/" + string(rune('a'+len(u.uploaded))) + ".jpg"
	u.uploaded = append(u.uploaded, key)
	return key, "https://cdn.test/" + key, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.deleted = append(u.deleted, key)
	return nil
}

// fakeUsers is an in-memory user table with sessions and codes.
type fakeUsers struct {
	users    map[int64]models.User
	sessions map[string]models.Session
	codes    []models.VerificationCode
	nextID   int64
	// onDelete mimics ON DELETE CASCADE in other tables.
	onDelete func(id int64)
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[int64]models.User{}, sessions: map[string]models.Session{}}
	for _, u := range users {
		f.users[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) find(match func(models.User) bool) (models.User, error) {
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, models.ErrUserNotFound
}

func (f *fakeUsers) CreateUser(_ context.Context, u models.User) (models.User, error) {
	for _, other := range f.users {
		if other.Email == u.Email {
			return models.User{}, models.ErrDuplicateEmail
		}
		if other.Username == u.Username {
			return models.User{}, models.ErrDuplicateUsername
		}
	}
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Username == username })
}

func (f *fakeUsers) GetUserByGoogleSub(_ context.Context, sub string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.GoogleSub != nil && *u.GoogleSub == sub })
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []int64) (map[int64]models.User, error) {
	out := map[int64]models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	_, err := f.find(func(u models.User) bool { return u.Username == username })
	return err == nil, nil
}

func (f *fakeUsers) update(id int64, fn func(*models.User)) error {
	u, ok := f.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	fn(&u)
	f.users[id] = u
	return nil
}

func (f *fakeUsers) SetConfirmed(_ context.Context, id int64) error {
	return f.update(id, func(u *models.User) { u.Confirmed = true })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	return f.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsers) UpdateAccount(_ context.Context, id int64, displayName, phone string) error {
	return f.update(id, func(u *models.User) { u.DisplayName, u.Phone = displayName, phone })
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	return f.update(id, func(u *models.User) { u.LastLoginAt = &at })
}

func (f *fakeUsers) LinkGoogle(_ context.Context, id int64, sub string) error {
	return f.update(id, func(u *models.User) { u.GoogleSub = &sub })
}

func (f *fakeUsers) SetRole(_ context.Context, id int64, role string) error {
	return f.update(id, func(u *models.User) { u.Role = role })
}

func (f *fakeUsers) SetBlocked(_ context.Context, id int64, blocked bool) error {
	return f.update(id, func(u *models.User) { u.Blocked = blocked })
}

func (f *fakeUsers) DeleteUser(_ context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return models.ErrUserNotFound
	}
	delete(f.users, id)
	if f.onDelete != nil {
		f.onDelete(id)
	}
	return nil
}

func (f *fakeUsers) ListUsers(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range f.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeUsers) CountUsers(_ context.Context) (int, int, error) {
	blocked := 0
	for _, u := range f.users {
		if u.Blocked {
			blocked++
		}
	}
	return len(f.users), blocked, nil
}

func (f *fakeUsers) CreateSession(_ context.Context, s models.Session) error {
	if u, ok := f.users[s.UserID]; ok {
		s.Role = u.Role
	}
	f.sessions[s.RefreshToken] = s
	return nil
}

func (f *fakeUsers) GetSessionByToken(_ context.Context, token string) (models.Session, error) {
	s, ok := f.sessions[token]
	if !ok || f.users[s.UserID].Blocked {
		return models.Session{}, models.ErrSessionNotFound
	}
	s.Role = f.users[s.UserID].Role
	return s, nil
}

func (f *fakeUsers) DeleteSession(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeUsers) DeleteUserSessions(_ context.Context, userID int64) error {
	for k, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, k)
		}
	}
	return nil
}

func (f *fakeUsers) CreateCode(_ context.Context, c models.VerificationCode) error {
	c.ID = int64(len(f.codes) + 1)
	f.codes = append(f.codes, c)
	return nil
}

func (f *fakeUsers) GetActiveCode(_ context.Context, userID int64, purpose, code string, now time.Time) (models.VerificationCode, error) {
	for _, c := range f.codes {
		if c.UserID == userID && c.Purpose == purpose && c.Code == code && c.UsedAt == nil && c.ExpiresAt.After(now) {
			return c, nil
		}
	}
	return models.VerificationCode{}, models.ErrCodeNotFound
}

func (f *fakeUsers) MarkCodeUsed(_ context.Context, id int64) error {
	for i := range f.codes {
		if f.codes[i].ID == id {
			now := testNow
			f.codes[i].UsedAt = &now
		}
	}
	return nil
}

// lastCode returns the newest code sent for purpose.
func (f *fakeUsers) lastCode(purpose string) string {
	for i := len(f.codes) - 1; i >= 0; i-- {
		if f.codes[i].Purpose == purpose {
			return f.codes[i].Code
		}
	}
	return ""
}

type fakeTaxonomy struct {
	// parents maps level to child id to parent id.
	parents map[string]map[int64]int64
}

func newFakeTaxonomy() *fakeTaxonomy {
	return &fakeTaxonomy{parents: map[string]map[int64]int64{
		repositories.LevelSubcategory: {10: 1, 11: 1, 20: 2},
		repositories.LevelSubdivision: {100: 10, 101: 10, 200: 20},
	}}
}

func (t *fakeTaxonomy) Parent(_ context.Context, level string, id int64) (int64, error) {
	p, ok := t.parents[level][id]
	if !ok {
		return 0, models.ErrCategoryNotFound
	}
	return p, nil
}

type fakeSubs struct {
	subs map[int64]models.Subscription
}

func newFakeSubs(subs ...models.Subscription) *fakeSubs {
	f := &fakeSubs{subs: map[int64]models.Subscription{}}
	for _, s := range subs {
		f.subs[s.UserID] = s
	}
	return f
}

func (f *fakeSubs) GetByUser(_ context.Context, userID int64) (models.Subscription, error) {
	s, ok := f.subs[userID]
	if !ok {
		return models.Subscription{}, models.ErrNoRecord
	}
	return s, nil
}

func (f *fakeSubs) Activate(_ context.Context, userID int64, plan string, periodEnd time.Time) (models.Subscription, error) {
	s := f.subs[userID]
	if s.ID == 0 {
		s.ID = userID
	}
	s.UserID, s.Plan, s.Status, s.CurrentPeriodEnd = userID, plan, models.SubscriptionActive, &periodEnd
	f.subs[userID] = s
	return s, nil
}

func (f *fakeSubs) SetStatus(_ context.Context, id int64, status string) error {
	for uid, s := range f.subs {
		if s.ID == id {
			s.Status = status
			f.subs[uid] = s
			return nil
		}
	}
	return models.ErrNoRecord
}

func (f *fakeSubs) ListDue(_ context.Context, now time.Time) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status != models.SubscriptionExpired && s.CurrentPeriodEnd != nil && !s.CurrentPeriodEnd.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	profiles   map[int64]models.Profile
	unfeatured []int64
	refreshed  []int64
	// failUnfeature is returned once by UnfeatureUser.
	failUnfeature error
}

func newFakeProfiles(ps ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[int64]models.Profile{}}
	for _, p := range ps {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID int64) (models.Profile, error) {
	for _, p := range f.profiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	return models.Profile{}, models.ErrProfileNotFound
}

func (f *fakeProfiles) GetByUsername(_ context.Context, username string) (models.Profile, error) {
	for _, p := range f.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return models.Profile{}, models.ErrProfileNotFound
}

func (f *fakeProfiles) RefreshRating(_ context.Context, id int64) (models.RatingSummary, error) {
	f.refreshed = append(f.refreshed, id)
	return models.RatingSummary{}, nil
}

func (f *fakeProfiles) UnfeatureUser(_ context.Context, userID int64) error {
	if err := f.failUnfeature; err != nil {
		f.failUnfeature = nil
		return err
	}
	f.unfeatured = append(f.unfeatured, userID)
	return nil
}

func (f *fakeProfiles) ListByIDs(_ context.Context, ids []int64) ([]models.Profile, error) {
	var out []models.Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := f.profiles[id]
	return ok, nil
}

// fakeServices keeps listings in memory and checks status moves with the
// same transition table as the database layer.
type fakeServices struct {
	services  map[int64]models.Service
	nextID    int64
	refreshed []int64
}

func newFakeServices(items ...models.Service) *fakeServices {
	f := &fakeServices{services: map[int64]models.Service{}}
	for _, s := range items {
		f.services[s.ID] = s
		if s.ID > f.nextID {
			f.nextID = s.ID
		}
	}
	return f
}

func (f *fakeServices) CreateService(_ context.Context, s models.Service) (models.Service, error) {
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = testNow
	f.services[s.ID] = s
	return s, nil
}

func (f *fakeServices) UpdateService(_ context.Context, s models.Service, fromStatus string) (models.Service, error) {
	cur, ok := f.services[s.ID]
	if !ok {
		return models.Service{}, models.ErrServiceNotFound
	}
	if cur.Status != fromStatus {
		return models.Service{}, models.ErrStatusChanged
	}
	if !fsm.Services.CanTransition(fromStatus, s.Status) {
		return models.Service{}, fsm.ErrInvalidTransition
	}
	s.ProfileID, s.UserID, s.Slug, s.CreatedAt = cur.ProfileID, cur.UserID, cur.Slug, cur.CreatedAt
	f.services[s.ID] = s
	return s, nil
}

func (f *fakeServices) TransitionStatus(_ context.Context, id int64, from, to string, reason *string) error {
	cur, ok := f.services[id]
	if !ok {
		return models.ErrServiceNotFound
	}
	if !fsm.Services.CanTransition(from, to) {
		return fsm.ErrInvalidTransition
	}
	if cur.Status != from {
		return models.ErrStatusChanged
	}
	cur.Status = to
	cur.RejectionReason = reason
	f.services[id] = cur
	return nil
}

func (f *fakeServices) GetServiceByID(_ context.Context, id int64) (models.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return models.Service{}, models.ErrServiceNotFound
	}
	return s, nil
}

func (f *fakeServices) GetServiceBySlug(_ context.Context, slug string) (models.Service, error) {
	for _, s := range f.services {
		if s.Slug == slug {
			return s, nil
		}
	}
	return models.Service{}, models.ErrServiceNotFound
}

func (f *fakeServices) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, s := range f.services {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeServices) sorted(keep func(models.Service) bool) []models.Service {
	var out []models.Service
	for _, s := range f.services {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeServices) ListServices(_ context.Context, filter models.ServiceFilter, publicOnly bool) ([]models.Service, int, error) {
	out := f.sorted(func(s models.Service) bool {
		if publicOnly && s.Status != models.ServiceStatusPublished {
			return false
		}
		return filter.Status == "" || s.Status == filter.Status
	})
	return out, len(out), nil
}

func (f *fakeServices) ListServicesByUser(_ context.Context, userID int64) ([]models.Service, error) {
	return f.sorted(func(s models.Service) bool { return s.UserID == userID }), nil
}

func (f *fakeServices) ListServicesByIDs(_ context.Context, ids []int64) ([]models.Service, error) {
	var out []models.Service
	for _, id := range ids {
		if s, ok := f.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeServices) CountActiveListings(_ context.Context, userID int64) (int, error) {
	return len(f.sorted(func(s models.Service) bool {
		return s.UserID == userID && (s.Status == models.ServiceStatusPending ||
			s.Status == models.ServiceStatusPublished || s.Status == models.ServiceStatusInactive)
	})), nil
}

func (f *fakeServices) PublishedIDsByUser(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for _, s := range f.sorted(func(s models.Service) bool {
		return s.UserID == userID && s.Status == models.ServiceStatusPublished
	}) {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (f *fakeServices) RefreshRating(_ context.Context, id int64) (models.RatingSummary, error) {
	f.refreshed = append(f.refreshed, id)
	return models.RatingSummary{}, nil
}

func (f *fakeServices) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := f.services[id]
	return ok, nil
}

type fakeBookings struct {
	bookings  map[int64]models.Booking
	completed map[[2]int64]bool
	nextID    int64
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: map[int64]models.Booking{}, completed: map[[2]int64]bool{}}
}

func (f *fakeBookings) CreateBooking(_ context.Context, b models.Booking) (models.Booking, error) {
	f.nextID++
	b.ID = f.nextID
	b.Status = models.BookingStatusRequested
	b.CreatedAt = testNow
	f.bookings[b.ID] = b
	return b, nil
}

func (f *fakeBookings) GetBookingByID(_ context.Context, id int64) (models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return models.Booking{}, models.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeBookings) list(match func(models.Booking) bool) ([]models.Booking, int, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if match(b) {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (f *fakeBookings) ListByClient(_ context.Context, clientID int64, _, _ int) ([]models.Booking, int, error) {
	return f.list(func(b models.Booking) bool { return b.ClientID == clientID })
}

func (f *fakeBookings) ListByProvider(_ context.Context, providerID int64, _, _ int) ([]models.Booking, int, error) {
	return f.list(func(b models.Booking) bool { return b.ProviderID == providerID })
}

func (f *fakeBookings) HasOpen(_ context.Context, serviceID, clientID int64) (bool, error) {
	for _, b := range f.bookings {
		if b.ServiceID == serviceID && b.ClientID == clientID && b.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookings) HasCompleted(_ context.Context, serviceID, clientID int64) (bool, error) {
	return f.completed[[2]int64{serviceID, clientID}], nil
}

func (f *fakeBookings) TransitionStatus(_ context.Context, id int64, from, to string) error {
	b, ok := f.bookings[id]
	if !ok {
		return models.ErrBookingNotFound
	}
	if !fsm.Bookings.CanTransition(from, to) {
		return fsm.ErrInvalidTransition
	}
	if b.Status != from {
		return models.ErrStatusChanged
	}
	b.Status = to
	f.bookings[id] = b
	return nil
}

type fakeReviews struct {
	reviews map[int64]models.Review
	nextID  int64
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{reviews: map[int64]models.Review{}}
}

func (f *fakeReviews) CreateReview(_ context.Context, rv models.Review) (models.Review, error) {
	for _, r := range f.reviews {
		if r.ServiceID == rv.ServiceID && r.UserID == rv.UserID {
			return models.Review{}, models.ErrAlreadyReviewed
		}
	}
	f.nextID++
	rv.ID = f.nextID
	rv.CreatedAt = testNow.Add(-2 * time.Hour)
	f.reviews[rv.ID] = rv
	return rv, nil
}

func (f *fakeReviews) GetReviewByID(_ context.Context, id int64) (models.Review, error) {
	rv, ok := f.reviews[id]
	if !ok {
		return models.Review{}, models.ErrReviewNotFound
	}
	return rv, nil
}

func (f *fakeReviews) UpdateReview(_ context.Context, id int64, rating int, comment string) (models.Review, error) {
	rv, ok := f.reviews[id]
	if !ok {
		return models.Review{}, models.ErrReviewNotFound
	}
	rv.Rating, rv.Comment = rating, comment
	f.reviews[id] = rv
	return rv, nil
}

func (f *fakeReviews) DeleteReview(_ context.Context, id int64) error {
	if _, ok := f.reviews[id]; !ok {
		return models.ErrReviewNotFound
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeReviews) TargetsByAuthor(_ context.Context, userID int64) ([]models.ReviewTarget, error) {
	seen := map[models.ReviewTarget]bool{}
	var out []models.ReviewTarget
	for _, rv := range f.reviews {
		t := models.ReviewTarget{ServiceID: rv.ServiceID, ProfileID: rv.ProfileID}
		if rv.UserID == userID && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// deleteByAuthor is the cascade of a deleted account.
func (f *fakeReviews) deleteByAuthor(userID int64) {
	for id, rv := range f.reviews {
		if rv.UserID == userID {
			delete(f.reviews, id)
		}
	}
}

func (f *fakeReviews) list(match func(models.Review) bool) ([]models.Review, int, error) {
	var out []models.Review
	for _, rv := range f.reviews {
		if match(rv) {
			out = append(out, rv)
		}
	}
	return out, len(out), nil
}

func (f *fakeReviews) ListByService(_ context.Context, serviceID int64, _, _ int) ([]models.Review, int, error) {
	return f.list(func(rv models.Review) bool { return rv.ServiceID == serviceID })
}

func (f *fakeReviews) ListByProfile(_ context.Context, profileID int64, _, _ int) ([]models.Review, int, error) {
	return f.list(func(rv models.Review) bool { return rv.ProfileID == profileID })
}

type fakeChats struct {
	chats    map[int64][]int64
	messages map[int64]models.Message
	read     map[[2]int64]time.Time
	nextChat int64
	nextMsg  int64
}

func newFakeChats() *fakeChats {
	return &fakeChats{chats: map[int64][]int64{}, messages: map[int64]models.Message{}, read: map[[2]int64]time.Time{}}
}

func (f *fakeChats) GetOrCreateDirect(_ context.Context, a, b int64, serviceID *int64) (models.Chat, error) {
	for id, members := range f.chats {
		if (members[0] == a && members[1] == b) || (members[0] == b && members[1] == a) {
			return models.Chat{ID: id, Members: members}, nil
		}
	}
	f.nextChat++
	f.chats[f.nextChat] = []int64{a, b}
	return models.Chat{ID: f.nextChat, ServiceID: serviceID, Members: []int64{a, b}}, nil
}

func (f *fakeChats) GetChat(_ context.Context, id int64) (models.Chat, error) {
	members, ok := f.chats[id]
	if !ok {
		return models.Chat{}, models.ErrChatNotFound
	}
	return models.Chat{ID: id, Members: members}, nil
}

func (f *fakeChats) MemberIDs(_ context.Context, chatID int64) ([]int64, error) {
	return f.chats[chatID], nil
}

func (f *fakeChats) IsMember(_ context.Context, chatID, userID int64) (bool, error) {
	for _, id := range f.chats[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeChats) ListChats(_ context.Context, userID int64) ([]models.Chat, error) {
	var out []models.Chat
	for id, members := range f.chats {
		for i, m := range members {
			if m == userID {
				other := members[1-i]
				out = append(out, models.Chat{ID: id, Members: members, Other: &models.ChatMember{UserID: other}})
			}
		}
	}
	return out, nil
}

func (f *fakeChats) ListMessages(_ context.Context, chatID, before int64, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.ChatID == chatID && (before == 0 || m.ID < before) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeChats) CreateMessage(_ context.Context, chatID, authorID int64, content string) (models.Message, error) {
	f.nextMsg++
	m := models.Message{ID: f.nextMsg, ChatID: chatID, AuthorID: authorID, Content: content, CreatedAt: testNow}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeChats) GetMessage(_ context.Context, id int64) (models.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return models.Message{}, models.ErrMessageNotFound
	}
	return m, nil
}

func (f *fakeChats) UpdateMessage(_ context.Context, id int64, content string, at time.Time) (models.Message, error) {
	m, ok := f.messages[id]
	if !ok || m.Deleted() {
		return models.Message{}, models.ErrMessageNotFound
	}
	m.Content, m.EditedAt = content, &at
	f.messages[id] = m
	return m, nil
}

func (f *fakeChats) SoftDeleteMessage(_ context.Context, id int64, at time.Time) error {
	m, ok := f.messages[id]
	if !ok || m.Deleted() {
		return models.ErrMessageNotFound
	}
	m.Content, m.DeletedAt = "", &at
	f.messages[id] = m
	return nil
}

func (f *fakeChats) MarkRead(ctx context.Context, chatID, userID int64, at time.Time) error {
	if ok, _ := f.IsMember(ctx, chatID, userID); !ok {
		return models.ErrChatNotFound
	}
	f.read[[2]int64{chatID, userID}] = at
	return nil
}

func (f *fakeChats) UnreadTotal(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, m := range f.messages {
		if m.AuthorID == userID || m.Deleted() {
			continue
		}
		if at, ok := f.read[[2]int64{m.ChatID, userID}]; ok && !m.CreatedAt.After(at) {
			continue
		}
		for _, id := range f.chats[m.ChatID] {
			if id == userID {
				n++
			}
		}
	}
	return n, nil
}

var errBoom = errors.New("boom")
