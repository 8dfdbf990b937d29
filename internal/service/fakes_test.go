package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/provider"
	"github.com/sakif/soundscape/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixedNow is "today" for every service test: 2026-06-01 12:00 UTC.
var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// fakeStore is an in-memory implementation of every repository interface.
// It keeps the contracts the service layer relies on (NotFound/Conflict
// errors, upsert by provider id, one vote per voter) and nothing more.
type fakeStore struct {
	mu sync.Mutex

	nextID    int
	users     map[string]model.User
	events    []model.Event
	bookmarks []model.Bookmark
	posts     []model.Post
	votes     []model.Vote

	// set to a non-nil error to simulate a database failure
	upsertEventsErr error
	upsertCalls     int
}

var (
	_ repository.UserRepository     = (*fakeStore)(nil)
	_ repository.EventRepository    = (*fakeStore)(nil)
	_ repository.BookmarkRepository = (*fakeStore)(nil)
	_ repository.PostRepository     = (*fakeStore)(nil)
	_ repository.VoteRepository     = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]model.User)}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.ConflictMessage("User already exists")
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = fixedNow
	user.UpdatedAt = fixedNow
	f.users[user.ID] = *user
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeStore) findUser(match func(model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", "")
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(email)
	return f.findUser(func(u model.User) bool { return u.Email == email })
}

func (f *fakeStore) GetUserByVerificationToken(_ context.Context, token string) (*model.User, error) {
	return f.findUser(func(u model.User) bool { return token != "" && u.VerificationToken == token })
}

func (f *fakeStore) GetUserByResetToken(_ context.Context, token string, now time.Time) (*model.User, error) {
	return f.findUser(func(u model.User) bool {
		return token != "" && u.ResetToken == token &&
			u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(now)
	})
}

func (f *fakeStore) UpdateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	user.Email = strings.ToLower(user.Email)
	for id, u := range f.users {
		if id != user.ID && u.Email == user.Email {
			return apperror.ConflictMessage("Email already in use")
		}
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeStore) user(t *testing.T, id string) model.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	require.True(t, ok, "user %s not stored", id)
	return u
}

// --- events ---

func (f *fakeStore) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, apperror.NotFound("event", id)
}

func (f *fakeStore) CreateEvent(_ context.Context, event *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.ID == "" {
		event.ID = f.id("event")
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeStore) SearchEvents(_ context.Context, filter model.EventFilter) ([]model.Event, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(filter.Query)
	var matched []model.Event
	for _, e := range f.events {
		if q != "" && !strings.Contains(strings.ToLower(e.Artist), q) &&
			!strings.Contains(strings.ToLower(e.Venue), q) {
			continue
		}
		if len(filter.Genres) > 0 && !slices.Contains(filter.Genres, e.Genre) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Date.Before(matched[j].Date) })

	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (f *fakeStore) ListGenres(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var genres []string
	for _, e := range f.events {
		if e.Genre != "" && !slices.Contains(genres, e.Genre) {
			genres = append(genres, e.Genre)
		}
	}
	sort.Strings(genres)
	return genres, nil
}

func (f *fakeStore) UpsertEvents(_ context.Context, events []model.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertEventsErr != nil {
		return 0, f.upsertEventsErr
	}
	inserted := 0
	for i := range events {
		e := &events[i]
		idx := slices.IndexFunc(f.events, func(s model.Event) bool { return s.ProviderID == e.ProviderID })
		if idx >= 0 {
			e.ID = f.events[idx].ID
			f.events[idx] = *e
			continue
		}
		if e.ID == "" {
			e.ID = f.id("event")
		}
		f.events = append(f.events, *e)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) EventIDsByProviderIDs(_ context.Context, providerIDs []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := map[string]string{}
	for _, e := range f.events {
		if slices.Contains(providerIDs, e.ProviderID) {
			ids[e.ProviderID] = e.ID
		}
	}
	return ids, nil
}

func (f *fakeStore) UpcomingEventsByGenres(_ context.Context, from time.Time, genres []string) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, e := range f.events {
		if e.Date.Before(from) {
			continue
		}
		for _, g := range genres {
			if strings.Contains(strings.ToLower(e.Genre), strings.ToLower(g)) {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) RandomUpcomingEvents(_ context.Context, from time.Time, limit int, excludeIDs []string) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, e := range f.events {
		if len(out) == limit {
			break
		}
		if e.Date.Before(from) || slices.Contains(excludeIDs, e.ID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) addEvent(t *testing.T, artist, genre string, date time.Time) model.Event {
	t.Helper()
	e := model.Event{
		ProviderID: "tm-" + artist,
		Artist:     artist,
		Venue:      artist + " Hall",
		City:       "Austin",
		Genre:      genre,
		Date:       date,
	}
	require.NoError(t, f.CreateEvent(context.Background(), &e))
	return e
}

// --- bookmarks ---

func (f *fakeStore) ListBookmarks(_ context.Context, userID string) ([]model.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Bookmark
	for _, b := range f.bookmarks {
		if b.UserID != userID {
			continue
		}
		for _, e := range f.events {
			if e.ID == b.EventID {
				ev := e
				b.Event = &ev
				out = append(out, b)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Event.Date.Before(out[j].Event.Date) })
	return out, nil
}

func (f *fakeStore) DeleteBookmarksBefore(_ context.Context, userID string, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.bookmarks)
	f.bookmarks = slices.DeleteFunc(f.bookmarks, func(b model.Bookmark) bool {
		if b.UserID != userID {
			return false
		}
		for _, e := range f.events {
			if e.ID == b.EventID {
				return e.Date.Before(cutoff)
			}
		}
		return false
	})
	return before - len(f.bookmarks), nil
}

func (f *fakeStore) UpsertBookmark(_ context.Context, bookmark *model.Bookmark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookmarks {
		if b.UserID == bookmark.UserID && b.EventID == bookmark.EventID {
			*bookmark = b
			return nil
		}
	}
	bookmark.ID = f.id("bookmark")
	bookmark.CreatedAt = fixedNow
	f.bookmarks = append(f.bookmarks, *bookmark)
	return nil
}

func (f *fakeStore) DeleteBookmark(_ context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks = slices.DeleteFunc(f.bookmarks, func(b model.Bookmark) bool {
		return b.UserID == userID && b.EventID == eventID
	})
	return nil
}

// --- posts and votes ---

func (f *fakeStore) CreatePost(_ context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = f.id("post")
	post.CreatedAt = fixedNow.Add(time.Duration(len(f.posts)) * time.Minute)
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakeStore) GetPost(_ context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, apperror.NotFound("post", id)
}

func (f *fakeStore) ListPostStats(ctx context.Context) ([]model.PostStats, error) {
	f.mu.Lock()
	posts := slices.Clone(f.posts)
	f.mu.Unlock()

	out := make([]model.PostStats, 0, len(posts))
	for _, p := range posts {
		likes, dislikes, _ := f.CountVotes(ctx, p.ID)
		out = append(out, model.NewPostStats(p, likes, dislikes))
	}
	return out, nil
}

func (f *fakeStore) CountVotes(_ context.Context, postID string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	likes, dislikes := 0, 0
	for _, v := range f.votes {
		if v.PostID != postID {
			continue
		}
		if v.Kind == model.VoteLike {
			likes++
		} else {
			dislikes++
		}
	}
	return likes, dislikes, nil
}

func (f *fakeStore) GetVote(_ context.Context, postID string, voter model.Voter) (*model.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.votes {
		if v.PostID == postID && v.Voter == voter {
			return &v, nil
		}
	}
	return nil, apperror.NotFound("vote", voter.String())
}

func (f *fakeStore) UpsertVote(_ context.Context, vote *model.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.votes {
		if v.PostID == vote.PostID && v.Voter == vote.Voter {
			f.votes[i].Kind = vote.Kind
			*vote = f.votes[i]
			return nil
		}
	}
	vote.ID = f.id("vote")
	f.votes = append(f.votes, *vote)
	return nil
}

func (f *fakeStore) voteCount(postID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.votes {
		if v.PostID == postID {
			n++
		}
	}
	return n
}

// --- collaborators ---

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: "reset", To: to, Token: token})
	return m.err
}

func (m *fakeMailer) SendVerification(_ context.Context, to, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: "verify", To: to, Token: token})
	return m.err
}

type fakeFederated struct {
	identity    *auth.FederatedIdentity
	err         error
	canExchange bool
	gotCode     string
}

func (f *fakeFederated) VerifyIDToken(_ context.Context, _ string) (*auth.FederatedIdentity, error) {
	return f.identity, f.err
}

func (f *fakeFederated) CanExchange() bool { return f.canExchange }

func (f *fakeFederated) Exchange(_ context.Context, code string) (*auth.FederatedIdentity, error) {
	f.gotCode = code
	return f.identity, f.err
}

// fakeProvider serves pages from a function and counts calls.
type fakeProvider struct {
	calls  atomic.Int32
	search func(params provider.SearchParams) (*provider.Page, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SearchEvents(_ context.Context, params provider.SearchParams) (*provider.Page, error) {
	p.calls.Add(1)
	return p.search(params)
}

func validSession(userID string) model.Session {
	return model.Session{State: model.SessionValid, UserID: userID, Token: "t"}
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	return ts
}
