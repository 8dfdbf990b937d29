package handler_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/handler"
	"github.com/sakif/soundscape/internal/mail"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/provider"
	sqliteRepo "github.com/sakif/soundscape/internal/repository/sqlite"
	"github.com/sakif/soundscape/internal/service"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubProvider answers every search with events (or err).
type stubProvider struct {
	events []model.Event
	err    error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) SearchEvents(_ context.Context, _ provider.SearchParams) (*provider.Page, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &provider.Page{Events: p.events, TotalPages: 1}, nil
}

// testEnv wires real services over an in-memory database, the same way
// server.New does, minus the network integrations.
type testEnv struct {
	db       *sqliteRepo.DB
	provider *stubProvider
	events   *service.EventService

	auth            *handler.AuthHandler
	event           *handler.EventHandler
	bookmark        *handler.BookmarkHandler
	recommendation  *handler.RecommendationHandler
	post            *handler.PostHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqliteRepo.New(":memory:", testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	stub := &stubProvider{err: provider.ErrNotConfigured}

	authService := service.NewAuthService(service.AuthDeps{
		Users:     db,
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceForTest(bcrypt.MinCost),
		Mailer:    mail.NewMailer(mail.LogSender{Logger: testLogger}, "http://localhost:5173"),
		Logger:    testLogger,
	})
	eventService := service.NewEventService(db, stub, testLogger)
	t.Cleanup(eventService.Wait)

	return &testEnv{
		db:       db,
		provider: stub,
		events:   eventService,

		auth:           handler.NewAuthHandler(authService),
		event:          handler.NewEventHandler(eventService),
		bookmark:       handler.NewBookmarkHandler(service.NewBookmarkService(db, db, testLogger)),
		recommendation: handler.NewRecommendationHandler(service.NewRecommendationService(db, db, testLogger), authService),
		post:           handler.NewPostHandler(service.NewPostService(db, db, testLogger)),
	}
}

// addEvent stores an event dated days from now.
func (e *testEnv) addEvent(t *testing.T, artist, genre string, days int) *model.Event {
	t.Helper()
	event := &model.Event{
		Artist: artist,
		Venue:  artist + " Hall",
		City:   "Austin",
		Genre:  genre,
		Date:   time.Now().UTC().AddDate(0, 0, days),
	}
	require.NoError(t, e.db.CreateEvent(context.Background(), event))
	return event
}

// register creates an account through the handler and returns its session.
func (e *testEnv) register(t *testing.T, email string, genres ...string) model.Session {
	t.Helper()
	body := map[string]any{"name": "Ada", "email": email, "password": "hunter22", "genres": genres}
	rr := serve(e.auth.HandleRegister, newRequest(t, http.MethodPost, "/api/auth/register", body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp handler.SessionResponse
	decode(t, rr, &resp)
	return model.Session{State: model.SessionValid, UserID: resp.User.ID, Token: resp.Token}
}

// newRequest builds a request with body encoded as JSON. A string body is
// sent as-is so tests can send malformed JSON.
func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withSession attaches a session as the auth middleware would.
func withSession(r *http.Request, session model.Session) *http.Request {
	return r.WithContext(auth.WithSession(r.Context(), session))
}

// withURLParam sets a chi path parameter without routing.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, r)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst), rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	decode(t, rr, &resp)
	return resp
}
