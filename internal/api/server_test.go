package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ternchat/tern/internal/completion"
	"github.com/ternchat/tern/internal/conversation"
	"github.com/ternchat/tern/internal/user"
)

// fakeUsers implements UserDirectory with pluggable behavior.
type fakeUsers struct {
	registerFn func(context.Context, user.RegisterParams) (*user.User, string, error)
	loginFn    func(context.Context, string, string) (*user.User, string, error)
	profileFn  func(context.Context, uuid.UUID) (*user.User, error)
}

func (f *fakeUsers) Register(ctx context.Context, p user.RegisterParams) (*user.User, string, error) {
	return f.registerFn(ctx, p)
}

func (f *fakeUsers) Login(ctx context.Context, login, password string) (*user.User, string, error) {
	return f.loginFn(ctx, login, password)
}

func (f *fakeUsers) Profile(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return f.profileFn(ctx, id)
}

// fakeStore implements ConversationStore with pluggable behavior.
// Unset methods fail the test if called.
type fakeStore struct {
	t *testing.T

	createFn      func(context.Context, uuid.UUID, string) (*conversation.Conversation, error)
	listFn        func(context.Context, uuid.UUID, bool, int, int) ([]*conversation.Conversation, conversation.Pagination, error)
	getFn         func(context.Context, uuid.UUID, uuid.UUID) (*conversation.Conversation, []*conversation.Message, error)
	updateFn      func(context.Context, uuid.UUID, uuid.UUID, conversation.Patch) (*conversation.Conversation, error)
	setArchivedFn func(context.Context, uuid.UUID, uuid.UUID, bool) (*conversation.Conversation, error)
	deleteFn      func(context.Context, uuid.UUID, uuid.UUID) error
	appendFn      func(context.Context, uuid.UUID, uuid.UUID, string, string) (*conversation.Message, error)
	listMsgFn     func(context.Context, uuid.UUID, uuid.UUID, int, int) ([]*conversation.Message, conversation.Pagination, error)
	editMsgFn     func(context.Context, uuid.UUID, uuid.UUID, string) (*conversation.Message, error)
	deleteMsgFn   func(context.Context, uuid.UUID, uuid.UUID) error
}

func (f *fakeStore) Create(ctx context.Context, userID uuid.UUID, title string) (*conversation.Conversation, error) {
	if f.createFn == nil {
		f.t.Fatal("unexpected Create call")
	}
	return f.createFn(ctx, userID, title)
}

func (f *fakeStore) List(ctx context.Context, userID uuid.UUID, archived bool, page, pageSize int) ([]*conversation.Conversation, conversation.Pagination, error) {
	if f.listFn == nil {
		f.t.Fatal("unexpected List call")
	}
	return f.listFn(ctx, userID, archived, page, pageSize)
}

func (f *fakeStore) Get(ctx context.Context, id, userID uuid.UUID) (*conversation.Conversation, []*conversation.Message, error) {
	if f.getFn == nil {
		f.t.Fatal("unexpected Get call")
	}
	return f.getFn(ctx, id, userID)
}

func (f *fakeStore) Update(ctx context.Context, id, userID uuid.UUID, patch conversation.Patch) (*conversation.Conversation, error) {
	if f.updateFn == nil {
		f.t.Fatal("unexpected Update call")
	}
	return f.updateFn(ctx, id, userID, patch)
}

func (f *fakeStore) SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) (*conversation.Conversation, error) {
	if f.setArchivedFn == nil {
		f.t.Fatal("unexpected SetArchived call")
	}
	return f.setArchivedFn(ctx, id, userID, archived)
}

func (f *fakeStore) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if f.deleteFn == nil {
		f.t.Fatal("unexpected Delete call")
	}
	return f.deleteFn(ctx, id, userID)
}

func (f *fakeStore) AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, content, role string) (*conversation.Message, error) {
	if f.appendFn == nil {
		f.t.Fatal("unexpected AppendMessage call")
	}
	return f.appendFn(ctx, userID, conversationID, content, role)
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, page, pageSize int) ([]*conversation.Message, conversation.Pagination, error) {
	if f.listMsgFn == nil {
		f.t.Fatal("unexpected ListMessages call")
	}
	return f.listMsgFn(ctx, conversationID, userID, page, pageSize)
}

func (f *fakeStore) EditMessage(ctx context.Context, id, userID uuid.UUID, content string) (*conversation.Message, error) {
	if f.editMsgFn == nil {
		f.t.Fatal("unexpected EditMessage call")
	}
	return f.editMsgFn(ctx, id, userID, content)
}

func (f *fakeStore) DeleteMessage(ctx context.Context, id, userID uuid.UUID) error {
	if f.deleteMsgFn == nil {
		f.t.Fatal("unexpected DeleteMessage call")
	}
	return f.deleteMsgFn(ctx, id, userID)
}

// fakeGenerator implements Generator.
type fakeGenerator struct {
	generateFn func(context.Context, string, []completion.Turn) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, message string, history []completion.Turn) (string, error) {
	return f.generateFn(ctx, message, history)
}

type serverFixture struct {
	userID  uuid.UUID
	users   *fakeUsers
	store   *fakeStore
	gen     *fakeGenerator
	handler http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		userID: uuid.New(),
		users:  &fakeUsers{},
		store:  &fakeStore{t: t},
		gen:    &fakeGenerator{},
	}

	srv, err := NewServer(ServerConfig{
		Logger:        discardLogger(),
		Users:         f.users,
		Conversations: f.store,
		Generator:     f.gen,
		Tokens:        newStubVerifier(f.userID),
		RateBurst:     1000,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	f.handler = srv.Handler()
	return f
}

// do performs a request against the server, optionally authenticated.
func (f *serverFixture) do(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if authenticated {
		r.Header.Set("Authorization", "Bearer valid-token")
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func testUser(id uuid.UUID) *user.User {
	now := time.Now()
	return &user.User{
		ID:        id,
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)

	for _, path := range []string{"/health", "/ready"} {
		w := f.do(http.MethodGet, path, "", false)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodGet, "/nope", "", false)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Success || env.Message != "Route not found" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newServerFixture(t)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/conversations"},
		{http.MethodPost, "/conversations"},
		{http.MethodPost, "/messages"},
		{http.MethodPost, "/chat/generate"},
	}

	for _, p := range paths {
		w := f.do(p.method, p.path, "", false)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestRegister(t *testing.T) {
	f := newServerFixture(t)
	id := uuid.New()

	f.users.registerFn = func(_ context.Context, p user.RegisterParams) (*user.User, string, error) {
		if p.Username != "alice" || p.Email != "alice@example.com" {
			t.Errorf("params = %+v", p)
		}
		return testUser(id), "issued-token", nil
	}

	body := `{"username":"alice","email":"alice@example.com","password":"secret1","firstName":"Alice","lastName":"Smith"}`
	w := f.do(http.MethodPost, "/auth/register", body, false)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	if !env.Success || env.Message != "User registered successfully" {
		t.Errorf("envelope = %+v", env)
	}

	data, _ := json.Marshal(env.Data)
	var payload struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if payload.Token != "issued-token" {
		t.Errorf("token = %q", payload.Token)
	}
	if strings.Contains(string(payload.User), "password") {
		t.Error("user payload leaks password field")
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newServerFixture(t)

	// Short username, bad email, short password, missing names.
	body := `{"username":"ab","email":"not-an-email","password":"123"}`
	w := f.do(http.MethodPost, "/auth/register", body, false)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Validation failed" {
		t.Errorf("message = %q", env.Message)
	}
	if len(env.Errors) != 5 {
		t.Errorf("errors = %d, want 5 (%+v)", len(env.Errors), env.Errors)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newServerFixture(t)
	f.users.registerFn = func(context.Context, user.RegisterParams) (*user.User, string, error) {
		return nil, "", user.ErrDuplicate
	}

	body := `{"username":"alice","email":"alice@example.com","password":"secret1","firstName":"Alice","lastName":"Smith"}`
	w := f.do(http.MethodPost, "/auth/register", body, false)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "User with this username or email already exists" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestLogin(t *testing.T) {
	f := newServerFixture(t)
	id := uuid.New()

	tests := []struct {
		name        string
		loginErr    error
		wantStatus  int
		wantMessage string
	}{
		{"success", nil, http.StatusOK, "Login successful"},
		{"invalid credentials", user.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"deactivated", user.ErrDeactivated, http.StatusUnauthorized, "Account is deactivated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.users.loginFn = func(_ context.Context, login, password string) (*user.User, string, error) {
				if tt.loginErr != nil {
					return nil, "", tt.loginErr
				}
				return testUser(id), "issued-token", nil
			}

			w := f.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, false)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, w)
			if env.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMessage)
			}
		})
	}
}

func TestMe(t *testing.T) {
	f := newServerFixture(t)
	f.users.profileFn = func(_ context.Context, id uuid.UUID) (*user.User, error) {
		if id != f.userID {
			t.Errorf("profile id = %s, want %s", id, f.userID)
		}
		return testUser(id), nil
	}

	w := f.do(http.MethodGet, "/auth/me", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Error("success = false")
	}
}

func TestCreateConversation(t *testing.T) {
	f := newServerFixture(t)
	f.store.createFn = func(_ context.Context, userID uuid.UUID, title string) (*conversation.Conversation, error) {
		if userID != f.userID {
			t.Errorf("userID = %s, want %s", userID, f.userID)
		}
		if title != "" {
			t.Errorf("title = %q, want empty", title)
		}
		return &conversation.Conversation{ID: uuid.New(), UserID: userID, Title: conversation.DefaultTitle}, nil
	}

	w := f.do(http.MethodPost, "/conversations", "", true)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Conversation created successfully" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestListConversationsPassesQueryParams(t *testing.T) {
	f := newServerFixture(t)
	f.store.listFn = func(_ context.Context, userID uuid.UUID, archived bool, page, pageSize int) ([]*conversation.Conversation, conversation.Pagination, error) {
		if !archived {
			t.Error("archived = false, want true")
		}
		if page != 3 || pageSize != 10 {
			t.Errorf("page = %d, pageSize = %d, want 3, 10", page, pageSize)
		}
		return nil, conversation.Pagination{Current: 3}, nil
	}

	w := f.do(http.MethodGet, "/conversations?archived=true&page=3&limit=10", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	f := newServerFixture(t)
	f.store.getFn = func(context.Context, uuid.UUID, uuid.UUID) (*conversation.Conversation, []*conversation.Message, error) {
		return nil, nil, conversation.ErrNotFound
	}

	w := f.do(http.MethodGet, "/conversations/"+uuid.NewString(), "", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Conversation not found" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestArchiveConversation(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name         string
		body         string
		wantArchived bool
		wantMessage  string
	}{
		{"default archives", "", true, "Conversation archived successfully"},
		{"explicit unarchive", `{"archived":false}`, false, "Conversation unarchived successfully"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.store.setArchivedFn = func(_ context.Context, id, userID uuid.UUID, archived bool) (*conversation.Conversation, error) {
				if archived != tt.wantArchived {
					t.Errorf("archived = %t, want %t", archived, tt.wantArchived)
				}
				return &conversation.Conversation{ID: id, UserID: userID, IsArchived: archived}, nil
			}

			w := f.do(http.MethodPatch, "/conversations/"+uuid.NewString()+"/archive", tt.body, true)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMessage)
			}
		})
	}
}

func TestDeleteConversation(t *testing.T) {
	f := newServerFixture(t)
	f.store.deleteFn = func(context.Context, uuid.UUID, uuid.UUID) error {
		return nil
	}

	w := f.do(http.MethodDelete, "/conversations/"+uuid.NewString(), "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Conversation deleted successfully" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestAppendMessage(t *testing.T) {
	f := newServerFixture(t)
	convID := uuid.New()

	f.store.appendFn = func(_ context.Context, userID, conversationID uuid.UUID, content, role string) (*conversation.Message, error) {
		if conversationID != convID {
			t.Errorf("conversationID = %s, want %s", conversationID, convID)
		}
		if content != "Hello there" || role != "user" {
			t.Errorf("content = %q, role = %q", content, role)
		}
		return &conversation.Message{ID: uuid.New(), ConversationID: conversationID, UserID: userID, Content: content, Role: role}, nil
	}

	body := `{"conversationId":"` + convID.String() + `","content":"Hello there","role":"user"}`
	w := f.do(http.MethodPost, "/messages", body, true)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Message added successfully" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	f := newServerFixture(t)

	body := `{"conversationId":"` + uuid.NewString() + `","content":"","role":"system"}`
	w := f.do(http.MethodPost, "/messages", body, true)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w)
	if len(env.Errors) != 2 {
		t.Errorf("errors = %d, want 2 (%+v)", len(env.Errors), env.Errors)
	}
}

func TestEditMessageNotFound(t *testing.T) {
	f := newServerFixture(t)
	f.store.editMsgFn = func(context.Context, uuid.UUID, uuid.UUID, string) (*conversation.Message, error) {
		return nil, conversation.ErrMessageNotFound
	}

	w := f.do(http.MethodPut, "/messages/"+uuid.NewString(), `{"content":"fixed"}`, true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Message not found" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestChatGenerate(t *testing.T) {
	f := newServerFixture(t)
	f.gen.generateFn = func(_ context.Context, message string, history []completion.Turn) (string, error) {
		if message != "Hello" {
			t.Errorf("message = %q", message)
		}
		return "Hi there!", nil
	}

	w := f.do(http.MethodPost, "/chat/generate", `{"message":"Hello"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	data, _ := json.Marshal(env.Data)
	var payload struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if payload.Response != "Hi there!" {
		t.Errorf("response = %q", payload.Response)
	}
}

func TestChatGenerateUpstreamErrors(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unauthorized", completion.ErrUnauthorized, http.StatusUnauthorized},
		{"rate limited", completion.ErrRateLimited, http.StatusTooManyRequests},
		{"bad request", completion.ErrBadRequest, http.StatusBadRequest},
		{"upstream failure", completion.ErrUpstream, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.gen.generateFn = func(context.Context, string, []completion.Turn) (string, error) {
				return "", tt.err
			}

			w := f.do(http.MethodPost, "/chat/generate", `{"message":"Hello"}`, true)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
