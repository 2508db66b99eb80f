package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ternchat/tern/internal/completion"
	"github.com/ternchat/tern/internal/conversation"
	"github.com/ternchat/tern/internal/user"
)

// UserDirectory is the account surface the auth handlers need.
// *user.Service satisfies it.
type UserDirectory interface {
	Register(ctx context.Context, p user.RegisterParams) (*user.User, string, error)
	Login(ctx context.Context, login, password string) (*user.User, string, error)
	Profile(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// ConversationStore is the data surface the conversation and message
// handlers need. *conversation.Store satisfies it.
type ConversationStore interface {
	Create(ctx context.Context, userID uuid.UUID, title string) (*conversation.Conversation, error)
	List(ctx context.Context, userID uuid.UUID, archived bool, page, pageSize int) ([]*conversation.Conversation, conversation.Pagination, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*conversation.Conversation, []*conversation.Message, error)
	Update(ctx context.Context, id, userID uuid.UUID, patch conversation.Patch) (*conversation.Conversation, error)
	SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) (*conversation.Conversation, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, content, role string) (*conversation.Message, error)
	ListMessages(ctx context.Context, conversationID, userID uuid.UUID, page, pageSize int) ([]*conversation.Message, conversation.Pagination, error)
	EditMessage(ctx context.Context, id, userID uuid.UUID, content string) (*conversation.Message, error)
	DeleteMessage(ctx context.Context, id, userID uuid.UUID) error
}

// Generator produces a completion for a chat turn. *completion.Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, message string, history []completion.Turn) (string, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Users         UserDirectory     // Required
	Conversations ConversationStore // Required
	Generator     Generator         // Required
	Tokens        tokenVerifier     // Required
	Pool          *pgxpool.Pool     // Optional: nil disables pool ping in /ready
	CORSOrigins   []string          // Allowed origins for CORS
	TrustProxy    bool              // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst     int               // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Users == nil {
		return nil, errors.New("user directory is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &authHandler{users: cfg.Users, logger: logger}
	ch := &conversationHandler{store: cfg.Conversations, logger: logger}
	mh := &messageHandler{store: cfg.Conversations, logger: logger}
	gh := &chatHandler{generator: cfg.Generator, logger: logger}

	gate := authMiddleware(cfg.Tokens, logger)
	protected := func(h http.HandlerFunc) http.Handler {
		return gate(h)
	}

	mux := http.NewServeMux()

	// Account
	mux.HandleFunc("POST /auth/register", ah.register)
	mux.HandleFunc("POST /auth/login", ah.login)
	mux.Handle("GET /auth/me", protected(ah.me))

	// Conversations
	mux.Handle("GET /conversations", protected(ch.list))
	mux.Handle("POST /conversations", protected(ch.create))
	mux.Handle("GET /conversations/{id}", protected(ch.get))
	mux.Handle("PUT /conversations/{id}", protected(ch.update))
	mux.Handle("DELETE /conversations/{id}", protected(ch.delete))
	mux.Handle("PATCH /conversations/{id}/archive", protected(ch.archive))

	// Messages
	mux.Handle("POST /messages", protected(mh.append))
	mux.Handle("GET /messages/{conversationId}", protected(mh.list))
	mux.Handle("PUT /messages/{id}", protected(mh.edit))
	mux.Handle("DELETE /messages/{id}", protected(mh.delete))

	// Completion forwarding
	mux.Handle("POST /chat/generate", protected(gh.generate))

	// JSON 404 for unmatched routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
