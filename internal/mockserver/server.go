// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the real backend listens during development.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL = 24 * time.Hour

	// roomTitleRunes is how much of a first message becomes a room title.
	roomTitleRunes = 30
)

// ============================================================================
// STATE
// ============================================================================

type user struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	Active       bool
	Level        int
	Age          *int
	Region       string
	CareTarget   string
}

type room struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Turns     int
}

func (rm *room) wire() backend.Room {
	return backend.Room{
		ID:        rm.ID,
		Title:     rm.Title,
		CreatedAt: rm.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// tokenClaims is the payload of issued access tokens.
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Server is the fake backend.
type Server struct {
	secret []byte
	logger *log.Logger
	now    func() time.Time

	mu         sync.RWMutex
	users      map[string]*user // by email
	rooms      map[int64]*room
	nextUserID int64
	nextRoomID int64

	welfare          []*welfareItem
	welfareBookmarks map[int64]map[int64]int64 // user -> welfare -> bookmark
	nextBookmarkID   int64
	recentViews      map[int64][]int64 // user -> welfare ids, newest first

	posts         map[int64]*post
	nextPostID    int64
	nextCommentID int64

	failCreate atomic.Bool
	messages   atomic.Int64
}

// New creates an empty server signing tokens with secret.
func New(secret string) *Server {
	if secret == "" {
		secret = "neulbom-mock-secret"
	}
	return &Server{
		secret:     []byte(secret),
		logger:     log.New(io.Discard, "", 0),
		now:        time.Now,
		users:      make(map[string]*user),
		rooms:      make(map[int64]*room),
		nextUserID: 1,
		nextRoomID: 1,

		welfare:          seedWelfare(),
		welfareBookmarks: make(map[int64]map[int64]int64),
		recentViews:      make(map[int64][]int64),

		posts:         make(map[int64]*post),
		nextPostID:    1,
		nextCommentID: 1,
	}
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(logger *log.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithUser seeds an active account.
func (s *Server) WithUser(email, password string) *Server {
	if _, err := s.addUser(email, "", password); err != nil {
		s.logger.Printf("SEED_USER_FAILED | email=%s err=%v", email, err)
	}
	return s
}

// SetFailCreate makes room creation answer 500 while enabled.
func (s *Server) SetFailCreate(fail bool) {
	s.failCreate.Store(fail)
}

// DisableUser marks an account inactive.
func (s *Server) DisableUser(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		u.Active = false
	}
}

// IssueToken returns a valid access token for a seeded account.
func (s *Server) IssueToken(email string) (string, error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no such user %q", email)
	}
	return s.signToken(u)
}

// RoomCount returns how many rooms exist across all users.
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// MessageCount returns how many chat messages were answered.
func (s *Server) MessageCount() int64 {
	return s.messages.Load()
}

// ============================================================================
// ROUTING / LIFECYCLE
// ============================================================================

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate(false))
			r.Post("/chat/message", s.handleMessage)
			r.Get("/welfare/search", s.handleSearchWelfare)
			r.Get("/welfare/recommend/popular", s.handlePopularWelfare)
			r.Get("/welfare/recommend/recent", s.handleRecentWelfare)
			r.Get("/welfare/{id}", s.handleWelfareDetail)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate(true))
			r.Get("/users/me", s.handleMe)
			r.Put("/users/me", s.handleUpdateMe)
			r.Get("/chat/rooms", s.handleListRooms)
			r.Post("/chat/rooms", s.handleCreateRoom)
			r.Put("/chat/rooms/{id}", s.handleRenameRoom)
			r.Delete("/chat/rooms/{id}", s.handleDeleteRoom)
			r.Post("/welfare/{id}/bookmark", s.handleBookmarkWelfare)

			r.Route("/community/posts", func(r chi.Router) {
				r.Get("/", s.handleListPosts)
				r.Post("/", s.handleCreatePost)
				r.Get("/{id}", s.handleGetPost)
				r.Put("/{id}", s.handleUpdatePost)
				r.Delete("/{id}", s.handleDeletePost)
				r.Post("/{id}/like", s.handleToggleLike)
				r.Post("/{id}/bookmark", s.handleTogglePostBookmark)
				r.Get("/{id}/comments", s.handleListComments)
				r.Post("/{id}/comments", s.handleCreateComment)
			})
		})
	})
	return r
}

// ShutdownTimeout bounds the graceful stop in Serve.
const ShutdownTimeout = 5 * time.Second

// Listen binds addr, so bind errors surface before serving starts. An
// empty addr means DefaultAddr.
func (s *Server) Listen(addr string) (net.Listener, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Printf("SERVER_START | addr=%s", ln.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// AUTH HANDLERS
// ============================================================================

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req backend.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.Password {
		writeDetail(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	u, err := s.addUser(req.Email, req.Name, req.Password)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeToken(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req backend.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.RLock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(req.Email))]
	s.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !u.Active {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}
	s.writeToken(w, http.StatusOK, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, profileOf(currentUser(r)))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var update backend.ProfileUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	if update.Age != nil && (*update.Age < 0 || *update.Age > 150) {
		writeDetail(w, http.StatusUnprocessableEntity, "age must be between 0 and 150")
		return
	}
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if update.Age != nil {
		age := *update.Age
		u.Age = &age
	}
	if update.Region != nil {
		u.Region = strings.TrimSpace(*update.Region)
	}
	if update.CareTarget != nil {
		u.CareTarget = strings.TrimSpace(*update.CareTarget)
	}
	writeJSON(w, http.StatusOK, profileOf(u))
}

// profileOf renders u. s.mu must be held.
func profileOf(u *user) backend.Profile {
	return backend.Profile{
		ID:                 u.ID,
		Email:              u.Email,
		Age:                u.Age,
		Region:             u.Region,
		CareTarget:         u.CareTarget,
		Level:              u.Level,
		VerificationStatus: "none",
	}
}

func (s *Server) addUser(email, name, password string) (*user, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return nil, errors.New("Email already registered")
	}
	u := &user{
		ID:           s.nextUserID,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Active:       true,
		Level:        2,
	}
	s.nextUserID++
	s.users[email] = u
	return u, nil
}

func (s *Server) signToken(u *user) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    "neulbom-mock",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *Server) userFromToken(raw string) (*user, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[claims.Email]
	if !ok || strconv.FormatInt(u.ID, 10) != claims.Subject {
		return nil, errors.New("unknown subject")
	}
	return u, nil
}

func (s *Server) writeToken(w http.ResponseWriter, status int, u *user) {
	tok, err := s.signToken(u)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, status, backend.TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

// ============================================================================
// ROOM HANDLERS
// ============================================================================

type titleBody struct {
	Title string `json:"title"`
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.RLock()
	var owned []*room
	for _, rm := range s.rooms {
		if rm.UserID == u.ID {
			owned = append(owned, rm)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].UpdatedAt.Equal(owned[j].UpdatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})

	items := make([]backend.Room, 0, len(owned))
	for _, rm := range owned {
		items = append(items, rm.wire())
	}
	writeJSON(w, http.StatusOK, backend.RoomList{Items: items, Total: len(items)})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if s.failCreate.Load() {
		writeDetail(w, http.StatusInternalServerError, "채팅방 생성 실패")
		return
	}

	var body titleBody
	if !decodeBody(w, r, &body) {
		return
	}
	rm := s.createRoom(currentUser(r).ID, body.Title)
	writeJSON(w, http.StatusOK, rm.wire())
}

func (s *Server) handleRenameRoom(w http.ResponseWriter, r *http.Request) {
	var body titleBody
	if !decodeBody(w, r, &body) {
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "title must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.ownedRoomLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "채팅방을 찾을 수 없습니다.")
		return
	}
	rm.Title = title
	rm.UpdatedAt = s.now()
	writeJSON(w, http.StatusOK, rm.wire())
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.ownedRoomLocked(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "채팅방을 찾을 수 없습니다.")
		return
	}
	delete(s.rooms, rm.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createRoom(userID int64, title string) *room {
	now := s.now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "대화 " + now.Format("2006-01-02 15:04")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rm := &room{ID: s.nextRoomID, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.nextRoomID++
	s.rooms[rm.ID] = rm
	return rm
}

// ownedRoomLocked resolves {id} to a room of the current user. s.mu must be held.
func (s *Server) ownedRoomLocked(r *http.Request) (*room, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, false
	}
	rm, ok := s.rooms[id]
	if !ok || rm.UserID != currentUser(r).ID {
		return nil, false
	}
	return rm, true
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req backend.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message must not be empty")
		return
	}

	resp := backend.ChatResponse{}

	// Rooms only exist for members; guests chat statelessly.
	if u := currentUser(r); u != nil {
		roomID, ok := s.resolveRoom(r, u, req.Message)
		if !ok {
			writeDetail(w, http.StatusNotFound, "채팅방을 찾을 수 없습니다.")
			return
		}
		resp.RoomID = &roomID
	}

	level := AnalyzeCrisis(req.Message)
	resp.Reply = composeReply(req.Message, level, len(req.History))
	if level != CrisisNone {
		resp.IsCrisis = true
		resp.CrisisInfo = crisisInfo()
	}

	s.messages.Add(1)
	writeJSON(w, http.StatusOK, resp)
}

// resolveRoom returns the room a member's message belongs to, creating one
// titled after the message when no room_id was given.
func (s *Server) resolveRoom(r *http.Request, u *user, message string) (int64, bool) {
	raw := r.URL.Query().Get("room_id")
	if raw == "" {
		rm := s.createRoom(u.ID, util.FirstRunes(strings.TrimSpace(message), roomTitleRunes))
		s.touchRoom(rm.ID)
		return rm.ID, true
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	s.mu.RLock()
	rm, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok || rm.UserID != u.ID {
		return 0, false
	}
	s.touchRoom(id)
	return id, true
}

func (s *Server) touchRoom(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rm, ok := s.rooms[id]; ok {
		rm.UpdatedAt = s.now()
		rm.Turns++
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"rooms":    s.RoomCount(),
		"messages": s.MessageCount(),
	})
}

// decodeBody reads a JSON request body, answering 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes a FastAPI-style {"detail": ...} error.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
