package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mini-social/domain/packet"
	"mini-social/domain/post"
	"mini-social/domain/profile"
	"mini-social/graph"
	"mini-social/identity"
	"mini-social/reader"
	"mini-social/service"
	"mini-social/storage"
)

// Operations is the call boundary the HTTP handlers translate to.
type Operations interface {
	CreateUser(ctx context.Context, u service.NewUser) (*profile.Profile, error)
	Login(ctx context.Context, email string, password string) (string, error)
	GetProfile(ctx context.Context, caller string, userId string) packet.DataPacket
	GetFeed(ctx context.Context, caller string) packet.DataPacket
	AddPost(ctx context.Context, caller string, np post.NewPost) error
	AddFriendReq(ctx context.Context, caller string, userId string) error
	AcceptFriendReq(ctx context.Context, caller string, userId string) error
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserId string `json:"userId"`
}

func MakeServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		Addr:         fmt.Sprintf("0.0.0.0:%s", port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
}

// NewRouter wires the routes. validator may be nil to skip request
// validation.
func NewRouter(h *HTTPHandler, tokens TokenVerifier, validator *Validator) *mux.Router {
	r := mux.NewRouter()
	if validator != nil {
		r.Use(validator.Middleware)
	}
	r.Use(Authenticate(tokens))

	r.HandleFunc("/api/v1/users", h.CreateUser).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/users/{userId}/profile", h.GetProfile).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/feed", h.GetFeed).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/posts", h.AddPost).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/users/{userId}/friend-requests", h.AddFriendReq).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/users/{userId}/friend-requests/accept", h.AcceptFriendReq).Methods(http.MethodPost)
	return r
}

type HTTPHandler struct {
	ops    Operations
	tokens TokenIssuer
	logger *slog.Logger
}

func NewHTTPHandler(ops Operations, tokens TokenIssuer, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{ops: ops, tokens: tokens, logger: logger}
}

func (h *HTTPHandler) CreateUser(rw http.ResponseWriter, r *http.Request) {
	var req service.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, ErrorResponse{"Invalid body"})
		return
	}
	p, err := h.ops.CreateUser(r.Context(), req)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, p)
}

func (h *HTTPHandler) Login(rw http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, ErrorResponse{"Invalid body"})
		return
	}
	userId, err := h.ops.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	token, err := h.tokens.Issue(userId)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, LoginResponse{Token: token, UserId: userId})
}

// GetProfile and GetFeed always answer 200; failures travel inside the
// DataPacket.
func (h *HTTPHandler) GetProfile(rw http.ResponseWriter, r *http.Request) {
	dp := h.ops.GetProfile(r.Context(), Caller(r.Context()), mux.Vars(r)["userId"])
	writeJSON(rw, http.StatusOK, dp)
}

func (h *HTTPHandler) GetFeed(rw http.ResponseWriter, r *http.Request) {
	dp := h.ops.GetFeed(r.Context(), Caller(r.Context()))
	writeJSON(rw, http.StatusOK, dp)
}

func (h *HTTPHandler) AddPost(rw http.ResponseWriter, r *http.Request) {
	var np post.NewPost
	if err := json.NewDecoder(r.Body).Decode(&np); err != nil {
		writeJSON(rw, http.StatusBadRequest, ErrorResponse{"Invalid body"})
		return
	}
	if err := h.ops.AddPost(r.Context(), Caller(r.Context()), np); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusAccepted)
}

func (h *HTTPHandler) AddFriendReq(rw http.ResponseWriter, r *http.Request) {
	if err := h.ops.AddFriendReq(r.Context(), Caller(r.Context()), mux.Vars(r)["userId"]); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) AcceptFriendReq(rw http.ResponseWriter, r *http.Request) {
	if err := h.ops.AcceptFriendReq(r.Context(), Caller(r.Context()), mux.Vars(r)["userId"]); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) writeError(rw http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotLoggedIn):
		writeJSON(rw, http.StatusUnauthorized, ErrorResponse{"This user is not logged in"})
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeJSON(rw, http.StatusUnauthorized, ErrorResponse{"Invalid credentials"})
	case errors.Is(err, service.ErrWrongParameter),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, graph.ErrSelfFriendRequest),
		errors.Is(err, graph.ErrNoFriendRequest):
		writeJSON(rw, http.StatusBadRequest, ErrorResponse{err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(rw, http.StatusNotFound, ErrorResponse{reader.MsgProfileNotFound})
	case errors.Is(err, identity.ErrEmailTaken):
		writeJSON(rw, http.StatusConflict, ErrorResponse{err.Error()})
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeJSON(rw, http.StatusInternalServerError, ErrorResponse{"Internal error"})
	}
}

func writeJSON(rw http.ResponseWriter, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, _ = rw.Write(raw)
}
