package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/checkout"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type claimsKey struct{}

func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

func bookingActor(ctx context.Context) booking.Actor {
	c, ok := claimsFrom(ctx)
	if !ok {
		return booking.Actor{}
	}
	return booking.Actor{UserID: c.Subject, Email: c.Email, Role: c.Role}
}

func orderActor(ctx context.Context) checkout.Actor {
	c, ok := claimsFrom(ctx)
	if !ok {
		return checkout.Actor{}
	}
	return checkout.Actor{UserID: c.Subject, Role: c.Role}
}

// authenticate attaches the bearer token claims when a token is present. A
// present but invalid token is rejected even on public routes.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "malformed authorization header")
			return
		}
		claims, err := h.Tokens.Verify(token)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := claimsFrom(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := claimsFrom(r.Context())
		if !ok || c.Role != role {
			httpx.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

func toUser(u model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		h.writeErr(w, r, model.Invalid("email", "must be a valid email address"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.writeErr(w, r, model.Invalid("name", "is required"))
		return
	}
	if len(req.Password) > 72 {
		h.writeErr(w, r, model.Invalid("password", "must be at most 72 bytes"))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrWeakPassword) {
		h.writeErr(w, r, model.Invalid("password", err.Error()))
		return
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	u := model.User{ID: uuid.NewString(), Email: email, Name: name, PasswordHash: hash, Role: auth.RoleCustomer}
	if err := h.Users.Create(r.Context(), &u); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.Logger.InfoContext(r.Context(), "user registered", "user_id", u.ID)
	h.issue(w, r, http.StatusCreated, u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		h.writeErr(w, r, err)
		return
	}
	if err != nil || auth.VerifyPassword(u.PasswordHash, req.Password) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, status int, u model.User) {
	token, exp, err := h.Tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, status, tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, User: toUser(u)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	c, _ := claimsFrom(r.Context())
	u, err := h.Users.GetByID(r.Context(), c.Subject)
	if errors.Is(err, model.ErrNotFound) {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(u))
}
