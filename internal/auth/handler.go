package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Oniqq60/meeting_capture_service/internal/dto"
	"github.com/Oniqq60/meeting_capture_service/internal/middleware"
)

const AuthCookieName = "access_token"

type Handler struct {
	provider   Provider
	authorizer *Authorizer
	repo       UserRepository
	logins     *middleware.Limiter
}

func NewHandler(provider Provider, authorizer *Authorizer, repo UserRepository, logins *middleware.Limiter) *Handler {
	return &Handler{
		provider:   provider,
		authorizer: authorizer,
		repo:       repo,
		logins:     logins,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	session, err := h.provider.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		// Текст ошибки провайдера отдаем без изменений
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeSession(w, session, http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Попытки входа ограничиваем по паре email+ip
	key := email + "|" + getClientIP(r)
	if !h.logins.Allow(key) {
		http.Error(w, "too many attempts", http.StatusTooManyRequests)
		return
	}

	session, err := h.provider.SignIn(r.Context(), email, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	h.logins.Reset(key)
	h.writeSession(w, session, http.StatusOK)
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.IDToken == "" {
		http.Error(w, "id_token is required", http.StatusBadRequest)
		return
	}

	session, err := h.provider.SignInWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	h.writeSession(w, session, http.StatusOK)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := TokenFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.provider.LogOut(r.Context(), token); err != nil {
		if errors.Is(err, errUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "failed to logout", http.StatusInternalServerError)
		return
	}

	clearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	token, err := TokenFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	identity, err := h.authorizer.Authorize(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := ParseToken(token, h.authorizer.jwtSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Printf("Profile: failed to fetch user %s: %v", identity.UserID, err)
		http.Error(w, "failed to fetch profile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", requireMethod(http.MethodPost, h.Register))
	mux.HandleFunc("/auth/login", requireMethod(http.MethodPost, h.Login))
	mux.HandleFunc("/auth/google", requireMethod(http.MethodPost, h.GoogleLogin))
	mux.HandleFunc("/auth/logout", requireMethod(http.MethodDelete, h.Logout))
	mux.HandleFunc("/auth/profile", requireMethod(http.MethodGet, h.Profile))
	return mux
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (h *Handler) writeSession(w http.ResponseWriter, session Session, status int) {
	claims, err := ParseToken(session.Token, h.authorizer.jwtSecret)
	expiresIn := int64(0)
	if err == nil && claims.ExpiresAt != nil {
		expiresIn = claims.ExpiresAt.Unix() - time.Now().Unix()
	}

	setAuthCookie(w, session.Token, expiresIn)

	writeJSON(w, status, dto.SessionResponse{
		User: dto.UserResponse{
			ID:          session.User.ID.String(),
			Email:       session.User.Email,
			DisplayName: session.User.DisplayName,
		},
		AccessToken: session.Token,
		ExpiresIn:   expiresIn,
	})
}

func setAuthCookie(w http.ResponseWriter, token string, expiresIn int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(expiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest извлекает токен из заголовка Authorization или cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if token, err := extractBearerToken(r.Header.Get("Authorization")); err == nil {
		return token, nil
	}

	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, nil
		}
	}

	return "", errUnauthorized
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errUnauthorized
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errUnauthorized
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errUnauthorized
	}

	return token, nil
}

// getClientIP извлекает реальный IP клиента с учетом прокси
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
