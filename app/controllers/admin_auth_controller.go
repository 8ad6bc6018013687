package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/driftmarket/driftmarket/config"
	"github.com/driftmarket/driftmarket/pkg/auth"
	"github.com/driftmarket/driftmarket/pkg/middleware"
	"github.com/driftmarket/driftmarket/pkg/response"
)

// AdminAuthController issues the local admin session. Production token
// issuance lives in an external identity service; this endpoint exists
// for dev and self-hosted setups with a configured password hash.
type AdminAuthController struct{}

func NewAdminAuthController() *AdminAuthController {
	return &AdminAuthController{}
}

// Login handles POST /api/admin/login.
func (c *AdminAuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hash := config.AdminPasswordHash()
	if hash == "" {
		response.Error(w, http.StatusForbidden, "local login is not configured")
		return
	}
	if !auth.IsAllowListed(body.Email, config.AdminEmails()) ||
		!auth.CheckPassword(hash, body.Password) {
		response.Unauthorized(w)
		return
	}

	token, err := auth.GenerateToken(body.Email)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Secure:   config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	response.Success(w, map[string]string{"token": token})
}
