package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authflow"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type validateOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type updatePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type accountDTO struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Provider      string `json:"provider"`
	EmailVerified bool   `json:"emailVerified"`
}

func toDTO(a *authflow.Account) accountDTO {
	return accountDTO{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		Provider:      string(a.Provider),
		EmailVerified: a.EmailVerified,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_007", "Invalid request body.")
		return
	}
	if strings.TrimSpace(in.Email) == "" {
		a.writeBadRequest(w, "AUTH_007", "Please provide your email address.")
		return
	}
	if strings.TrimSpace(in.Username) == "" {
		a.writeBadRequest(w, "AUTH_007", "Please provide a username.")
		return
	}
	if in.Password == "" {
		a.writeBadRequest(w, "AUTH_008", "Please enter your password.")
		return
	}

	account, err := a.engine.Register(r.Context(), authflow.RegisterRequest{
		Username: strings.TrimSpace(in.Username),
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		// An unverified duplicate gets a hint to resend the OTP
		// instead of a dead-end conflict.
		if errors.Is(err, authflow.ErrEmailTakenUnverified) {
			a.writeErrorData(w, r, err, map[string]any{"otpRedirect": true})
			return
		}
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, "Registered. Verify your email to continue.", map[string]string{
		"email": account.Email,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_007", "Invalid request body.")
		return
	}

	session, account, err := a.engine.Login(r.Context(), in.Email, in.Password, in.RememberMe)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.setSessionCookies(w, session)
	a.writeJSON(w, http.StatusOK, "Logged in.", map[string]any{
		"user":        toDTO(account),
		"accessToken": session.AccessToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.clearSessionCookies(w)
	a.writeJSON(w, http.StatusOK, "Logged out.", nil)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		a.writeError(w, r, authflow.ErrInvalidRefreshToken)
		return
	}

	access, err := a.engine.Refresh(r.Context(), c.Value)
	if err != nil {
		a.clearSessionCookies(w)
		a.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.SecureCookies,
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
	})
	a.writeJSON(w, http.StatusOK, "Session refreshed.", map[string]string{
		"accessToken": access,
	})
}

func (a *API) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_007", "Invalid request body.")
		return
	}

	if err := a.engine.SendOTP(r.Context(), in.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, "Verification code sent.", nil)
}

func (a *API) handleValidateOTP(w http.ResponseWriter, r *http.Request) {
	var in validateOTPRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_007", "Invalid request body.")
		return
	}

	if err := a.engine.ValidateOTP(r.Context(), in.Email, in.OTP); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, "Email verified.", nil)
}

func (a *API) handleResetPasswordRequest(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_007", "Invalid request body.")
		return
	}

	token, err := a.engine.RequestPasswordReset(r.Context(), in.Email)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	claims, err := a.engine.VerifyReset(token)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.setResetCookie(w, claims.AccountID, token)
	a.writeJSON(w, http.StatusCreated, "Password reset email sent.", nil)
}

// handleUpdatePassword completes the reset flow. The account ID and
// token arrive in the reset cookie, keeping the raw token out of
// request bodies and referrers.
func (a *API) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in updatePasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_008", "Invalid request body.")
		return
	}

	c, err := r.Cookie(resetCookieName)
	if err != nil || c.Value == "" {
		a.writeError(w, r, authflow.ErrResetInvalid)
		return
	}
	accountID, token, ok := strings.Cut(c.Value, ":")
	if !ok {
		a.clearResetCookie(w)
		a.writeError(w, r, authflow.ErrResetInvalid)
		return
	}

	if err := a.engine.ResetPassword(r.Context(), accountID, token, in.NewPassword); err != nil {
		if errors.Is(err, authflow.ErrResetInvalid) || errors.Is(err, authflow.ErrResetExpired) {
			a.clearResetCookie(w)
		}
		a.writeError(w, r, err)
		return
	}

	a.clearResetCookie(w)
	a.writeJSON(w, http.StatusCreated, "Password updated. You can log in now.", nil)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		a.writeBadRequest(w, "AUTH_008", "Invalid request body.")
		return
	}

	if err := a.engine.ChangePassword(r.Context(), a.sessionAccountID(r), in.CurrentPassword, in.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, "Password changed.", nil)
}

func (a *API) handleProviders(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusCreated, "", map[string]any{
		"publicProviders": a.engine.Providers(),
	})
}

func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteAccount(r.Context(), a.sessionAccountID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.clearSessionCookies(w)
	a.writeJSON(w, http.StatusOK, "Account deleted.", nil)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := a.engine.GetAccount(r.Context(), a.sessionAccountID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, "", map[string]any{"user": toDTO(account)})
}
