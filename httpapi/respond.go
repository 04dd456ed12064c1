package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authflow"
)

// envelope is the JSON shape every response uses.
type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

// Stable machine codes, matched to the public error catalog clients
// already key on.
var errorCatalog = map[error]apiError{
	authflow.ErrAccountNotFound:        {http.StatusNotFound, "AUTH_017", "Email is not registered."},
	authflow.ErrEmailTaken:             {http.StatusBadRequest, "AUTH_016", "Email is already in use."},
	authflow.ErrEmailTakenUnverified:   {http.StatusBadRequest, "AUTH_012", "An account with this email already exists but is not verified."},
	authflow.ErrUsernameTaken:          {http.StatusBadRequest, "AUTH_013", "Username is already in use."},
	authflow.ErrInvalidCredentials:     {http.StatusUnauthorized, "AUTH_003", "Invalid email or password."},
	authflow.ErrEmailNotVerified:       {http.StatusForbidden, "AUTH_006", "Email has not been verified."},
	authflow.ErrAlreadyVerified:        {http.StatusBadRequest, "AUTH_009", "Email is already verified."},
	authflow.ErrNoPendingOTP:           {http.StatusBadRequest, "OTP_002", "Invalid OTP code."},
	authflow.ErrOTPExpired:             {http.StatusBadRequest, "OTP_001", "OTP has expired."},
	authflow.ErrOTPMismatch:            {http.StatusBadRequest, "OTP_002", "Invalid OTP code."},
	authflow.ErrProviderMismatch:       {http.StatusForbidden, "AUTH_002", "This account uses a different sign-in method."},
	authflow.ErrInvalidCurrentPassword: {http.StatusBadRequest, "AUTH_004", "Current password is incorrect."},
	authflow.ErrSamePassword:           {http.StatusBadRequest, "AUTH_005", "New password cannot be the same as the current password."},
	authflow.ErrResetInvalid:           {http.StatusUnauthorized, "JWT_001", "Invalid or expired token."},
	authflow.ErrResetExpired:           {http.StatusUnauthorized, "JWT_001", "Invalid or expired token."},
	authflow.ErrInvalidToken:           {http.StatusUnauthorized, "JWT_001", "Invalid or expired token."},
	authflow.ErrInvalidRefreshToken:    {http.StatusForbidden, "JWT_002", "Token refresh failed."},
	authflow.ErrMissingField:           {http.StatusBadRequest, "AUTH_007", "Required fields are missing."},
	authflow.ErrPasswordPolicy:         {http.StatusBadRequest, "AUTH_008", "Password does not meet the minimum requirements."},
	authflow.ErrLoginRateLimited:       {http.StatusTooManyRequests, "AUTH_015", "Too many attempts. Please try again later."},
	authflow.ErrOTPRateLimited:         {http.StatusTooManyRequests, "AUTH_015", "Too many attempts. Please try again later."},
	authflow.ErrResetRateLimited:       {http.StatusTooManyRequests, "AUTH_015", "Too many attempts. Please try again later."},
}

func (a *API) writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// writeError maps an engine error to the catalog. Unknown errors are
// logged with detail and surfaced as an opaque 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	a.writeErrorData(w, r, err, nil)
}

func (a *API) writeErrorData(w http.ResponseWriter, r *http.Request, err error, data any) {
	for sentinel, ae := range errorCatalog {
		if errors.Is(err, sentinel) {
			writeEnvelope(w, ae.status, envelope{
				Message: ae.message,
				Data:    data,
				Error:   &errorBody{Code: ae.code, Message: ae.message},
			})
			return
		}
	}

	a.log.Error("unhandled error", "path", r.URL.Path, "err", err)
	writeEnvelope(w, http.StatusInternalServerError, envelope{
		Message: "Something went wrong. Please try again later.",
		Error:   &errorBody{Code: "DB_001", Message: "Something went wrong. Please try again later."},
	})
}

func (a *API) writeBadRequest(w http.ResponseWriter, code, message string) {
	writeEnvelope(w, http.StatusBadRequest, envelope{
		Message: message,
		Error:   &errorBody{Code: code, Message: message},
	})
}

func (a *API) writeUnauthorized(w http.ResponseWriter) {
	writeEnvelope(w, http.StatusUnauthorized, envelope{
		Message: "You must be logged in to perform this action.",
		Error:   &errorBody{Code: "AUTH_001", Message: "You must be logged in to perform this action."},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
