package authflow

import "errors"

var (
	// ErrAccountNotFound is returned when no account matches the given
	// email, username, or id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned by Register when the email belongs to a
	// verified account.
	ErrEmailTaken = errors.New("email already taken")
	// ErrEmailTakenUnverified is the distinguished Register conflict for an
	// email bound to an account that never completed verification. Callers
	// should offer to resend the OTP instead of failing outright.
	ErrEmailTakenUnverified = errors.New("email already taken by an unverified account")
	// ErrUsernameTaken is returned by Register when the username is in use.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers a wrong password at login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailNotVerified rejects login for accounts that have not
	// completed OTP verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAlreadyVerified rejects an OTP request for an account that has
	// already completed verification.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrNoPendingOTP is returned by ValidateOTP when no code is on file,
	// including when a concurrent validation consumed it first.
	ErrNoPendingOTP = errors.New("no pending otp")
	// ErrOTPExpired is returned when the stored code is past its expiry.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPMismatch is returned when the submitted code differs from the
	// stored one.
	ErrOTPMismatch = errors.New("invalid otp code")
	// ErrProviderMismatch rejects password operations (and credential
	// login) for accounts federated through an OAuth provider.
	ErrProviderMismatch = errors.New("account is connected through an external provider")
	// ErrInvalidCurrentPassword is returned by ChangePassword when the
	// supplied current password does not match.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	// ErrSamePassword rejects a password change or reset whose new password
	// equals the one already stored.
	ErrSamePassword = errors.New("new password must differ from the current password")
	// ErrResetInvalid covers a reset token that is absent, already
	// consumed, or does not match the stored copy.
	ErrResetInvalid = errors.New("password reset token invalid")
	// ErrResetExpired is returned when the stored reset token is past its
	// expiry window.
	ErrResetExpired = errors.New("password reset token expired")
	// ErrInvalidToken is returned when a session token fails signature,
	// structure, or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRefreshToken is the refresh-path equivalent of
	// ErrInvalidToken. A token signed with the access secret fails here.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrMissingField rejects a request whose required identity fields
	// (username, email) are empty.
	ErrMissingField = errors.New("required field missing")
	// ErrPasswordPolicy rejects passwords below the configured minimum.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrLoginRateLimited is returned when the login throttle is exceeded.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrOTPRateLimited is returned when the OTP request throttle is
	// exceeded.
	ErrOTPRateLimited = errors.New("otp request rate limited")
	// ErrResetRateLimited is returned when the reset request throttle is
	// exceeded.
	ErrResetRateLimited = errors.New("password reset rate limited")
	// ErrEngineNotReady signals a misconfigured engine (missing store,
	// mailer, or token manager).
	ErrEngineNotReady = errors.New("engine not initialized")
)
