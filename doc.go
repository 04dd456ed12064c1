// Package authflow implements the authentication core of a credential +
// OAuth login system: account registration, email verification via one-time
// codes, password reset and change flows, and signed session token issuance.
//
// The package is the public surface. It exposes [Engine], [Builder],
// [Config], the [AccountStore] and [Mailer] integration contracts, and the
// sentinel errors every flow returns. Storage adapters (pgstore, memstore),
// token signing (jwt), password hashing (password), and the HTTP boundary
// (httpapi) live in sub-packages.
//
// Engine methods are safe for concurrent use after [Builder.Build]. The
// engine holds no per-account locks; OTP and reset-token consumption rely on
// conditional writes in the AccountStore so that two concurrent validations
// of the same code cannot both succeed.
//
// All failures surface as typed sentinel errors and are propagated to the
// boundary unchanged. The engine never retries internally; apart from the
// email send in SendOTP and RequestPasswordReset (at-most-once per call),
// every operation is safe for the caller to retry.
package authflow
