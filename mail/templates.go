package mail

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #1a1a1a;">
    <h2>{{.AppName}}</h2>
    <p>Hi {{.Username}},</p>
    <p>Your verification code is:</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
    <p>It expires in {{.TTL}}. If you did not request it, you can ignore this email.</p>
  </body>
</html>
`))

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #1a1a1a;">
    <h2>{{.AppName}}</h2>
    <p>Hi {{.Username}},</p>
    <p>Someone requested a password reset for your account. The link below is valid for {{.TTL}}:</p>
    <p><a href="{{.Link}}">Reset your password</a></p>
    <p>If you did not request it, your password is unchanged and you can ignore this email.</p>
  </body>
</html>
`))

// OTPBody renders the verification-code email.
func OTPBody(appName, username, code string, ttl time.Duration) (string, error) {
	var b strings.Builder
	err := otpTemplate.Execute(&b, struct {
		AppName  string
		Username string
		Code     string
		TTL      string
	}{appName, username, code, humanTTL(ttl)})
	if err != nil {
		return "", fmt.Errorf("render otp mail: %w", err)
	}
	return b.String(), nil
}

// ResetBody renders the password-reset email. The link is
// baseURL/<accountID>/<token> with both path segments escaped.
func ResetBody(appName, username, baseURL, accountID, token string, ttl time.Duration) (string, error) {
	link := strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(accountID) + "/" + url.PathEscape(token)

	var b strings.Builder
	err := resetTemplate.Execute(&b, struct {
		AppName  string
		Username string
		Link     string
		TTL      string
	}{appName, username, link, humanTTL(ttl)})
	if err != nil {
		return "", fmt.Errorf("render reset mail: %w", err)
	}
	return b.String(), nil
}

func humanTTL(ttl time.Duration) string {
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		h := int(ttl / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(ttl / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
