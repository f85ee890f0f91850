// Package initdata verifies the signed launch payload the mini-app host
// passes to the backend and extracts the caller's platform identity.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nightlab/exchange/internal/clock"
)

const (
	// BypassSentinel is the payload value accepted in test mode.
	BypassSentinel = "test_mode"
	// DefaultMaxAge bounds how old auth_date may be.
	DefaultMaxAge = 24 * time.Hour

	secretLabel = "WebAppData"
	hashField   = "hash"
	dateField   = "auth_date"
	userField   = "user"
)

// ErrAuth is the root of every authentication failure.
var ErrAuth = errors.New("auth failed")

// TestIdentity is returned for bypassed payloads.
var TestIdentity = Identity{ExternalID: 123456, Username: "test_user"}

// Identity is the authenticated platform user.
type Identity struct {
	ExternalID int64
	Username   string
}

// Options configure a Validator.
type Options struct {
	AllowBypass bool
	MaxAge      time.Duration
	Clock       clock.Clock
}

// Validator checks launch payload signatures against the bot token.
type Validator struct {
	secret      []byte
	allowBypass bool
	maxAge      time.Duration
	clock       clock.Clock
}

// NewValidator derives the signing key from the bot token.
func NewValidator(botToken string, opts Options) *Validator {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Validator{
		secret:      deriveSecret(botToken),
		allowBypass: opts.AllowBypass,
		maxAge:      opts.MaxAge,
		clock:       opts.Clock,
	}
}

// Validate authenticates raw and returns the embedded identity. Every
// failure wraps ErrAuth.
func (v *Validator) Validate(raw string) (Identity, error) {
	if raw == "" || raw == BypassSentinel {
		if v.allowBypass {
			return TestIdentity, nil
		}
		return Identity{}, authError("missing init data")
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return Identity{}, authError("malformed init data")
	}
	fields := parseFields(decoded)

	received, ok := fields[hashField]
	if !ok || received == "" {
		return Identity{}, authError("missing hash")
	}
	delete(fields, hashField)

	want, err := hex.DecodeString(received)
	if err != nil || !hmac.Equal(want, signature(v.secret, fields)) {
		return Identity{}, authError("invalid signature")
	}

	authDate, err := strconv.ParseInt(fields[dateField], 10, 64)
	if err != nil {
		return Identity{}, authError("invalid auth_date")
	}
	if v.clock.Now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return Identity{}, authError("expired")
	}

	return parseUser(fields[userField])
}

// Sign renders fields as a signed payload for botToken. Values are encoded
// so that Validate's single decode pass restores them.
func Sign(fields map[string]string, botToken string) string {
	clean := make(map[string]string, len(fields))
	for k, v := range fields {
		if k != hashField {
			clean[k] = v
		}
	}
	sum := hex.EncodeToString(signature(deriveSecret(botToken), clean))

	pairs := make([]string, 0, len(clean)+1)
	for _, k := range sortedKeys(clean) {
		pairs = append(pairs, k+"="+escape(clean[k]))
	}
	pairs = append(pairs, hashField+"="+sum)
	return strings.Join(pairs, "&")
}

// escape percent-encodes v. Spaces become %20 since Validate decodes with
// path semantics and leaves '+' untouched.
func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

func deriveSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(secretLabel))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func signature(secret []byte, fields map[string]string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(checkString(fields)))
	return mac.Sum(nil)
}

func checkString(fields map[string]string) string {
	keys := sortedKeys(fields)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + fields[k]
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseFields(decoded string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(decoded, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		fields[key] = value
	}
	return fields
}

type userPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func parseUser(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, authError("missing user")
	}
	var u userPayload
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return Identity{}, authError("invalid user payload")
	}
	if u.ID == 0 {
		return Identity{}, authError("missing user id")
	}
	return Identity{ExternalID: u.ID, Username: u.Username}, nil
}

// Error carries the reason a payload was rejected.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuth, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrAuth
}

func authError(reason string) error {
	return &Error{Reason: reason}
}

// Reason extracts the rejection reason from err, or "unknown".
func Reason(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return "unknown"
}
