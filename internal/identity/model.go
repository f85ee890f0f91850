package identity

import "time"

// RoleUser is assigned to every self-registered account.
const RoleUser = "USER"

// User mirrors a chat-platform account that has opened the mini-app.
type User struct {
    ExternalID   int64
    Username     string
    Role         string
    Balance      int64
    ReferralCode string
    CreatedAt    time.Time
}
