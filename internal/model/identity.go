package model

import "time"

// Identity is a registered principal as stored in the `users` collection.
// PasswordHash never leaves the repository layer except for credential
// checks; handlers render a PublicIdentity instead.
//
// Fields:
//  UserID       – external identifier (user_<random>), unique.
//  UserName     – display name.
//  UserEmail    – unique, lowercased email address.
//  PasswordHash – bcrypt hash of the password.
//  IsMfaEnabled – multi-factor flag, informational only.
//  Roles        – non-empty role set drawn from the role registry.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Identity struct {
    UserID       string    `bson:"userId"`
    UserName     string    `bson:"userName"`
    UserEmail    string    `bson:"userEmail"`
    PasswordHash string    `bson:"userPassword"`
    IsMfaEnabled bool      `bson:"isMfaEnabled"`
    Roles        []string  `bson:"roles"`
    CreatedAt    time.Time `bson:"createdAt"`
    UpdatedAt    time.Time `bson:"updatedAt"`
}

// PublicIdentity is the sanitized identity returned to clients.
type PublicIdentity struct {
    UserID       string   `json:"userId"`
    UserName     string   `json:"userName"`
    UserEmail    *string  `json:"userEmail"`
    IsMfaEnabled bool     `json:"isMfaEnabled"`
    Roles        []string `json:"roles"`
}

// Sanitize drops the password hash. Guests have no email and render null.
func (u *Identity) Sanitize() PublicIdentity {
    var email *string
    if u.UserEmail != "" {
        e := u.UserEmail
        email = &e
    }
    roles := make([]string, len(u.Roles))
    copy(roles, u.Roles)
    return PublicIdentity{
        UserID:       u.UserID,
        UserName:     u.UserName,
        UserEmail:    email,
        IsMfaEnabled: u.IsMfaEnabled,
        Roles:        roles,
    }
}

// IdentityFilter narrows the admin user listing.
type IdentityFilter struct {
    Search string // case-insensitive match on name or email
    Role   string // exact role membership
    Page   int64  // 1-based
    Limit  int64
}
