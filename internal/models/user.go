package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleGuide UserRole = "guide"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleGuide, UserRoleAdmin:
		return true
	}
	return false
}

// User is the persisted account record. Secrets are only ever held as hashes.
type User struct {
	ID                       string     `bson:"_id"`
	FirstName                string     `bson:"firstName"`
	LastName                 string     `bson:"lastName"`
	Email                    string     `bson:"email"`
	PasswordHash             []byte     `bson:"password"`
	Role                     UserRole   `bson:"role"`
	IsVerified               bool       `bson:"isVerified"`
	Active                   bool       `bson:"active"`
	PasswordChangedAt        *time.Time `bson:"passwordChangedAt,omitempty"`
	EmailVerificationToken   string     `bson:"emailVerificationToken,omitempty"`
	EmailVerificationExpires *time.Time `bson:"emailVerificationExpires,omitempty"`
	PasswordResetToken       string     `bson:"passwordResetToken,omitempty"`
	PasswordResetExpires     *time.Time `bson:"passwordResetExpires,omitempty"`
	CreatedAt                time.Time  `bson:"createdAt"`
	UpdatedAt                time.Time  `bson:"updatedAt"`
	// Version is bumped on every write and guards read-modify-write cycles.
	Version int64 `bson:"version"`
}

// ChangedPasswordAfter reports whether the password was changed after a token
// issued at issuedAt. Both sides are compared at millisecond precision, the
// finest resolution every store keeps.
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.UnixMilli() > issuedAt.UnixMilli()
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
