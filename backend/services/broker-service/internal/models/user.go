package models

// User is the account that requests access to an endpoint.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Role     string `db:"role" json:"role"`
}

// Credentials are what the user presented when authenticating. They seed the
// standard parameter tokens.
type Credentials struct {
	Username       string `json:"username"`
	Password       string `json:"-"`
	RemoteAddress  string `json:"remote_address"`
	RemoteHostname string `json:"remote_hostname"`
}

// AuthenticatedUser pairs a user with the credentials of the current request.
type AuthenticatedUser struct {
	User        User
	Credentials Credentials
}

// UserAccount is the stored login row.
type UserAccount struct {
	User
	PasswordHash string `db:"password_hash" json:"-"`
}
