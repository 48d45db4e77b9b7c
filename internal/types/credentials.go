package types

// Credentials is one login for one portal.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"-"`
}

// Complete reports whether both fields are set.
func (c Credentials) Complete() bool {
	return c.Email != "" && c.Password != ""
}

// String masks the password.
func (c Credentials) String() string {
	if c.Password == "" {
		return "Credentials{Email: " + c.Email + ", Password: <unset>}"
	}
	return "Credentials{Email: " + c.Email + ", Password: ****}"
}
