package models

// Account is the identity handed to us by the auth provider. It is never
// modified by this service.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Name returns the display name, falling back to the email like the auth
// provider's own profile screen does.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}
