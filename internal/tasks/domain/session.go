package domain

// Session is the authenticated principal carried between requests. IsAdmin
// is resolved once at login time from the provider's group claims and is
// not re-evaluated until the next login.
type Session struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}
