package core

type (
	// User is the profile carried in the signed app token. Users are not
	// persisted; the token is the source of truth for identity.
	User struct {
		Subject   string `json:"subject"`
		Login     string `json:"login"`
		Email     string `json:"email,omitempty"`
		AvatarURL string `json:"avatarUrl,omitempty"`
		Name      string `json:"name"`
	}
)
