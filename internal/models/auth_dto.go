package models

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignInRequest struct {
	// Identifier is an email or a username.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	// Remember asks for a persistent ("remember me") session.
	Remember bool `json:"remember"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
