package models

type User struct {
	ID           int64  `json:"id"`
	RoleID       int64  `json:"role_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DefaultRoleName is assigned to users created through /register.
const DefaultRoleName = "user"
