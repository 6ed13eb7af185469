package domain

import "time"

// User is anyone who can sign in: customers, developers and owners.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        *string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// Profile is a User without credentials, safe to hand to other callers.
type Profile struct {
	ID        string
	Name      string
	Email     string
	Phone     *string
	Role      Role
	CreatedAt time.Time
}

// Developer is the assignment picker view of a developer account.
type Developer struct {
	ID   string
	Name string
}

// Profile drops the password hash.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
