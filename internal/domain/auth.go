package domain

import "time"

// Token is a signed bearer credential handed to the client.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the result of a successful registration or login.
type Session struct {
	Account *Account
	Token   Token
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Role   *Role
	Search string
	Offset int
	Limit  int
}

// AccountPage is one page of accounts plus the unpaged total.
type AccountPage struct {
	Accounts []Account
	Total    int64
}

// RoleStats counts accounts of a single role.
type RoleStats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
	Locked int64 `json:"locked"`
}
