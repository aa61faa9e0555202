package model

// Role is the coarse authorization class of an identity, read from the
// `user_roles` table. Identities without a row are treated as RoleUser.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role name to a Role. Unknown values fall back to
// RoleUser so that a bad row never grants admin rights.
func ParseRole(v string) Role {
	if Role(v) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Profile holds the display attributes of an identity. It is only used in
// admin views and is never written by this service.
//
// Fields:
//  ID       – profiles.id (identity id)
//  FullName – profiles.full_name
//  Email    – profiles.email
//  Phone    – profiles.phone
type Profile struct {
	ID       string  `json:"id"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}
