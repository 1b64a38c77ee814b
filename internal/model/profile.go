// Package model defines the data structures used throughout the application.
//
// Two user-shaped records coexist and are never merged:
//   - LocalProfile: lightweight identity/progress record kept in local storage
//   - RemoteProfile: the backend's system-of-record profile, mirrored read-mostly
package model

import "time"

// LocalProfile is the locally synthesized profile. Exactly one is stored at a
// time, under a fixed key; writing a new one replaces it.
//
// Invariants (kept by service.SessionStore):
//   - Exp < progress.Threshold(Level)
//   - Gold >= 0
type LocalProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	Exp       int       `json:"exp"`
	Gold      int       `json:"gold"`
	CreatedAt time.Time `json:"createdAt"`
}

// RemoteProfile mirrors GET /api/user. It is overwritten wholesale on each
// fetch; Coin and Ruby may be patched locally in between.
//
// The optional fields are pointers because the backend sends null for them,
// and the profile page needs to tell "unset" from "empty".
type RemoteProfile struct {
	ID          int64   `json:"id"`
	CompanyName string  `json:"company_name"`
	UserName    *string `json:"user_name"`
	JobTitle    *string `json:"job_title"`
	AvatarData  *string `json:"avatar_data"` // data URI, e.g. "data:image/png;base64,..."
	Coin        int     `json:"coin"`
	Ruby        int     `json:"ruby"`
	Rank        string  `json:"rank"`
	OfficeLevel int     `json:"office_level"`
}

// DisplayName prefers the user name and falls back to the company name.
func (p *RemoteProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.UserName != nil && *p.UserName != "" {
		return *p.UserName
	}
	return p.CompanyName
}

// ProfilePatch is a shallow partial update of a LocalProfile.
// Nil fields are left untouched.
type ProfilePatch struct {
	Name  *string `json:"name,omitempty"`
	Level *int    `json:"level,omitempty"`
	Exp   *int    `json:"exp,omitempty"`
	Gold  *int    `json:"gold,omitempty"`
}

// ProfileUpdate is the body of PUT /api/users/me.
type ProfileUpdate struct {
	CompanyName string `json:"company_name"`
	UserName    string `json:"user_name"`
	JobTitle    string `json:"job_title"`
	AvatarData  string `json:"avatar_data"`
}
