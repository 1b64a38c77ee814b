package model

import "time"

// Crew is one AI character on the user's roster. Level and Exp follow the
// same rules as LocalProfile (see package progress).
type Crew struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Level     int       `json:"level"`
	Exp       int       `json:"exp"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
