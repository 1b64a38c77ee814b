package backend

import "github.com/sakif/crewcrew/internal/model"

// The backend answers loosely typed JSON ({success, message, ...}). Each
// call that can fail at the application level returns one of the sealed
// result types below, so callers switch on the variant instead of poking at
// optional fields. Transport failures are a separate error return.

// LoginResult is LoginAccepted or LoginRejected.
type LoginResult interface{ isLoginResult() }

// LoginAccepted carries the fields used to build the local profile.
type LoginAccepted struct {
	UserID      int64
	Username    string
	UserName    string
	CompanyName string
	IsDemo      bool
	Message     string
}

// LoginRejected carries the server's message verbatim.
type LoginRejected struct {
	Message string
}

func (LoginAccepted) isLoginResult() {}
func (LoginRejected) isLoginResult() {}

// DisplayName picks user_name, then username, then fallback.
func (a LoginAccepted) DisplayName(fallback string) string {
	switch {
	case a.UserName != "":
		return a.UserName
	case a.Username != "":
		return a.Username
	default:
		return fallback
	}
}

// PurchaseResult is PurchaseSucceeded or PurchaseRejected.
type PurchaseResult interface{ isPurchaseResult() }

// PurchaseSucceeded holds the authoritative balance after the purchase for
// the currency of Kind (new_coin for gadgets, new_ruby for personalities).
type PurchaseSucceeded struct {
	Kind       model.ItemKind
	NewBalance int
	Message    string
}

type PurchaseRejected struct {
	Message string
}

func (PurchaseSucceeded) isPurchaseResult() {}
func (PurchaseRejected) isPurchaseResult()  {}

// CollabResult is CollabCompleted or CollabFailed.
type CollabResult interface{ isCollabResult() }

type CollabCompleted struct {
	model.Collaboration
}

type CollabFailed struct {
	Message string
}

func (CollabCompleted) isCollabResult() {}
func (CollabFailed) isCollabResult()    {}
