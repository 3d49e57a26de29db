package app

// Identity is the caller of a chat turn: either a known user or a guest.
// Guests never touch persistence or retrieval, and every orchestrator step
// checks Known() rather than assuming a user is present.
type Identity struct {
	userID uint
}

func GuestIdentity() Identity {
	return Identity{}
}

func UserIdentity(userID uint) Identity {
	return Identity{userID: userID}
}

func (i Identity) Known() bool {
	return i.userID != 0
}

// UserID returns the user id for a known identity, 0 for guests.
func (i Identity) UserID() uint {
	return i.userID
}
