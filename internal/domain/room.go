package domain

// Profile describes a member connected to a room.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
