package models

import "time"

type User struct {
	ID                int64
	Email             string
	Username          string
	PassHash          string
	Salt              string
	VerificationToken *string
}

// IsVerified reports whether the user has confirmed their email address.
func (u *User) IsVerified() bool {
	return u.VerificationToken == nil
}

// UserInfo is the public projection of a user returned by the API.
type UserInfo struct {
	ID       int64  `json:"id,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (u *User) Info() UserInfo {
	return UserInfo{Email: u.Email, Username: u.Username}
}

// RefreshToken is a session-bound refresh token record. Records are replaced, never updated.
type RefreshToken struct {
	UserID     int64
	Token      string
	SessionID  string
	ExpiryDate time.Time
}

// IsActive reports whether the record is still usable at the given moment.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.ExpiryDate.After(now)
}

type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
}

type UserGame struct {
	GameID int64 `json:"gameId"`
	Liked  *bool `json:"liked,omitempty"`
	Played *bool `json:"played,omitempty"`
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

// Friendship links a requester (UserID1) and an addressee (UserID2).
type Friendship struct {
	ID        int64            `json:"id"`
	UserID1   int64            `json:"userId1"`
	UserID2   int64            `json:"userId2"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// FriendshipView is a friendship seen from one of its participants.
type FriendshipView struct {
	ID        int64            `json:"id"`
	Received  bool             `json:"received"`
	Friend    UserInfo         `json:"friend"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type Property struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required"`
}

type Artwork struct {
	ID      int64  `json:"id"`
	ImageID string `json:"image_id" validate:"required"`
}

// Game is a catalog entry as returned to clients.
type Game struct {
	ID               int64      `json:"id" validate:"required"`
	Name             string     `json:"name" validate:"required"`
	Artworks         []Artwork  `json:"artworks" validate:"required,dive"`
	Category         *int       `json:"category" validate:"required"`
	FirstReleaseDate int64      `json:"first_release_date" validate:"required"`
	Franchise        *Property  `json:"franchise,omitempty" validate:"omitempty"`
	Genres           []Property `json:"genres" validate:"required,dive"`
	Keywords         []Property `json:"keywords,omitempty" validate:"omitempty,dive"`
	TotalRating      *float64   `json:"total_rating" validate:"required"`
	TotalRatingCount *int       `json:"total_rating_count" validate:"required"`
}
