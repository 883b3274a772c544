// Package entity defines the record kinds mirrored into the local cache.
package entity

import "strings"

// Kind identifies one cached entity kind.
// The set is closed: User, Game and LibraryItem.
type Kind string

const (
	KindUser        Kind = "user"
	KindGame        Kind = "game"
	KindLibraryItem Kind = "library_item"
)

// Kinds returns every kind in sweep order.
func Kinds() []Kind {
	return []Kind{KindUser, KindGame, KindLibraryItem}
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindGame, KindLibraryItem:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// User is a cached profile from the user service.
// Credentials are never cached.
type User struct {
	ID              int64  `json:"id"`
	RemoteID        string `json:"remote_id,omitempty"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	ProfilePhotoURI string `json:"profile_photo_uri,omitempty"`
}

// Game is a cached catalog entry from the game service.
type Game struct {
	ID          int64   `json:"id"`
	RemoteID    string  `json:"remote_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"image_url,omitempty"`
	Developer   string  `json:"developer"`
	ReleaseDate string  `json:"release_date"`
	CategoryID  int64   `json:"category_id"`
	GenreID     int64   `json:"genre_id"`
	Active      bool    `json:"active"`
	Discount    int     `json:"discount"`
}

// LibraryItem is one game owned by a user, cached from the library service.
type LibraryItem struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	GameID    string  `json:"game_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	DateAdded string  `json:"date_added"`
	Status    string  `json:"status"`
	Genre     string  `json:"genre"`
}

// UserKey returns the identity of u.
func UserKey(u User) int64 { return u.ID }

// GameKey returns the identity of g.
func GameKey(g Game) int64 { return g.ID }

// LibraryItemKey returns the identity of item.
func LibraryItemKey(item LibraryItem) int64 { return item.ID }

// Normalized returns u with the identifiers trimmed, as every store keeps them.
func (u User) Normalized() User {
	u.RemoteID = strings.TrimSpace(u.RemoteID)
	u.Email = strings.TrimSpace(u.Email)
	return u
}

// SameEmail compares two addresses after trimming, folding ASCII letters
// only. This matches SQLite's NOCASE collation.
func SameEmail(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
