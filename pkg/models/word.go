package models

import "time"

// WordList is a named collection of words studied together
type WordList struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Word represents a single vocabulary item inside a word list
type Word struct {
	ID            int64     `json:"id" db:"id"`
	ListID        int64     `json:"list_id" db:"list_id"`
	Term          string    `json:"term" db:"term"`
	Definition    string    `json:"definition" db:"definition"`
	Pronunciation string    `json:"pronunciation" db:"pronunciation"` // Optional phonetic hint or audio URL
	Position      int       `json:"position" db:"position"`           // Insertion order within the list
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
