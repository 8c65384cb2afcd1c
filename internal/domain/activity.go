package domain

import "slices"

// Activity is an extracurricular offering together with its current roster.
type Activity struct {
	Description     string
	Schedule        string
	MaxParticipants int
	Participants    []string
}

// HasParticipant reports whether email is on the roster.
func (a Activity) HasParticipant(email string) bool {
	return slices.Contains(a.Participants, email)
}

// SpotsLeft returns the remaining capacity, never below zero.
func (a Activity) SpotsLeft() int {
	left := a.MaxParticipants - len(a.Participants)
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a copy that shares no backing storage with a.
func (a Activity) Clone() Activity {
	a.Participants = slices.Clone(a.Participants)
	if a.Participants == nil {
		a.Participants = []string{}
	}
	return a
}
