// Package vote holds the up/down toggle rules shared by every store backend.
package vote

import (
	"errors"
	"strings"
)

type Direction string

const (
	None Direction = ""
	Up   Direction = "up"
	Down Direction = "down"
)

var ErrInvalidDirection = errors.New("direction must be 'up' or 'down'")

// Parse normalizes a requested direction. Only up and down are accepted.
func Parse(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	default:
		return None, ErrInvalidDirection
	}
}

// Valid reports whether d is a stored vote value.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// Transition is the outcome of one toggle: the vote to store (None clears it)
// and the counter deltas to apply to the note.
type Transition struct {
	Next          Direction
	UpvoteDelta   int
	DownvoteDelta int
}

// Toggle applies a requested direction to the current vote.
//
//	none      + d -> d,    count(d) +1
//	d         + d -> none, count(d) -1
//	opposite  + d -> d,    count(old) -1, count(d) +1
func Toggle(current, requested Direction) Transition {
	var t Transition
	switch current {
	case Up:
		t.UpvoteDelta--
	case Down:
		t.DownvoteDelta--
	}
	if current == requested {
		t.Next = None
		return t
	}
	t.Next = requested
	switch requested {
	case Up:
		t.UpvoteDelta++
	case Down:
		t.DownvoteDelta++
	}
	return t
}

// Apply returns the counts after the transition. Counts never go below zero,
// which only matters for seeded or externally edited data.
func (t Transition) Apply(upvotes, downvotes int) (int, int) {
	return clamp(upvotes + t.UpvoteDelta), clamp(downvotes + t.DownvoteDelta)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
