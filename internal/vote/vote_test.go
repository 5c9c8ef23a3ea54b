package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse(" UP ")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	d, err = Parse("down")
	require.NoError(t, err)
	assert.Equal(t, Down, d)

	_, err = Parse("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestToggleFromNone(t *testing.T) {
	tr := Toggle(None, Up)
	assert.Equal(t, Transition{Next: Up, UpvoteDelta: 1}, tr)

	tr = Toggle(None, Down)
	assert.Equal(t, Transition{Next: Down, DownvoteDelta: 1}, tr)
}

func TestToggleSameDirectionClears(t *testing.T) {
	tr := Toggle(Up, Up)
	assert.Equal(t, Transition{Next: None, UpvoteDelta: -1}, tr)

	tr = Toggle(Down, Down)
	assert.Equal(t, Transition{Next: None, DownvoteDelta: -1}, tr)
}

func TestToggleSwitchMovesOneVote(t *testing.T) {
	tr := Toggle(Up, Down)
	assert.Equal(t, Down, tr.Next)
	assert.Equal(t, -1, tr.UpvoteDelta)
	assert.Equal(t, 1, tr.DownvoteDelta)
	assert.Zero(t, tr.UpvoteDelta+tr.DownvoteDelta, "total votes must not change")

	up, down := tr.Apply(234, 12)
	assert.Equal(t, 233, up)
	assert.Equal(t, 13, down)
}

func TestToggleTwiceRoundTrips(t *testing.T) {
	for _, dir := range []Direction{Up, Down} {
		up, down := 10, 4
		current := None

		first := Toggle(current, dir)
		up, down = first.Apply(up, down)
		current = first.Next

		second := Toggle(current, dir)
		up, down = second.Apply(up, down)

		assert.Equal(t, None, second.Next)
		assert.Equal(t, 10, up, "upvotes after double %s", dir)
		assert.Equal(t, 4, down, "downvotes after double %s", dir)
	}
}

func TestApplyClampsAtZero(t *testing.T) {
	up, down := Toggle(Up, Up).Apply(0, 0)
	assert.Equal(t, 0, up)
	assert.Equal(t, 0, down)
}
