package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModerator_Masks_Blacklisted_Words(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"idiot", "moron"}, '*')
	req.NoError(err)

	req.Equal("what an *****", moderator.Censor("what an idiot"))
	req.Equal("***** and *****", moderator.Censor("idiot and moron"))
}

func TestModerator_Is_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	req.Equal("*****!", moderator.Censor("IdIoT!"))
}

func TestModerator_Catches_Separator_Padding(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	// The whole padded span is masked, separators included
	req.Equal("*********", moderator.Censor("i-d-i-o-t"))
}

func TestModerator_Leaves_Clean_Text_Alone(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	input := "perfectly polite message"
	req.Equal(input, moderator.Censor(input))
}

func TestModerator_Rejects_Empty_Wordlist(t *testing.T) {
	req := require.New(t)
	_, err := NewModerator(nil, '*')
	req.Error(err)
}

func TestEmbeddedModerator_Loads_Shipped_Lists(t *testing.T) {
	req := require.New(t)
	moderator, err := NewEmbeddedModerator('*')
	req.NoError(err)

	// one word from each shipped language list
	req.Equal("*****", moderator.Censor("idiot"))
	req.Equal("********", moderator.Censor("imbecile"))
}
