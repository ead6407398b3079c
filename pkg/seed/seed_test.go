package seed

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelcomeEvent(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	uid, ics, err := WelcomeEvent(now)
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, uid, events[0].Props.Get(ical.PropUID).Value)
	assert.Equal(t, "Welcome to your calendar", events[0].Props.Get(ical.PropSummary).Value)

	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, now, start)
}

func TestOwnerCard(t *testing.T) {
	uid, vcf, err := OwnerCard("Leo", "leo@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	card, err := vcard.NewDecoder(strings.NewReader(vcf)).Decode()
	require.NoError(t, err)
	assert.Equal(t, "Leo", card.Value(vcard.FieldFormattedName))
	assert.Equal(t, "leo@example.com", card.Value(vcard.FieldEmail))
	assert.Equal(t, "4.0", card.Value(vcard.FieldVersion))
	assert.Equal(t, "urn:uuid:"+uid, card.Value(vcard.FieldUID))
}

func TestOwnerCardWithoutEmail(t *testing.T) {
	_, vcf, err := OwnerCard("Leo", "")
	require.NoError(t, err)

	card, err := vcard.NewDecoder(strings.NewReader(vcf)).Decode()
	require.NoError(t, err)
	assert.Empty(t, card.Value(vcard.FieldEmail))
}
