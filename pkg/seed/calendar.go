// Package seed builds the initial objects placed into freshly
// provisioned default collections.
package seed

import (
	"bytes"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const prodID = "-//ldap-principals//principal bridge//EN"

// WelcomeEvent renders a short event dropped into a user's default
// calendar on first login, so clients show something other than an
// empty collection.
func WelcomeEvent(now time.Time) (uid, ics string, err error) {
	uid = uuid.New().String()
	now = now.UTC().Truncate(time.Second)

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, uid)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now)
	ev.Props.SetDateTime(ical.PropDateTimeStart, now)
	ev.Props.SetDateTime(ical.PropDateTimeEnd, now.Add(30*time.Minute))
	ev.Props.SetText(ical.PropSummary, "Welcome to your calendar")

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, ev.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", "", err
	}
	return uid, buf.String(), nil
}
