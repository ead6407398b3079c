package seed

import (
	"bytes"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
)

// OwnerCard renders the owner's own contact card, seeded into the
// default address book from directory attributes.
func OwnerCard(displayName, email string) (uid, vcf string, err error) {
	uid = uuid.New().String()

	card := make(vcard.Card)
	card.SetValue(vcard.FieldUID, "urn:uuid:"+uid)
	card.SetValue(vcard.FieldFormattedName, displayName)
	if email != "" {
		card.SetValue(vcard.FieldEmail, email)
	}
	vcard.ToV4(card)

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return "", "", err
	}
	return uid, buf.String(), nil
}
