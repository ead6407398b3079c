package auth

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
	"github.com/sonroyaalmerol/ldap-principals/internal/storage"
	"github.com/sonroyaalmerol/ldap-principals/pkg/seed"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultCalendarURI  = "default"
	defaultCalendarName = "Default Calendar"
	defaultBookURI      = "default"
	defaultBookName     = "Default Address Book"
)

// Provisioner creates a user's default calendar and address book on
// first login. The sole creation trigger is "owner has no collections
// of that kind", which makes repeated calls naturally idempotent.
type Provisioner struct {
	store  storage.Store
	logger zerolog.Logger
}

func NewProvisioner(store storage.Store, logger zerolog.Logger) *Provisioner {
	return &Provisioner{store: store, logger: logger}
}

func (p *Provisioner) EnsureDefaults(ctx context.Context, u *directory.User) error {
	cals, err := p.store.ListCalendarsByOwner(ctx, u.Name)
	if err != nil {
		return err
	}
	if len(cals) == 0 {
		cal, err := p.store.CreateCalendar(ctx, storage.Calendar{
			OwnerUID:    u.Name,
			URI:         defaultCalendarURI,
			DisplayName: defaultCalendarName,
		})
		if err != nil {
			return err
		}
		uid, ics, err := seed.WelcomeEvent(time.Now())
		if err != nil {
			return err
		}
		if err := p.store.PutCalendarObject(ctx, &storage.Object{
			CollectionID: cal.ID,
			UID:          uid,
			ETag:         uuid.New().String(),
			Data:         ics,
		}); err != nil {
			return err
		}
		p.logger.Info().Str("owner", u.Name).Msg("provisioned default calendar")
	}

	books, err := p.store.ListAddressBooksByOwner(ctx, u.Name)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		book, err := p.store.CreateAddressBook(ctx, storage.AddressBook{
			OwnerUID:    u.Name,
			URI:         defaultBookURI,
			DisplayName: defaultBookName,
		})
		if err != nil {
			return err
		}
		uid, vcf, err := seed.OwnerCard(u.DisplayName, u.Mail)
		if err != nil {
			return err
		}
		if err := p.store.PutAddressBookObject(ctx, &storage.Object{
			CollectionID: book.ID,
			UID:          uid,
			ETag:         uuid.New().String(),
			Data:         vcf,
		}); err != nil {
			return err
		}
		p.logger.Info().Str("owner", u.Name).Msg("provisioned default address book")
	}
	return nil
}
