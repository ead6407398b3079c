// Package storage defines the provisioning contract the auth backend
// consumes: listing and creating a principal's calendars and address
// books, plus seeding their initial objects. The directory itself is
// never persisted here.
package storage

import (
	"context"
	"time"
)

type Calendar struct {
	ID          string
	OwnerUID    string
	URI         string
	DisplayName string
	Description string
	Color       string
	CTag        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AddressBook struct {
	ID          string
	OwnerUID    string
	URI         string
	DisplayName string
	Description string
	CTag        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Object is a stored calendar or address-book entry (ICS or VCF
// payload).
type Object struct {
	ID           string
	CollectionID string
	UID          string
	ETag         string
	Data         string
	UpdatedAt    time.Time
}

type Store interface {
	Close()

	ListCalendarsByOwner(ctx context.Context, ownerUID string) ([]*Calendar, error)
	CreateCalendar(ctx context.Context, c Calendar) (*Calendar, error)
	PutCalendarObject(ctx context.Context, o *Object) error

	ListAddressBooksByOwner(ctx context.Context, ownerUID string) ([]*AddressBook, error)
	CreateAddressBook(ctx context.Context, a AddressBook) (*AddressBook, error)
	PutAddressBookObject(ctx context.Context, o *Object) error
}
