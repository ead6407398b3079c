package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/ldap-principals/internal/storage"
)

func (s *Store) ListCalendarsByOwner(ctx context.Context, ownerUID string) ([]*storage.Calendar, error) {
	rows, err := s.pool.Query(ctx, `
        select id::text, owner_uid, uri, display_name, description, color, ctag, created_at, updated_at
        from calendars where owner_uid = $1`, ownerUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*storage.Calendar
	for rows.Next() {
		var c storage.Calendar
		if err := rows.Scan(&c.ID, &c.OwnerUID, &c.URI, &c.DisplayName, &c.Description, &c.Color, &c.CTag, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCalendar(ctx context.Context, c storage.Calendar) (*storage.Calendar, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CTag == "" {
		c.CTag = uuid.New().String()
	}
	if c.Color == "" {
		c.Color = "#3174ad"
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
        insert into calendars (id, owner_uid, uri, display_name, description, color, ctag, created_at, updated_at)
        values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $8)
    `, c.ID, c.OwnerUID, c.URI, c.DisplayName, c.Description, c.Color, c.CTag, now)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) PutCalendarObject(ctx context.Context, o *storage.Object) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
        insert into calendar_objects (id, calendar_id, uid, etag, data, updated_at)
        values ($1::uuid, $2::uuid, $3, $4, $5, $6)
        on conflict (calendar_id, uid)
        do update set etag = excluded.etag, data = excluded.data, updated_at = excluded.updated_at
    `, o.ID, o.CollectionID, o.UID, o.ETag, o.Data, o.UpdatedAt)
	return err
}

func (s *Store) ListAddressBooksByOwner(ctx context.Context, ownerUID string) ([]*storage.AddressBook, error) {
	rows, err := s.pool.Query(ctx, `
        select id::text, owner_uid, uri, display_name, description, ctag, created_at, updated_at
        from addressbooks where owner_uid = $1`, ownerUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*storage.AddressBook
	for rows.Next() {
		var a storage.AddressBook
		if err := rows.Scan(&a.ID, &a.OwnerUID, &a.URI, &a.DisplayName, &a.Description, &a.CTag, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAddressBook(ctx context.Context, a storage.AddressBook) (*storage.AddressBook, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CTag == "" {
		a.CTag = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
        insert into addressbooks (id, owner_uid, uri, display_name, description, ctag, created_at, updated_at)
        values ($1::uuid, $2, $3, $4, $5, $6, $7, $7)
    `, a.ID, a.OwnerUID, a.URI, a.DisplayName, a.Description, a.CTag, now)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) PutAddressBookObject(ctx context.Context, o *storage.Object) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
        insert into addressbook_objects (id, addressbook_id, uid, etag, data, updated_at)
        values ($1::uuid, $2::uuid, $3, $4, $5, $6)
        on conflict (addressbook_id, uid)
        do update set etag = excluded.etag, data = excluded.data, updated_at = excluded.updated_at
    `, o.ID, o.CollectionID, o.UID, o.ETag, o.Data, o.UpdatedAt)
	return err
}
