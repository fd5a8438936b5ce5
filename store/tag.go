package store

import "context"

// Tag is a name-normalized tag registry entry. Names are case-insensitive
// unique per owner; the stored form preserves the original casing.
type Tag struct {
	ID   string
	UID  string
	Name string
	// Color is optional presentation metadata.
	Color *string
	// UsageCount is maintained by the memo coordinator, never inferred by the
	// tag service from memo content.
	UsageCount int
	CreatedTs  int64
	UpdatedTs  int64
}

// FindTag is the find condition for tags. NameLower matches lower(name).
type FindTag struct {
	ID        *string
	IDs       []string
	UID       *string
	NameLower *string
}

// UpdateTag carries a partial tag update.
type UpdateTag struct {
	ID  string
	UID string

	Name       *string
	Color      *string
	ClearColor bool
	UpdatedTs  *int64
}

// DeleteTag is the delete condition for a tag.
type DeleteTag struct {
	ID  string
	UID string
}

func (s *Store) CreateTag(ctx context.Context, create *Tag) (*Tag, error) {
	return s.driver.CreateTag(ctx, create)
}

func (s *Store) ListTags(ctx context.Context, find *FindTag) ([]*Tag, error) {
	return s.driver.ListTags(ctx, find)
}

func (s *Store) UpdateTag(ctx context.Context, update *UpdateTag) error {
	return s.driver.UpdateTag(ctx, update)
}

func (s *Store) DeleteTag(ctx context.Context, delete *DeleteTag) error {
	return s.driver.DeleteTag(ctx, delete)
}

// AdjustTagUsage applies delta to a tag's usage counter, flooring at zero.
func (s *Store) AdjustTagUsage(ctx context.Context, id, uid string, delta int) error {
	return s.driver.AdjustTagUsage(ctx, id, uid, delta)
}
