package store

import "context"

// Attachment is the registry row that memo snapshots are resolved from.
// Blob storage itself lives outside this engine; only metadata is kept here.
type Attachment struct {
	ID       string
	UID      string
	Filename string
	Type     string
	Size     int64
	URL      string

	CreatedTs int64
}

// FindAttachment is the find condition for attachments.
type FindAttachment struct {
	ID  *string
	IDs []string
	UID *string
}

// DeleteAttachment is the delete condition for an attachment.
type DeleteAttachment struct {
	ID  string
	UID string
}

func (s *Store) CreateAttachment(ctx context.Context, create *Attachment) (*Attachment, error) {
	return s.driver.CreateAttachment(ctx, create)
}

func (s *Store) ListAttachments(ctx context.Context, find *FindAttachment) ([]*Attachment, error) {
	return s.driver.ListAttachments(ctx, find)
}

func (s *Store) DeleteAttachment(ctx context.Context, delete *DeleteAttachment) error {
	return s.driver.DeleteAttachment(ctx, delete)
}

// Snapshot converts the registry row to the denormalized form embedded in
// memo records.
func (a *Attachment) Snapshot() AttachmentSnapshot {
	return AttachmentSnapshot{
		ID:       a.ID,
		Filename: a.Filename,
		Type:     a.Type,
		Size:     a.Size,
		URL:      a.URL,
	}
}
