package domain

// UserChannel is the per-user endpoint real-time mutation events arrive
// on. The name is backend-assigned and opaque; fetching an existing
// channel returns the same name instead of minting a new one.
type UserChannel struct {
	UserID   string
	Name     string
	Revision uint64
}

func (c UserChannel) ToRecord() Record {
	return Record{
		ID:       c.UserID,
		Type:     RecordTypeUserChannel,
		OwnerID:  c.UserID,
		Revision: c.Revision,
		Data:     map[string]any{"name": c.Name},
	}
}

func UserChannelFromRecord(r Record) UserChannel {
	return UserChannel{
		UserID:   r.OwnerID,
		Name:     r.String("name"),
		Revision: r.Revision,
	}
}
