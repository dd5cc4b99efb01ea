package domain

import (
	"fmt"
	"time"
)

// ReceiptStatus is the per-recipient delivery state of a message.
// Statuses only move forward: read implies delivered and a later mark
// never regresses an earlier one.
type ReceiptStatus string

const (
	ReceiptStatusDelivered ReceiptStatus = "delivered"
	ReceiptStatusRead      ReceiptStatus = "read"
)

// Supersedes reports whether s is a strictly later status than other.
func (s ReceiptStatus) Supersedes(other ReceiptStatus) bool {
	return s == ReceiptStatusRead && other == ReceiptStatusDelivered
}

// Receipt records one recipient's status for one message.
type Receipt struct {
	MessageID   string
	UserID      string
	Status      ReceiptStatus
	Revision    uint64
	DeliveredAt time.Time
	ReadAt      time.Time
}

// ReceiptID derives the record identifier; one receipt per
// (message, user) pair keeps marking idempotent.
func ReceiptID(messageID, userID string) string {
	return fmt.Sprintf("%s:%s", messageID, userID)
}

func (r Receipt) ToRecord() Record {
	data := map[string]any{
		"message_id": r.MessageID,
		"status":     string(r.Status),
	}
	if !r.DeliveredAt.IsZero() {
		data["delivered_at"] = r.DeliveredAt.Format(time.RFC3339Nano)
	}
	if !r.ReadAt.IsZero() {
		data["read_at"] = r.ReadAt.Format(time.RFC3339Nano)
	}
	return Record{
		ID:       ReceiptID(r.MessageID, r.UserID),
		Type:     RecordTypeReceipt,
		OwnerID:  r.UserID,
		Revision: r.Revision,
		Data:     data,
	}
}

func ReceiptFromRecord(r Record) Receipt {
	return Receipt{
		MessageID:   r.String("message_id"),
		UserID:      r.OwnerID,
		Status:      ReceiptStatus(r.String("status")),
		Revision:    r.Revision,
		DeliveredAt: r.Time("delivered_at"),
		ReadAt:      r.Time("read_at"),
	}
}
