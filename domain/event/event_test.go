package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatkit/domain"
)

func TestRecordEvent_EncodeDecode(t *testing.T) {
	req := require.New(t)
	record := domain.NewRecord(domain.RecordTypeMessage, "m1", "alice")
	record.Data["body"] = "hello"
	record.Revision = 3
	record.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	record.UpdatedAt = record.CreatedAt.Add(time.Minute)

	decoded, err := Decode(RecordEvent{Action: ActionUpdated, Record: record}.Encode())
	req.NoError(err)
	req.Equal(ActionUpdated, decoded.Action)
	req.Equal(record.ID, decoded.Record.ID)
	req.Equal(record.Type, decoded.Record.Type)
	req.Equal(record.OwnerID, decoded.Record.OwnerID)
	req.Equal(record.Revision, decoded.Record.Revision)
	req.True(record.CreatedAt.Equal(decoded.Record.CreatedAt))
	req.Equal("hello", decoded.Record.String("body"))
}

func TestDecode_RejectsMalformedPayloads(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown action":      {"event": "exploded", "record_type": "message", "record": map[string]any{}},
		"missing record_type": {"event": "created", "record": map[string]any{}},
		"missing record":      {"event": "created", "record_type": "message"},
	}
	for name, payload := range cases {
		t.Run("should reject a payload with "+name, func(t *testing.T) {
			_, err := Decode(payload)
			require.Error(t, err)
		})
	}
}
