package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStreamFor(t *testing.T) {
	tests := map[string]string{
		UserUpdated:        UserEventsStream,
		BillCreated:        BillEventsStream,
		BillDeleted:        BillEventsStream,
		DepositRecorded:    LedgerEventsStream,
		WithdrawalRecorded: LedgerEventsStream,
	}
	for eventType, want := range tests {
		if got := StreamFor(eventType); got != want {
			t.Errorf("StreamFor(%s) = %s, want %s", eventType, got, want)
		}
	}
}

func TestDecodeAfterWireRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Event{
		Type:      DepositRecorded,
		Timestamp: time.Now().UTC(),
		Data:      DepositRecordedEvent{DepositID: "dep-1", BillID: "bil-1", UserID: "usr-1", Amount: 2000},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var data DepositRecordedEvent
	if err := Decode(event, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.UserID != "usr-1" || data.Amount != 2000 {
		t.Errorf("unexpected payload: %+v", data)
	}
}
