package history

import "testing"

func TestDecodeInputsLeniency(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"truncated json", `[{"id":"a"`},
		{"wrong shape", `{"id":"a"}`},
		{"json null", "null"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := decodeInputs(tc.raw); len(got) != 0 {
				t.Fatalf("decode %q = %d records, want empty", tc.raw, len(got))
			}
		})
	}
}

func TestDecodeOutputsKeepsStoredOrder(t *testing.T) {
	raw := `[{"id":"b","createdAt":"2025-06-01T12:00:01Z","image":"data:image/png;base64,BBB"},` +
		`{"id":"a","createdAt":"2025-06-01T12:00:00Z","image":"data:image/png;base64,AAA"}]`
	records := decodeOutputs(raw)
	if len(records) != 2 {
		t.Fatalf("decoded %d records, want 2", len(records))
	}
	if records[0].ID != "b" || records[1].ID != "a" {
		t.Fatalf("stored order not preserved: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := `[{"id":"a","createdAt":"2025-06-01T12:00:00Z","personSource":"user-uploaded","top":{"label":"denim jacket"}}]`
	records := decodeInputs(raw)
	if len(records) != 1 {
		t.Fatalf("decoded %d records, want 1", len(records))
	}
	if records[0].Top == nil || records[0].Top.Label != "denim jacket" {
		t.Fatalf("slot did not survive decoding: %+v", records[0].Top)
	}

	encoded, err := encodeRecords(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again := decodeInputs(encoded)
	if len(again) != 1 || again[0].ID != "a" || again[0].PersonSource != "user-uploaded" {
		t.Fatalf("round trip lost data: %+v", again)
	}
}
