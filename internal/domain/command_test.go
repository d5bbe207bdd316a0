package domain

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
		wantErr bool
	}{
		{"fetch all", `{"type":"fetch-all"}`, Command{Kind: CmdFetchAll}, false},
		{"cleanup", `{"type":"cleanup"}`, Command{Kind: CmdCleanup}, false},
		{"backfill", `{"type":"backfill-history"}`, Command{Kind: CmdBackfillHistory}, false},
		{
			"fetch region",
			`{"type":"fetch-region","region":"10000002"}`,
			Command{Kind: CmdFetchRegion, RegionID: 10000002},
			false,
		},
		{
			"forced fetch region",
			`{"type":"fetch-region","region":"10000043","force":true}`,
			Command{Kind: CmdFetchRegion, RegionID: 10000043, Force: true},
			false,
		},
		{"region missing", `{"type":"fetch-region"}`, Command{}, true},
		{"region not numeric", `{"type":"fetch-region","region":"jita"}`, Command{}, true},
		{"unknown type", `{"type":"reboot"}`, Command{}, true},
		{"malformed json", `{"type":`, Command{}, true},
		{"empty payload", ``, Command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand(%q) succeeded, want error", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestCommandEncodeRoundTrip(t *testing.T) {
	orig := Command{Kind: CmdFetchRegion, RegionID: 10000002, Force: true}

	payload, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := ParseCommand(payload)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if got != orig {
		t.Errorf("round trip = %+v, want %+v", got, orig)
	}
}
