package api

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestWebSocketClosedFormat(t *testing.T) {
	data, err := json.Marshal(NewWebSocketClosed("123", "Disconnected.", 4014, false))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"op":"event","type":"WebSocketClosedEvent","guildId":"123","reason":"Disconnected.","code":4014,"byRemote":false}`
	if string(data) != want {
		t.Errorf("\n got: %s\nwant: %s", data, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		op    Op
		guild string
		err   error
	}{
		{in: `{"op":"stop","guildId":"1"}`, op: OpStop, guild: "1"},
		{in: `{"op":"configureResuming","key":"k","timeout":5}`, op: OpConfigureResuming},
		{in: `{"guildId":"1"}`, err: ErrMalformed},
		{in: `not json`, err: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			in, err := Parse([]byte(tt.in))
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if err == nil && (in.Op != tt.op || in.GuildId != tt.guild) {
				t.Errorf("wrong result %+v", in)
			}
		})
	}

	rq := Unwrap[ConfigureResumingRequest]([]byte(`{"op":"configureResuming","key":"k","timeout":5}`))
	if rq == nil || rq.Key != "k" || rq.Timeout != 5 {
		t.Errorf("wrong request %+v", rq)
	}
}
