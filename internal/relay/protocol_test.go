package relay

import (
	"strings"
	"testing"
)

func TestServerMessages_WireShape(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  []string
	}{
		{"data", DataMessage("hello"), []string{`"type":"data"`, `"data":"hello"`}},
		{"connected", ConnectedMessage(), []string{`"type":"connected"`}},
		{"exit", ExitMessage(137), []string{`"type":"exit"`, `"code":137`}},
		{"error", ErrorMessage("nope"), []string{`"type":"error"`, `"message":"nope"`}},
	}
	for _, tt := range tests {
		got := string(tt.frame)
		for _, want := range tt.want {
			if !strings.Contains(got, want) {
				t.Errorf("%s frame %s missing %s", tt.name, got, want)
			}
		}
	}
}

func TestExitMessage_ZeroCodePresent(t *testing.T) {
	got := string(ExitMessage(0))
	if !strings.Contains(got, `"code":0`) {
		t.Errorf("exit frame must carry code 0 explicitly, got %s", got)
	}
}

func TestParseClientMessage_Input(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"input","data":"ls -la\n"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}
	if msg.Type != TypeInput || msg.Data != "ls -la\n" {
		t.Errorf("got %+v", msg)
	}
}

func TestParseClientMessage_Resize(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"resize","cols":120,"rows":40}`))
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}
	if msg.Type != TypeResize || msg.Cols != 120 || msg.Rows != 40 {
		t.Errorf("got %+v", msg)
	}
}

func TestParseClientMessage_Rejects(t *testing.T) {
	bad := []string{
		`not json`,
		`{"type":"resize","cols":80.5,"rows":24}`, // fractional dimensions
		`{"type":"resize","cols":"80","rows":24}`,
		``,
	}
	for _, raw := range bad {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Errorf("ParseClientMessage(%q) should fail", raw)
		}
	}
}
