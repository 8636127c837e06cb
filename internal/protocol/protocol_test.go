package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestMessageKinds(t *testing.T) {
	req, err := NewRequest(1, MethodInitialize, InitializeParams{})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	note, err := NewNotification(MethodInitialized, struct{}{})
	if err != nil {
		t.Fatalf("NewNotification failed: %v", err)
	}
	resp, err := NewResponse(req.ID, nil)
	if err != nil {
		t.Fatalf("NewResponse failed: %v", err)
	}

	tests := []struct {
		name               string
		msg                *Message
		req, notif, answer bool
	}{
		{"request", req, true, false, false},
		{"notification", note, false, true, false},
		{"response", resp, false, false, true},
		{"error response", NewErrorResponse(req.ID, CodeMethodNotFound, "nope"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.IsRequest() != tt.req {
				t.Errorf("IsRequest() = %v, want %v", tt.msg.IsRequest(), tt.req)
			}
			if tt.msg.IsNotification() != tt.notif {
				t.Errorf("IsNotification() = %v, want %v", tt.msg.IsNotification(), tt.notif)
			}
			if tt.msg.IsResponse() != tt.answer {
				t.Errorf("IsResponse() = %v, want %v", tt.msg.IsResponse(), tt.answer)
			}
		})
	}
}

func TestNewResponse_NullResult(t *testing.T) {
	resp, err := NewResponse(NumericID(4), nil)
	if err != nil {
		t.Fatalf("NewResponse failed: %v", err)
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"result":null`) {
		t.Errorf("Expected explicit null result, got %s", b)
	}
}

func TestIDKey(t *testing.T) {
	if IDKey(json.RawMessage(" 7 ")) != "7" {
		t.Error("IDKey should trim whitespace")
	}
	if IDKey(json.RawMessage(`"7"`)) == IDKey(json.RawMessage(`7`)) {
		t.Error("string and numeric ids must stay distinct")
	}
}

func TestFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	first, _ := NewRequest(1, MethodInitialize, map[string]string{"a": "b"})
	second, _ := NewNotification(MethodDidOpen, DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: "file:///a.cdc", LanguageID: LanguageID, Version: 1, Text: "pub fun main() {}"},
	})
	for _, m := range []*Message{first, second} {
		if err := w.Write(m); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if !strings.HasPrefix(buf.String(), "Content-Length: ") {
		t.Fatalf("Expected Content-Length header, got %q", buf.String())
	}

	r := NewReader(&buf)
	got1, err := r.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got1.Method != MethodInitialize || got1.IDKey() != "1" {
		t.Errorf("Unexpected first message: %+v", got1)
	}

	got2, err := r.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var params DidOpenTextDocumentParams
	if err := got2.DecodeParams(&params); err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	if params.TextDocument.URI != "file:///a.cdc" {
		t.Errorf("Expected uri file:///a.cdc, got %s", params.TextDocument.URI)
	}

	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF at end of stream, got %v", err)
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing length", "Content-Type: x\r\n\r\n{}"},
		{"bad length", "Content-Length: abc\r\n\r\n{}"},
		{"malformed header", "garbage\r\n\r\n"},
		{"truncated body", "Content-Length: 10\r\n\r\n{}"},
		{"invalid json", "Content-Length: 3\r\n\r\n{x}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewReader(strings.NewReader(tt.input)).Read(); err == nil || err == io.EOF {
				t.Errorf("Expected a decode error, got %v", err)
			}
		})
	}
}

func TestReader_ExtraHeaders(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"exit"}`
	input := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\ncontent-length: " +
		itoa(len(body)) + "\r\n\r\n" + body
	msg, err := NewReader(strings.NewReader(input)).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !msg.IsNotification() || msg.Method != MethodExit {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestDecodeAddress(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"0x01.Foo"`, "0x01.Foo", true},
		{`{"address":"0x02.Bar"}`, "0x02.Bar", true},
		{`["0x03.Baz"]`, "0x03.Baz", true},
		{`42`, "", false},
		{`{}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := DecodeAddress(json.RawMessage(tt.raw))
			if got != tt.want || ok != tt.ok {
				t.Errorf("DecodeAddress(%s) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDiagnosticSeverity_String(t *testing.T) {
	if SeverityError.String() != "error" || SeverityHint.String() != "hint" || DiagnosticSeverity(0).String() != "unknown" {
		t.Error("unexpected severity names")
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
