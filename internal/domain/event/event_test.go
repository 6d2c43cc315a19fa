package event

import "testing"

func TestDecodeRejectsUnknownSubject(t *testing.T) {
	if _, err := Decode("UserRenamed", []byte(`{}`)); err == nil {
		t.Fatal("expected an error for an unknown subject")
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode(SubjectUserCreated, []byte(`{not json`)); err == nil {
		t.Fatal("expected an error for a malformed payload")
	}
}
