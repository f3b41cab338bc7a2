package util

import "testing"

func TestHashOwnerKey(t *testing.T) {
	id := "account:12345"
	got := HashOwnerKey(id)
	if got != HashOwnerKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	if got == HashOwnerKey("account:12346") {
		t.Fatalf("expected distinct owners to hash differently")
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "cv.pdf", want: "cv.pdf"},
		{in: " dir/sub\\cv.pdf ", want: "dir_sub_cv.pdf"},
		{in: "../../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
