package horosafe

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://auniao.pb.gov.br/doe", false},
		{"http://93.184.216.34/file.pdf", false},
		{"ftp://example.com/data", true},
		{"file:///etc/passwd", true},
		{"http://127.0.0.1/admin", true},
		{"http://10.1.2.3/internal", true},
		{"http://192.168.0.10/", true},
		{"http://172.20.0.1/", true},
		{"http://[::1]/", true},
		{"http://0.0.0.0/", true},
		{"https:///nohost", true},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error=%v, wantErr=%v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateURL_Loopback_IsSSRF(t *testing.T) {
	if err := ValidateURL("http://127.0.0.1:8080/x"); !errors.Is(err, ErrSSRF) {
		t.Fatalf("got %v, want ErrSSRF", err)
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: %q %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: got %v, want ErrTooLarge", err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"grp_1", "a.b-c", "0199f0c2-7d1e-7a5b-9f00-aa11bb22cc33"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("%q: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "has space", "../x", strings.Repeat("a", 129), "é"} {
		if err := ValidateIdentifier(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
