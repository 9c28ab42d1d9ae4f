package rpkiuri

import "testing"

func TestParseRsync(t *testing.T) {
	u, err := ParseRsync("rsync://repo.example.com/module/ca.cer")
	if err != nil {
		t.Fatalf("ParseRsync: %v", err)
	}
	if u.String() != "rsync://repo.example.com/module/ca.cer" {
		t.Errorf("String() = %q", u.String())
	}
	if u.IsZero() {
		t.Errorf("parsed URI should not be zero")
	}

	if _, err := ParseRsync("https://repo.example.com/module/ca.cer"); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid for wrong scheme, got %v", err)
	}
}

func TestRsyncModule(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"rsync://repo.example.com/module/sub/ca.cer", "rsync://repo.example.com/module/"},
		{"rsync://repo.example.com/module", "rsync://repo.example.com/module"},
	}
	for _, c := range cases {
		u, err := ParseRsync(c.uri)
		if err != nil {
			t.Fatalf("ParseRsync(%q): %v", c.uri, err)
		}
		got, err := u.Module()
		if err != nil {
			t.Fatalf("Module(): %v", err)
		}
		if got != c.want {
			t.Errorf("Module() = %q, want %q", got, c.want)
		}
	}
}

func TestParseHttps(t *testing.T) {
	u, err := ParseHttps("https://rrdp.example.com/notify.xml")
	if err != nil {
		t.Fatalf("ParseHttps: %v", err)
	}
	if u.String() != "https://rrdp.example.com/notify.xml" {
		t.Errorf("String() = %q", u.String())
	}

	if _, err := ParseHttps("rsync://rrdp.example.com/notify.xml"); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid for wrong scheme, got %v", err)
	}
}

func TestParseTal(t *testing.T) {
	if _, err := ParseTal("rsync://ta.example.com/ta.cer"); err != nil {
		t.Errorf("rsync TAL should be accepted: %v", err)
	}
	if _, err := ParseTal("https://ta.example.com/ta.cer"); err != nil {
		t.Errorf("https TAL should be accepted: %v", err)
	}
	if _, err := ParseTal("ftp://ta.example.com/ta.cer"); err != ErrInvalid {
		t.Errorf("expected ErrInvalid for unsupported scheme, got %v", err)
	}
}
