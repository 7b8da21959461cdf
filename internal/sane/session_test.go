package sane

import (
	"errors"
	"testing"

	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

func TestInitReportsVersion(t *testing.T) {
	b := mock.New()
	b.VersionCode = int32(NewVersion(1, 2, 3))
	s, v, err := Init(b, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Close()

	if v.Major() != 1 || v.Minor() != 2 || v.Build() != 3 {
		t.Errorf("version = %s, want 1.2.3", v)
	}
	if s.Version() != v {
		t.Errorf("Session.Version() = %s, want %s", s.Version(), v)
	}
}

func TestInitTwicePanics(t *testing.T) {
	newSession(t, mock.New(), nil)
	mustPanic(t, "second Init", func() { Init(mock.New(), nil) })
}

func TestInitFailureAllowsRetry(t *testing.T) {
	b := mock.New()
	b.InitStatus = sys.StatusIOError
	if _, _, err := Init(b, nil); !errors.Is(err, ErrIOError) {
		t.Fatalf("Init error = %v, want ErrIOError", err)
	}
	if authHandler != nil {
		t.Error("auth handler kept after failed Init")
	}

	b.InitStatus = sys.StatusGood
	newSession(t, b, nil)
	if got := b.Counts().Init; got != 2 {
		t.Errorf("Init calls = %d, want 2", got)
	}
}

func TestCloseExitsOnce(t *testing.T) {
	b := mock.New()
	s, _, err := Init(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close()
	if got := b.Counts().Exit; got != 1 {
		t.Errorf("Exit calls = %d, want 1", got)
	}

	// The library may be initialized again after Close.
	newSession(t, b, nil)
}

func TestClosedSessionPanics(t *testing.T) {
	b := mock.New()
	s, _, err := Init(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	mustPanic(t, "Devices after Close", func() { s.Devices(false) })
}

func TestVersion(t *testing.T) {
	tests := []struct {
		code  Version
		major uint8
		minor uint8
		build uint16
		str   string
	}{
		{NewVersion(1, 0, 0), 1, 0, 0, "1.0.0"},
		{Version(0x01020304), 1, 2, 0x0304, "1.2.772"},
		{Version(-1), 0xff, 0xff, 0xffff, "255.255.65535"},
	}
	for _, tt := range tests {
		if tt.code.Major() != tt.major || tt.code.Minor() != tt.minor || tt.code.Build() != tt.build {
			t.Errorf("%#x = %d.%d.%d, want %d.%d.%d", int32(tt.code),
				tt.code.Major(), tt.code.Minor(), tt.code.Build(), tt.major, tt.minor, tt.build)
		}
		if got := tt.code.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
	}
	if LibVersion != NewVersion(sys.CurrentMajor, sys.CurrentMinor, 0) {
		t.Errorf("LibVersion = %s", LibVersion)
	}
}

func TestErrorMatchesSentinel(t *testing.T) {
	b := mock.New()
	err := check(b, sys.StatusJammed)
	if !errors.Is(err, ErrJammed) {
		t.Errorf("errors.Is(%v, ErrJammed) = false", err)
	}
	if errors.Is(err, ErrNoDocs) {
		t.Errorf("errors.Is(%v, ErrNoDocs) = true", err)
	}
	if got := err.Error(); got != "sane: Document feeder jammed" {
		t.Errorf("Error() = %q", got)
	}
	if st, ok := StatusOf(err); !ok || st != StatusJammed {
		t.Errorf("StatusOf = %v, %v", st, ok)
	}
	if got, _ := StatusOf(check(b, sys.Status(99))); got != StatusUnknown {
		t.Errorf("status of code 99 = %v, want unknown", got)
	}
	if check(b, sys.StatusGood) != nil {
		t.Error("check(StatusGood) != nil")
	}
}
