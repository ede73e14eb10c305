package location

import (
	"errors"
	"net"
	"testing"

	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"localhost:5000", "tcp://localhost:5000", false},
		{"tcp://10.0.0.1:5000", "tcp://10.0.0.1:5000", false},
		{"GRPC://host:1", "grpc://host:1", false},
		{"[::1]:7000", "tcp://[::1]:7000", false},
		{"localhost", "", true},
		{":5000", "", true},
		{"host:0", "", true},
		{"host:70000", "", true},
		{"host:abc", "", true},
		{"udp://host:5000", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				if !errors.Is(err, mwerrors.ErrMalformedAddress) {
					t.Fatalf("ParseAddress(%q) err = %v, want ErrMalformedAddress", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddressTarget(t *testing.T) {
	a := Address("tcp://10.0.0.1:5000")
	if a.Target() != "10.0.0.1:5000" || a.Scheme() != "tcp" {
		t.Errorf("Target/Scheme = %q/%q", a.Target(), a.Scheme())
	}
}

func TestParseHost(t *testing.T) {
	loc, err := ParseHost("a:1, tcp://b:2")
	if err != nil {
		t.Fatal(err)
	}
	if len(loc.Addresses) != 2 || loc.ID != "" {
		t.Fatalf("unexpected location %s", loc)
	}
	target, err := loc.Target()
	if err != nil || target != "a:1" {
		t.Errorf("Target = %q, %v", target, err)
	}

	for _, bad := range []string{"", " , ", "nohostport"} {
		if _, err := ParseHost(bad); !errors.Is(err, mwerrors.ErrBadHost) {
			t.Errorf("ParseHost(%q) err = %v, want ErrBadHost", bad, err)
		}
	}
}

func TestTargetNoValidAddress(t *testing.T) {
	loc := Location{ID: "x", Addresses: []Address{"garbage"}}
	if _, err := loc.Target(); !errors.Is(err, mwerrors.ErrNoValidAddress) {
		t.Errorf("Target err = %v, want ErrNoValidAddress", err)
	}
	if err := (Location{ID: "y"}).Validate(); !errors.Is(err, mwerrors.ErrNoValidAddress) {
		t.Errorf("Validate err = %v, want ErrNoValidAddress", err)
	}
}

func TestSameHost(t *testing.T) {
	a, _ := New("id-a", "h:1")
	b, _ := New("id-b", "h:1")
	anon, _ := ParseHost("h:1")

	if a.SameHost(b) {
		t.Error("different ids are different hosts")
	}
	if !a.SameHost(anon) {
		t.Error("anonymous location sharing an address is the same host")
	}
}

func TestLocalExplicitHost(t *testing.T) {
	loc, err := Local("me", "192.168.1.5:6000", "public.example:443")
	if err != nil {
		t.Fatal(err)
	}
	want := []Address{"tcp://public.example:443", "tcp://192.168.1.5:6000"}
	if len(loc.Addresses) != 2 || loc.Addresses[0] != want[0] || loc.Addresses[1] != want[1] {
		t.Errorf("Addresses = %v, want %v", loc.Addresses, want)
	}
}

func TestLocalEnumeratesInterfaces(t *testing.T) {
	orig := InterfaceAddrs
	defer func() { InterfaceAddrs = orig }()
	InterfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("10.1.2.3"), Mask: net.CIDRMask(24, 32)},
		}, nil
	}

	loc, err := Local("me", ":7000")
	if err != nil {
		t.Fatal(err)
	}
	want := []Address{"tcp://10.1.2.3:7000", "tcp://127.0.0.1:7000"}
	if len(loc.Addresses) != len(want) {
		t.Fatalf("Addresses = %v, want %v", loc.Addresses, want)
	}
	for i := range want {
		if loc.Addresses[i] != want[i] {
			t.Errorf("Addresses[%d] = %q, want %q", i, loc.Addresses[i], want[i])
		}
	}
}
