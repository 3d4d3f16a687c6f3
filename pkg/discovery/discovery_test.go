package discovery

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
)

func TestServerTXTRoundTrip(t *testing.T) {
	info := &ServerInfo{
		InstanceName: "Workshop",
		Scheme:       "ws",
		Path:         "/ws",
		Name:         "Workshop lobby",
		Codec:        "cbor",
		Version:      ProtocolVersion,
	}

	strs := TXTRecordsToStrings(EncodeServerTXT(info))
	decoded, err := DecodeServerTXT(StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("DecodeServerTXT: %v", err)
	}

	if decoded.Scheme != "ws" || decoded.Path != "/ws" || decoded.Name != "Workshop lobby" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Codec != "cbor" || decoded.Version != ProtocolVersion {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestTXTRecordsToStringsSorted(t *testing.T) {
	strs := TXTRecordsToStrings(TXTRecordMap{"scheme": "ws", "name": "x", "path": "/"})
	want := []string{"name=x", "path=/", "scheme=ws"}
	if strings.Join(strs, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", strs, want)
	}
}

func TestDecodeServerTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
		want error
	}{
		{"missing scheme", TXTRecordMap{"path": "/ws"}, ErrMissingRequired},
		{"unknown scheme", TXTRecordMap{"scheme": "gopher"}, ErrInvalidTXTRecord},
		{"bad version", TXTRecordMap{"scheme": "ws", "ver": "one"}, ErrInvalidTXTRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeServerTXT(tt.txt)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeServerTXTNormalizesPath(t *testing.T) {
	info, err := DecodeServerTXT(TXTRecordMap{"scheme": "wss", "path": "lobby"})
	if err != nil {
		t.Fatalf("DecodeServerTXT: %v", err)
	}
	if info.Path != "/lobby" {
		t.Errorf("Path = %q, want /lobby", info.Path)
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "b=x=y", "flag", ""})
	if txt["a"] != "1" || txt["b"] != "x=y" {
		t.Errorf("txt = %v", txt)
	}
	if v, ok := txt["flag"]; !ok || v != "" {
		t.Errorf("flag = %q, %v", v, ok)
	}
	if len(txt) != 3 {
		t.Errorf("len = %d, want 3", len(txt))
	}
}

func TestValidateInstanceName(t *testing.T) {
	if err := ValidateInstanceName("lobby"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateInstanceName(""); !errors.Is(err, ErrMissingRequired) {
		t.Errorf("empty: err = %v", err)
	}
	if err := ValidateInstanceName(strings.Repeat("x", 64)); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("long: err = %v", err)
	}
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		name string
		srv  Server
		want string
	}{
		{
			name: "ipv4",
			srv:  Server{Addresses: []string{"192.168.1.20", "fe80::1"}, Port: 8470, Scheme: "ws", Path: "/ws"},
			want: "ws://192.168.1.20:8470/ws",
		},
		{
			name: "ipv6",
			srv:  Server{Addresses: []string{"fe80::1"}, Port: 8470, Scheme: "wss"},
			want: "wss://[fe80::1]:8470/",
		},
		{
			name: "host fallback",
			srv:  Server{Host: "lobby.local.", Port: 4222, Scheme: "nats"},
			want: "nats://lobby.local.:4222/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.srv.URL()
			if err != nil {
				t.Fatalf("URL: %v", err)
			}
			if got != tt.want {
				t.Errorf("URL = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := (&Server{Scheme: "ws"}).URL(); !errors.Is(err, ErrNotFound) {
		t.Errorf("no address: err = %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (&Server{InstanceName: "a", Name: "b"}).DisplayName(); got != "b" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (&Server{InstanceName: "a"}).DisplayName(); got != "a" {
		t.Errorf("DisplayName = %q", got)
	}
}

func newEntry(instance string, text []string, ips ...string) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{}
	entry.Instance = instance
	entry.HostName = instance + ".local."
	entry.Port = 8470
	entry.Text = text
	for _, s := range ips {
		ip := net.ParseIP(s)
		if ip.To4() != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, ip)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, ip)
		}
	}
	return entry
}

func TestEntryToServer(t *testing.T) {
	entry := newEntry("Workshop", []string{"scheme=ws", "path=/ws"}, "fe80::1", "10.0.0.5")

	srv := entryToServer(entry)
	if srv == nil {
		t.Fatal("expected server")
	}
	if srv.Port != 8470 || srv.Host != "Workshop.local." {
		t.Errorf("srv = %+v", srv)
	}
	if len(srv.Addresses) != 2 || srv.Addresses[0] != "10.0.0.5" {
		t.Errorf("Addresses = %v, want IPv4 first", srv.Addresses)
	}

	if entryToServer(newEntry("printer", []string{"rp=ipp"}, "10.0.0.9")) != nil {
		t.Error("foreign TXT records should be ignored")
	}
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.5"}, []string{"10.0.0.5", "10.0.1.5"})
	if len(addrs) != 2 {
		t.Fatalf("merge = %v", addrs)
	}

	addrs = removeAddresses(addrs, newEntry("x", nil, "10.0.0.5"))
	if len(addrs) != 1 || addrs[0] != "10.0.1.5" {
		t.Errorf("remove = %v", addrs)
	}
}

func TestFirstMatch(t *testing.T) {
	results := make(chan *Server, 3)
	results <- &Server{InstanceName: "a"}
	results <- &Server{InstanceName: "b", Name: "Bench"}
	results <- &Server{InstanceName: "c"}

	srv, err := firstMatch(context.Background(), results, "Bench")
	if err != nil {
		t.Fatalf("firstMatch: %v", err)
	}
	if srv.InstanceName != "b" {
		t.Errorf("got %q, want b", srv.InstanceName)
	}

	srv, err = firstMatch(context.Background(), results, "")
	if err != nil || srv.InstanceName != "c" {
		t.Errorf("any: srv = %v, err = %v", srv, err)
	}

	close(results)
	if _, err := firstMatch(context.Background(), results, "z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("closed: err = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := firstMatch(ctx, make(chan *Server), "z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("timeout: err = %v", err)
	}
}

func TestAdvertiseValidates(t *testing.T) {
	adv := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	defer adv.Stop()

	if err := adv.Advertise(&ServerInfo{Scheme: "ws"}); !errors.Is(err, ErrMissingRequired) {
		t.Errorf("no name: err = %v", err)
	}
	if err := adv.Advertise(&ServerInfo{InstanceName: "x"}); !errors.Is(err, ErrMissingRequired) {
		t.Errorf("no scheme: err = %v", err)
	}
	if err := adv.Update(&ServerInfo{InstanceName: "x", Scheme: "ws"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update before advertise: err = %v", err)
	}
}
