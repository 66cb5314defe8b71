package httpx

import (
	"net"
	"testing"
)

type testListener struct {
	addr net.TCPAddr
}

func (tl testListener) Accept() (net.Conn, error) { return nil, nil }
func (tl testListener) Close() error              { return nil }
func (tl testListener) Addr() net.Addr            { return &tl.addr }

func newTCP(port int) net.Listener { return testListener{addr: net.TCPAddr{Port: port}} }

func TestBuildAddress(t *testing.T) {
	tests := []struct {
		addr string
		ls   net.Listener
		rez  string
	}{
		{addr: "", rez: "localhost"},
		{addr: ":", ls: newTCP(0), rez: "localhost"},
		{addr: "", ls: newTCP(393), rez: "localhost:393"},
		{addr: ":2333", ls: newTCP(2333), rez: "localhost:2333"},
		{addr: ":2333", ls: newTCP(2334), rez: "localhost:2334"},
		{addr: "host:8080", ls: newTCP(8080), rez: "host:8080"},
		{addr: ":80", ls: newTCP(80), rez: "localhost"},
		{addr: "https://garbage.com:99a9a", rez: "https://garbage.com:99a9a"},
		{addr: "[::]", rez: "[::]"},
	}

	for _, test := range tests {
		address := buildAddress(test.addr, test.ls)
		if address != test.rez {
			t.Errorf("expected %v, got %v", test.rez, address)
		}
	}
}
