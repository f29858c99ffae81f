package monitor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boyski/audited-objects/pkg/aggregate"
	"github.com/boyski/audited-objects/pkg/cmdaction"
	"github.com/boyski/audited-objects/pkg/dcode"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/shop"
)

func testResolve(relOrAbs string) pathname.Name { return pathname.NewAbsolute(relOrAbs) }

func newTestManager(t *testing.T) (*aggregate.Manager, *[]*cmdaction.CmdAction) {
	t.Helper()
	rules, err := aggregate.NewRules("", "", "", "", "", "")
	require.NoError(t, err)
	published := &[]*cmdaction.CmdAction{}
	mgr := aggregate.NewManager(rules, dcode.CRC32, func(ca *cmdaction.CmdAction) {
		*published = append(*published, ca)
	})
	return mgr, published
}

func startMonitor(t *testing.T, m *Monitor) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Serve(ctx, ln)
	return ln.Addr().String(), func() { cancel(); ln.Close() }
}

func sendSOA(t *testing.T, addr string, ca *cmdaction.CmdAction) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "%s%s%s\n", soaUpper, FS1, ca.EncodeHeaderCSV(FS1))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(reply, "\n")
}

func sendEOA(t *testing.T, addr string, ca *cmdaction.CmdAction, status int, paLines []string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "EOA[%d]%s%s\n", status, FS1, ca.EncodeHeaderCSV(FS1))
	for _, line := range paLines {
		fmt.Fprintf(conn, "%s\n", line)
	}
	// Half-close for write so the monitor's read loop sees EOF.
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, _ = conn.Read(buf) // blocks until the monitor closes; error (EOF) is expected
}

func buildCA(cmdid, pcmdid int64, line string) *cmdaction.CmdAction {
	ca := cmdaction.New(cmdid, pcmdid, 0, "/bin/true", ".")
	ca.SetLine(line, dcode.CRC32)
	return ca
}

func TestSOAIndependentCommandGetsOK(t *testing.T) {
	mgr, published := newTestManager(t)
	mon := &Monitor{Agg: mgr, Resolve: testResolve}
	addr, stop := startMonitor(t, mon)
	defer stop()

	ca := buildCA(1, 0, "true")
	reply := sendSOA(t, addr, ca)
	assert.Equal(t, ackOK, reply)

	sendEOA(t, addr, ca, 0, nil)
	assert.Len(t, *published, 1)
}

type fakeShopper struct {
	result shop.Result
	err    error
	ptxid  string
}

func (f *fakeShopper) Shop(ctx context.Context, ca *cmdaction.CmdAction, getfiles bool) (shop.Result, error) {
	if f.err != nil {
		return shop.ShopErr, f.err
	}
	if f.result == shop.Recycled {
		ca.Recycled = f.ptxid
	}
	return f.result, nil
}

func TestSOARecycledReturnsPTXID(t *testing.T) {
	mgr, _ := newTestManager(t)
	mon := &Monitor{
		Agg:     mgr,
		Resolve: testResolve,
		Shop:    &fakeShopper{result: shop.Recycled, ptxid: "P7"},
	}
	addr, stop := startMonitor(t, mon)
	defer stop()

	ca := buildCA(2, 0, "cc -c foo.c")
	reply := sendSOA(t, addr, ca)
	assert.Equal(t, "P7"+FS1+"recycled", reply)
}

func TestSOAShopErrorReturnsFailure(t *testing.T) {
	mgr, _ := newTestManager(t)
	mon := &Monitor{
		Agg:     mgr,
		Resolve: testResolve,
		Shop:    &fakeShopper{err: fmt.Errorf("roadmap unavailable")},
	}
	addr, stop := startMonitor(t, mon)
	defer stop()

	ca := buildCA(3, 0, "cc -c foo.c")
	reply := sendSOA(t, addr, ca)
	assert.Equal(t, ackFailure, reply)
}

func TestSOAMalformedHeaderGetsFailure(t *testing.T) {
	mgr, _ := newTestManager(t)
	mon := &Monitor{Agg: mgr, Resolve: testResolve}
	addr, stop := startMonitor(t, mon)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	fmt.Fprintf(conn, "SOA%sgarbage\n", FS1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ackFailure, strings.TrimRight(reply, "\n"))
}

func TestEOADeliversRawPAsBeforePublish(t *testing.T) {
	mgr, published := newTestManager(t)
	mon := &Monitor{Agg: mgr, Resolve: testResolve}
	addr, stop := startMonitor(t, mon)
	defer stop()

	ca := buildCA(5, 0, "touch out.o")
	sendSOA(t, addr, ca)

	paLine := strings.Join([]string{
		"CREAT", "open", "-", "5", "0", "0", "0", "-", "-", "-",
		"f", "-", "100000000.000000000", "0", "0", "-", "-", "out.o",
	}, FS1)

	sendEOA(t, addr, ca, 0, []string{paLine})

	require.Len(t, *published, 1)
	assert.Len(t, (*published)[0].Raw(), 1)
}
