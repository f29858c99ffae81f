// Package monitor implements the server side of the SOA/EOA protocol of
// spec.md §4.6: a cooperative loop that accepts one localhost TCP
// connection per message from each audited process, runs the
// aggregation state machine (pkg/aggregate) and, when a shopping engine
// is wired in, the shopping decision (pkg/shop), and replies with the
// ACK vocabulary spec.md documents.
//
// Each audited process opens a fresh connection per SOA or EOA message
// and blocks on the reply, which is what spec.md §4.6 relies on to
// guarantee a parent's SOA always reaches the monitor before any of its
// children's: the child cannot even begin sending its own SOA until its
// parent's round trip has completed. Because of that guarantee, this
// package handles connections concurrently (one goroutine per
// connection) rather than the single-threaded loop spec.md calls
// "acceptable" -- pkg/aggregate.Manager is already mutex-guarded, so
// concurrency here costs nothing in correctness and avoids serializing
// unrelated audited processes behind one accept loop.
package monitor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/boyski/audited-objects/pkg/aggregate"
	"github.com/boyski/audited-objects/pkg/aolog"
	"github.com/boyski/audited-objects/pkg/cmdaction"
	"github.com/boyski/audited-objects/pkg/pathaction"
	"github.com/boyski/audited-objects/pkg/pathstate"
	"github.com/boyski/audited-objects/pkg/radix"
	"github.com/boyski/audited-objects/pkg/shop"
)

// FS1 is the field separator the wire protocol's header lines use,
// matching pkg/cmdaction/pkg/roadmap's own internal convention.
const FS1 = "\x01"

const (
	soaUpper = "SOA"
	soaLower = "soa"
	eoaToken = "EOA"

	ackOK      = "OK"
	ackOKAgg   = "OK_AGG"
	ackFailure = "FAILURE"
)

// Shopper is the subset of *shop.Engine the monitor needs; an interface
// so tests can substitute a fake without constructing a real roadmap.
type Shopper interface {
	Shop(ctx context.Context, ca *cmdaction.CmdAction, getfiles bool) (shop.Result, error)
}

// Monitor runs the SOA/EOA receiver. A nil Shop field disables shopping
// entirely: every SOA is simply ACKed OK/OK_AGG and no recycling ever
// happens, which is the correct behavior for a plain auditing-only build
// (no roadmap shipped yet).
type Monitor struct {
	Agg     *aggregate.Manager
	Shop    Shopper
	Resolve cmdaction.ResolvePN

	// OnVerdict, if set, is called with every terminal shopping verdict
	// for telemetry; see pkg/telemetry.Telemetry.ObserveVerdict.
	OnVerdict func(shop.Result)
}

// Serve accepts connections from ln until ctx is done or Accept fails.
func (m *Monitor) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go m.handleConn(ctx, conn)
	}
}

func (m *Monitor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	header, err := r.ReadString('\n')
	if err != nil && header == "" {
		aolog.Warnf("monitor: reading message header: %v", err)
		return
	}
	header = strings.TrimRight(header, "\n")

	switch {
	case strings.HasPrefix(header, soaUpper), strings.HasPrefix(header, soaLower):
		m.handleSOA(ctx, conn, header)
	case strings.HasPrefix(header, eoaToken):
		m.handleEOA(ctx, r, header)
	default:
		aolog.Warnf("monitor: unrecognized message header %q", header)
	}
}

func (m *Monitor) handleSOA(ctx context.Context, conn net.Conn, header string) {
	fields := strings.Split(header, FS1)
	if len(fields) < 2 {
		aolog.Warnf("monitor: malformed SOA header %q", header)
		fmt.Fprintf(conn, "%s\n", ackFailure)
		return
	}
	ca, err := cmdaction.DecodeHeaderCSV(fields[1:])
	if err != nil {
		aolog.Warnf("monitor: malformed SOA header %q: %v", header, err)
		fmt.Fprintf(conn, "%s\n", ackFailure)
		return
	}

	m.Agg.StartOfAudit(ca, ca.Pcmdid)

	if m.Shop != nil {
		result, err := m.Shop.Shop(ctx, ca, true)
		if err != nil {
			aolog.Errorf("monitor: shopping cmdid %d: %v", ca.Cmdid, err)
			fmt.Fprintf(conn, "%s\n", ackFailure)
			return
		}
		if m.OnVerdict != nil {
			m.OnVerdict(result)
		}
		if result == shop.Recycled {
			fmt.Fprintf(conn, "%s%s%s\n", ca.Recycled, FS1, "recycled")
			return
		}
	}

	if ca.HasLeader() {
		fmt.Fprintf(conn, "%s\n", ackOKAgg)
	} else {
		fmt.Fprintf(conn, "%s\n", ackOK)
	}
}

func (m *Monitor) handleEOA(ctx context.Context, r *bufio.Reader, header string) {
	status, headerFields, err := parseEOAHeader(header)
	if err != nil {
		aolog.Warnf("monitor: malformed EOA header %q: %v", header, err)
		return
	}
	ca, err := cmdaction.DecodeHeaderCSV(headerFields)
	if err != nil {
		aolog.Warnf("monitor: malformed EOA header %q: %v", header, err)
		return
	}

	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if line != "" {
			pa, perr := decodePALine(line, m.Resolve)
			if perr != nil {
				aolog.Warnf("monitor: cmdid %d: malformed PA line: %v", ca.Cmdid, perr)
			} else {
				ca.AddRaw(pa)
			}
		}
		if err != nil {
			break // EOF: client shut down its write side.
		}
	}

	aolog.Debugf(aolog.AG, "cmdid %d closed with status %d, %d raw PAs", ca.Cmdid, status, len(ca.Raw()))
	m.Agg.EndOfAudit(ca)
}

// parseEOAHeader splits "EOA[<status>]<fs1><header fields...>" into the
// exit status and the CA header's own field slice.
func parseEOAHeader(header string) (status int, fields []string, err error) {
	open := strings.IndexByte(header, '[')
	shut := strings.IndexByte(header, ']')
	if open != 0 || shut < open {
		return 0, nil, fmt.Errorf("monitor: expected EOA[<status>]..., got %q", header)
	}
	status, err = strconv.Atoi(header[open+1 : shut])
	if err != nil {
		return 0, nil, fmt.Errorf("monitor: malformed EOA status: %w", err)
	}
	rest := header[shut+1:]
	rest = strings.TrimPrefix(rest, FS1)
	return status, strings.Split(rest, FS1), nil
}

func decodePALine(line string, resolve cmdaction.ResolvePN) (*pathaction.Action, error) {
	fields := strings.Split(line, FS1)
	if len(fields) <= pathaction.NumScalarFields {
		return nil, fmt.Errorf("too few fields")
	}
	pa, err := pathaction.DecodeScalars(fields[:pathaction.NumScalarFields])
	if err != nil {
		return nil, err
	}
	psFields := fields[pathaction.NumScalarFields:]
	if len(psFields) != 8 {
		return nil, fmt.Errorf("malformed embedded PathState")
	}
	relOrAbs, err := radix.Unescape(psFields[7])
	if err != nil {
		return nil, fmt.Errorf("malformed path field: %w", err)
	}
	pn := resolve(relOrAbs)
	ps, err := pathstate.DecodeCSV(psFields, pn)
	if err != nil {
		return nil, err
	}
	pa.State = ps
	pa.Member = pn.IsMember()
	return pa, nil
}
