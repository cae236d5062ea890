package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"go.uber.org/goleak"

	"github.com/chazu/codeprint/codeunit"
	"github.com/chazu/codeprint/fingerprint"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSource = "function outer() { function f(){} return f(); }"

// newTestServer starts an httptest server over a registry holding one
// outer unit and one executed inner unit.
func newTestServer(t *testing.T) (*httptest.Server, *codeunit.Registry) {
	t.Helper()
	reg := codeunit.NewRegistry(nil, nil)
	if _, err := reg.Create(codeunit.Spec{Source: 5, Text: testSource, Start: 0, End: uint32(len(testSource)), Name: "outer"}); err != nil {
		t.Fatalf("Create outer: %v", err)
	}
	inner, err := reg.Create(codeunit.Spec{Source: 5, Text: testSource, Start: 19, End: 33, Name: "f"})
	if err != nil {
		t.Fatalf("Create inner: %v", err)
	}
	reg.Executed(inner)

	srv := httptest.NewServer(New(reg).Handler())
	t.Cleanup(srv.Close)
	return srv, reg
}

func newClient[Req, Res any](srv *httptest.Server, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](srv.Client(), srv.URL+procedure, connect.WithCodec(jsonCodec{}))
}

func TestCompute(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClient[ComputeRequest, ComputeResponse](srv, ComputeProcedure)
	ctx := context.Background()

	resp, err := client.CallUnary(ctx, connect.NewRequest(&ComputeRequest{UnitText: "function f(){}"}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if resp.Msg.Fingerprint != 0x1014d869 || resp.Msg.Code != "asqdSv" || resp.Msg.Sampled {
		t.Errorf("Compute: got %+v", resp.Msg)
	}

	resp, err = client.CallUnary(ctx, connect.NewRequest(&ComputeRequest{UnitText: "function f(){}", Kind: "construct"}))
	if err != nil {
		t.Fatalf("Compute construct: %v", err)
	}
	if resp.Msg.Code != "asqdSu" {
		t.Errorf("construct code: got %q, want asqdSu", resp.Msg.Code)
	}

	_, err = client.CallUnary(ctx, connect.NewRequest(&ComputeRequest{UnitText: "x", Kind: "apply"}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("unknown kind: got %v, want invalid_argument", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	srv, _ := newTestServer(t)
	enc := newClient[EncodeRequest, EncodeResponse](srv, EncodeProcedure)
	dec := newClient[DecodeRequest, DecodeResponse](srv, DecodeProcedure)
	ctx := context.Background()

	er, err := enc.CallUnary(ctx, connect.NewRequest(&EncodeRequest{Value: 0xdeadbeef}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if er.Msg.Code != fingerprint.Encode(0xdeadbeef) {
		t.Errorf("Encode: got %q", er.Msg.Code)
	}

	dr, err := dec.CallUnary(ctx, connect.NewRequest(&DecodeRequest{Code: er.Msg.Code}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dr.Msg.Value != 0xdeadbeef {
		t.Errorf("Decode: got 0x%08x", dr.Msg.Value)
	}

	for _, bad := range []string{"", "AAAA-A", "999999"} {
		_, err := dec.CallUnary(ctx, connect.NewRequest(&DecodeRequest{Code: bad}))
		if connect.CodeOf(err) != connect.CodeInvalidArgument {
			t.Errorf("Decode(%q): got %v, want invalid_argument", bad, err)
		}
	}
}

func TestHasExecutedAtAndRanges(t *testing.T) {
	srv, _ := newTestServer(t)
	has := newClient[HasExecutedAtRequest, HasExecutedAtResponse](srv, HasExecutedAtProcedure)
	ranges := newClient[RangesRequest, RangesResponse](srv, RangesProcedure)
	ctx := context.Background()

	cases := []struct {
		offset uint32
		want   bool
	}{
		{2, false},  // only the outer unit covers it
		{25, true},  // narrowest range is the executed inner unit
		{33, false}, // one past the inner unit
		{40, false}, // back in the outer unit
	}
	for _, tc := range cases {
		resp, err := has.CallUnary(ctx, connect.NewRequest(&HasExecutedAtRequest{SourceID: 5, Offset: tc.offset}))
		if err != nil {
			t.Fatalf("HasExecutedAt(%d): %v", tc.offset, err)
		}
		if resp.Msg.Executed != tc.want {
			t.Errorf("HasExecutedAt(%d): got %v, want %v", tc.offset, resp.Msg.Executed, tc.want)
		}
	}

	rr, err := ranges.CallUnary(ctx, connect.NewRequest(&RangesRequest{SourceID: 5}))
	if err != nil {
		t.Fatalf("Ranges: %v", err)
	}
	want := []RangeInfo{
		{Start: 0, End: uint32(len(testSource)) - 1},
		{Start: 19, End: 32, Executed: true},
	}
	if len(rr.Msg.Ranges) != len(want) {
		t.Fatalf("Ranges: got %+v", rr.Msg.Ranges)
	}
	for i := range want {
		if rr.Msg.Ranges[i] != want[i] {
			t.Errorf("range %d: got %+v, want %+v", i, rr.Msg.Ranges[i], want[i])
		}
	}
}

func TestLookup(t *testing.T) {
	srv, _ := newTestServer(t)
	lookup := newClient[LookupRequest, LookupResponse](srv, LookupProcedure)
	ctx := context.Background()

	resp, err := lookup.CallUnary(ctx, connect.NewRequest(&LookupRequest{Code: "asqdSv"}))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(resp.Msg.Units) != 1 {
		t.Fatalf("Lookup: got %+v", resp.Msg.Units)
	}
	u := resp.Msg.Units[0]
	if u.Name != "f" || u.Kind != "call" || u.Invocations != 1 || u.SourceID != 5 {
		t.Errorf("Lookup: got %+v", u)
	}

	_, err = lookup.CallUnary(ctx, connect.NewRequest(&LookupRequest{Code: "aaaaaa"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown code: got %v, want not_found", err)
	}

	_, err = lookup.CallUnary(ctx, connect.NewRequest(&LookupRequest{Code: "short"}))
	var cerr *connect.Error
	if !errors.As(err, &cerr) || cerr.Code() != connect.CodeInvalidArgument {
		t.Errorf("bad code: got %v, want invalid_argument", err)
	}
}

func TestShutdownBeforeListen(t *testing.T) {
	s := New(codeunit.NewRegistry(nil, nil))
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := s.ListenAndServe("127.0.0.1:0"); err != nil {
		t.Errorf("ListenAndServe after Shutdown: %v", err)
	}
}

func TestStats(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.Ranges().MarkExecuted(5, 1, 2)

	stats := newClient[StatsRequest, StatsResponse](srv, StatsProcedure)
	resp, err := stats.CallUnary(context.Background(), connect.NewRequest(&StatsRequest{}))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := StatsResponse{Units: 2, Ranges: 2, Sources: 1, UnregisteredMarks: 1}
	if *resp.Msg != want {
		t.Errorf("Stats: got %+v, want %+v", *resp.Msg, want)
	}
}
