package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/codeprint/codeunit"
	"github.com/chazu/codeprint/coverage"
)

// CoverageService answers execution queries against a registry.
type CoverageService struct {
	registry *codeunit.Registry
}

// NewCoverageService creates a CoverageService.
func NewCoverageService(reg *codeunit.Registry) *CoverageService {
	return &CoverageService{registry: reg}
}

// HasExecutedAt reports whether the narrowest range containing the offset
// has executed.
func (s *CoverageService) HasExecutedAt(
	ctx context.Context,
	req *connect.Request[HasExecutedAtRequest],
) (*connect.Response[HasExecutedAtResponse], error) {
	executed := s.registry.Ranges().HasExecutedAt(coverage.SourceID(req.Msg.SourceID), req.Msg.Offset)
	return connect.NewResponse(&HasExecutedAtResponse{Executed: executed}), nil
}

// Ranges lists the registered ranges of a source.
func (s *CoverageService) Ranges(
	ctx context.Context,
	req *connect.Request[RangesRequest],
) (*connect.Response[RangesResponse], error) {
	ranges := s.registry.Ranges().AllRanges(coverage.SourceID(req.Msg.SourceID))
	resp := &RangesResponse{Ranges: make([]RangeInfo, 0, len(ranges))}
	for _, r := range ranges {
		resp.Ranges = append(resp.Ranges, RangeInfo{Start: r.Start, End: r.End, Executed: r.Executed})
	}
	return connect.NewResponse(resp), nil
}

// Lookup returns the units with the given six-character code.
func (s *CoverageService) Lookup(
	ctx context.Context,
	req *connect.Request[LookupRequest],
) (*connect.Response[LookupResponse], error) {
	units, err := s.registry.LookupCode(req.Msg.Code)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if len(units) == 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no unit with code %q", req.Msg.Code))
	}

	resp := &LookupResponse{Units: make([]UnitInfo, 0, len(units))}
	for _, u := range units {
		r := u.Range()
		resp.Units = append(resp.Units, UnitInfo{
			Code:        u.Code(),
			Name:        u.Name(),
			SourceID:    uint64(u.Source()),
			Start:       r.Start,
			End:         r.End,
			Kind:        u.Kind().String(),
			Invocations: u.Invocations(),
		})
	}
	return connect.NewResponse(resp), nil
}

// Stats summarizes the registry and tracker.
func (s *CoverageService) Stats(
	ctx context.Context,
	req *connect.Request[StatsRequest],
) (*connect.Response[StatsResponse], error) {
	ranges := s.registry.Ranges()
	return connect.NewResponse(&StatsResponse{
		Units:             s.registry.Count(),
		Ranges:            ranges.RangeCount(),
		Sources:           len(ranges.Sources()),
		UnregisteredMarks: ranges.UnregisteredMarks(),
	}), nil
}
