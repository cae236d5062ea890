package server

import (
	"context"

	"connectrpc.com/connect"

	"github.com/chazu/codeprint/fingerprint"
)

// FingerprintService computes, encodes and decodes fingerprints.
type FingerprintService struct {
	hasher *fingerprint.Hasher
}

// NewFingerprintService creates a FingerprintService using h.
func NewFingerprintService(h *fingerprint.Hasher) *FingerprintService {
	return &FingerprintService{hasher: h}
}

// Compute fingerprints the given text.
func (s *FingerprintService) Compute(
	ctx context.Context,
	req *connect.Request[ComputeRequest],
) (*connect.Response[ComputeResponse], error) {
	kind := fingerprint.KindCall
	if req.Msg.Kind != "" {
		k, err := fingerprint.ParseKind(req.Msg.Kind)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		kind = k
	}
	containing := req.Msg.ContainingText
	if containing == "" {
		containing = req.Msg.UnitText
	}

	f := s.hasher.Compute(req.Msg.UnitText, containing, kind)
	return connect.NewResponse(&ComputeResponse{
		Fingerprint: uint32(f),
		Code:        f.String(),
		Sampled:     s.hasher.Sampled(req.Msg.UnitText),
	}), nil
}

// Encode renders a value as its six-character code.
func (s *FingerprintService) Encode(
	ctx context.Context,
	req *connect.Request[EncodeRequest],
) (*connect.Response[EncodeResponse], error) {
	return connect.NewResponse(&EncodeResponse{Code: fingerprint.Encode(req.Msg.Value)}), nil
}

// Decode parses a six-character code.
func (s *FingerprintService) Decode(
	ctx context.Context,
	req *connect.Request[DecodeRequest],
) (*connect.Response[DecodeResponse], error) {
	v, err := fingerprint.Decode(req.Msg.Code)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&DecodeResponse{Value: v}), nil
}
