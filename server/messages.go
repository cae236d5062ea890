package server

// Request and response messages of the diagnostics services. Field names
// are the JSON wire names.

type ComputeRequest struct {
	UnitText       string `json:"unitText"`
	ContainingText string `json:"containingText,omitempty"` // defaults to unitText
	Kind           string `json:"kind,omitempty"`           // "call" (default) or "construct"
}

type ComputeResponse struct {
	Fingerprint uint32 `json:"fingerprint"`
	Code        string `json:"code"`
	Sampled     bool   `json:"sampled"`
}

type EncodeRequest struct {
	Value uint32 `json:"value"`
}

type EncodeResponse struct {
	Code string `json:"code"`
}

type DecodeRequest struct {
	Code string `json:"code"`
}

type DecodeResponse struct {
	Value uint32 `json:"value"`
}

type HasExecutedAtRequest struct {
	SourceID uint64 `json:"sourceId"`
	Offset   uint32 `json:"offset"`
}

type HasExecutedAtResponse struct {
	Executed bool `json:"executed"`
}

type RangesRequest struct {
	SourceID uint64 `json:"sourceId"`
}

type RangeInfo struct {
	Start    uint32 `json:"start"`
	End      uint32 `json:"end"`
	Executed bool   `json:"executed"`
}

type RangesResponse struct {
	Ranges []RangeInfo `json:"ranges"`
}

type LookupRequest struct {
	Code string `json:"code"`
}

type UnitInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
	SourceID    uint64 `json:"sourceId"`
	Start       uint32 `json:"start"`
	End         uint32 `json:"end"`
	Kind        string `json:"kind"`
	Invocations uint64 `json:"invocations"`
}

type LookupResponse struct {
	Units []UnitInfo `json:"units"`
}

type StatsRequest struct{}

type StatsResponse struct {
	Units             int    `json:"units"`
	Ranges            int    `json:"ranges"`
	Sources           int    `json:"sources"`
	UnregisteredMarks uint64 `json:"unregisteredMarks"`
}
