package domain

import "time"

// VerdictCode is the overall outcome of a check.
type VerdictCode int

const (
	// VerdictUnevaluated means the rip could not be checked (source or tooling failure).
	VerdictUnevaluated VerdictCode = -1
	// VerdictPass means every check passed.
	VerdictPass VerdictCode = 0
	// VerdictFail means at least one check found an issue.
	VerdictFail VerdictCode = 1
)

// CheckKind identifies a stage.
type CheckKind string

const (
	CheckBitrate     CheckKind = "bitrate"
	CheckClipping    CheckKind = "clipping"
	CheckDLSClipping CheckKind = "dls_clipping"
)

// SubResult is the outcome of one stage.
type SubResult struct {
	Check         CheckKind   `json:"check"`
	Passed        bool        `json:"passed"`
	Message       string      `json:"message"`
	VolumeReduced bool        `json:"volume_reduced,omitempty"`
	Events        []ClipEvent `json:"events,omitempty"`
}

// Verdict is what a check hands back to its caller.
type Verdict struct {
	CheckID     string
	Code        VerdictCode
	Message     string
	Bitrate     *SubResult
	Clipping    *SubResult
	DLSClipping *SubResult
	Errors      []string
	Elapsed     time.Duration
}

// BitrateOK reports whether the bitrate stage ran and passed.
func (v *Verdict) BitrateOK() bool {
	return v.Bitrate != nil && v.Bitrate.Passed
}

// ClippingOK reports whether the clipping stage ran and passed.
func (v *Verdict) ClippingOK() bool {
	return v.Clipping != nil && v.Clipping.Passed
}

// DLSClippingOK reports whether the DLS stage passed. A check that did not
// run the DLS stage is not flagged.
func (v *Verdict) DLSClippingOK() bool {
	return v.DLSClipping == nil || v.DLSClipping.Passed
}

// NeedsBitrateFix reports whether the rip must be re-rendered at a higher bitrate.
func (v *Verdict) NeedsBitrateFix() bool {
	return v.Bitrate != nil && !v.Bitrate.Passed
}

// NeedsClippingFix reports whether clipping runs were found. A gradient
// warning asks for manual verification and does not count.
func (v *Verdict) NeedsClippingFix() bool {
	return v.Clipping != nil && !v.Clipping.Passed && len(v.Clipping.Events) > 0
}

// VolumeReduced reports whether any stage saw clipping below the format ceiling.
func (v *Verdict) VolumeReduced() bool {
	for _, r := range []*SubResult{v.Clipping, v.DLSClipping} {
		if r != nil && r.VolumeReduced {
			return true
		}
	}
	return false
}

// Markers returns rendering hints for chat front ends: one of link, check or
// fix for the code, followed by bitrate and clipping when those need fixing.
func (v *Verdict) Markers() []string {
	var markers []string
	switch v.Code {
	case VerdictUnevaluated:
		markers = append(markers, "link")
	case VerdictPass:
		markers = append(markers, "check")
	default:
		markers = append(markers, "fix")
	}
	if v.NeedsBitrateFix() {
		markers = append(markers, "bitrate")
	}
	if v.NeedsClippingFix() {
		markers = append(markers, "clipping")
	}
	return markers
}
