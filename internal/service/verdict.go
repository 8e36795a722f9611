package service

import (
	"strings"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

// stageResults collects what each stage produced. waveformErr covers
// acquiring and decoding the waveform, which both waveform stages need.
type stageResults struct {
	bitrate    *domain.SubResult
	bitrateErr error

	waveformErr error

	clipping    *domain.SubResult
	clippingErr error

	dls    *domain.SubResult
	dlsErr error
}

// errors returns the stage errors in report order.
func (r *stageResults) errors(withDLS bool) []error {
	var errs []error
	for _, err := range []error{r.bitrateErr, r.waveformErr, r.clippingErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if withDLS && r.dlsErr != nil {
		errs = append(errs, r.dlsErr)
	}
	return errs
}

// aggregate folds the stage results into v. Any stage error makes the whole
// check unevaluated; otherwise the check passes only if every stage passed.
func aggregate(v *domain.Verdict, r *stageResults, withDLS bool) *domain.Verdict {
	v.Bitrate = r.bitrate
	v.Clipping = r.clipping
	if withDLS {
		v.DLSClipping = r.dls
	}

	if errs := r.errors(withDLS); len(errs) > 0 {
		v.Code = domain.VerdictUnevaluated
		v.Errors = make([]string, len(errs))
		for i, err := range errs {
			v.Errors[i] = domainerrors.UserMessage(err)
		}
		v.Message = strings.Join(v.Errors, "\n")
		return v
	}

	results := []*domain.SubResult{v.Bitrate, v.Clipping}
	if withDLS {
		results = append(results, v.DLSClipping)
	}

	v.Code = domain.VerdictPass
	lines := make([]string, 0, len(results))
	for _, sr := range results {
		if !sr.Passed {
			v.Code = domain.VerdictFail
		}
		lines = append(lines, "- "+sr.Message)
	}
	v.Message = strings.Join(lines, "\n")
	return v
}

// unevaluated marks v as not evaluated because the rip could not be acquired.
func unevaluated(v *domain.Verdict, err error) *domain.Verdict {
	msg := domainerrors.UserMessage(err)
	v.Code = domain.VerdictUnevaluated
	v.Message = msg
	v.Errors = []string{msg}
	return v
}
