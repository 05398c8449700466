// Package quality decides whether a downloaded document is likely usable
// text before the pipeline pays for full extraction. Cheap byte bounds run
// first, then a page-capped text sample.
package quality

import (
	"strconv"

	"ppls/internal/config"
	"ppls/internal/util"
)

// Reason codes are a closed vocabulary used in skip reporting.
const (
	ReasonOK            = "ok"
	ReasonTooSmall      = "too_small_bytes"
	ReasonTooLarge      = "too_large_bytes"
	ReasonExtractFailed = "pdf_text_extract_failed"
	ReasonNoText        = "no_text_extracted"
	ReasonLowChars      = "low_text_chars"
	ReasonLowAlpha      = "low_alpha_ratio"
)

type Verdict struct {
	OK     bool
	Reason string
	Detail string
}

// SampleFunc extracts a bounded text sample from raw document bytes.
type SampleFunc func(data []byte) (string, error)

type Gate struct {
	cfg config.Config
}

func NewGate(cfg config.Config) *Gate {
	return &Gate{cfg: cfg}
}

// CheckSize applies only the byte bounds. Also used against the advisory
// probe size to short-circuit before downloading.
func (g *Gate) CheckSize(n int64) Verdict {
	if n < g.cfg.MinDocBytes {
		return Verdict{Reason: ReasonTooSmall, Detail: strconv.FormatInt(n, 10)}
	}
	if n > g.cfg.MaxDocBytes {
		return Verdict{Reason: ReasonTooLarge, Detail: strconv.FormatInt(n, 10)}
	}
	return Verdict{OK: true, Reason: ReasonOK}
}

// Check runs the full gate sequence, short-circuiting on the first failure.
// sample is only invoked once the byte bounds have passed.
func (g *Gate) Check(data []byte, sample SampleFunc) Verdict {
	if v := g.CheckSize(int64(len(data))); !v.OK {
		return v
	}

	text, err := sample(data)
	if err != nil {
		return Verdict{Reason: ReasonExtractFailed, Detail: err.Error()}
	}

	text = util.CollapseSpaces(text)
	if text == "" {
		return Verdict{Reason: ReasonNoText}
	}

	chars := len([]rune(text))
	if chars < g.cfg.MinExtractedChars {
		return Verdict{Reason: ReasonLowChars, Detail: strconv.Itoa(chars)}
	}

	if ratio := util.AlphaRatio(text); ratio < g.cfg.MinAlphaRatio {
		return Verdict{Reason: ReasonLowAlpha, Detail: strconv.FormatFloat(ratio, 'f', 2, 64)}
	}

	return Verdict{OK: true, Reason: ReasonOK}
}
