// Package moderation judges submission proofs with an external classifier.
//
// Classifier output is untrusted free text. ParseVerdict only produces an
// Accept or Reject verdict when the payload is well formed and internally
// consistent; anything else is Unparseable and must not move a submission.
package moderation

import (
	"strings"

	"github.com/tidwall/gjson"

	"zenithAPI/internal/submission"
)

type VerdictKind int

const (
	VerdictUnparseable VerdictKind = iota
	VerdictAccept
	VerdictReject
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	default:
		return "unparseable"
	}
}

type Verdict struct {
	Kind   VerdictKind
	Reason string
	// Problem explains why an Unparseable verdict was rejected.
	Problem string
}

// Decisive reports whether the verdict may drive a settlement.
func (v Verdict) Decisive() bool {
	return v.Kind == VerdictAccept || v.Kind == VerdictReject
}

// Status maps a decisive verdict to the terminal submission status.
func (v Verdict) Status() (submission.Status, bool) {
	switch v.Kind {
	case VerdictAccept:
		return submission.StatusCompleted, true
	case VerdictReject:
		return submission.StatusRejected, true
	default:
		return "", false
	}
}

func unparseable(problem string) Verdict {
	return Verdict{Kind: VerdictUnparseable, Problem: problem}
}

// ParseVerdict decodes {"isValid": bool, "reason": string,
// "suggestedStatus": "COMPLETED"|"REJECTED"}, optionally wrapped in a
// markdown code fence.
func ParseVerdict(raw string) Verdict {
	body := stripFence(raw)
	if body == "" {
		return unparseable("empty response")
	}
	if !gjson.Valid(body) {
		return unparseable("response is not valid JSON")
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return unparseable("response is not a JSON object")
	}

	isValid := doc.Get("isValid")
	if isValid.Type != gjson.True && isValid.Type != gjson.False {
		return unparseable("isValid missing or not a boolean")
	}
	reason := doc.Get("reason")
	if reason.Type != gjson.String || strings.TrimSpace(reason.Str) == "" {
		return unparseable("reason missing or empty")
	}
	status := doc.Get("suggestedStatus")
	if status.Type != gjson.String {
		return unparseable("suggestedStatus missing or not a string")
	}

	text := strings.TrimSpace(reason.Str)
	switch submission.Status(status.Str) {
	case submission.StatusCompleted:
		if !isValid.Bool() {
			return unparseable("isValid=false contradicts COMPLETED")
		}
		return Verdict{Kind: VerdictAccept, Reason: text}
	case submission.StatusRejected:
		if isValid.Bool() {
			return unparseable("isValid=true contradicts REJECTED")
		}
		return Verdict{Kind: VerdictReject, Reason: text}
	default:
		return unparseable("unknown suggestedStatus " + status.Str)
	}
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
