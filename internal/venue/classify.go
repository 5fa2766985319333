package venue

import (
	"encoding/json"
	"strings"

	"fee-reinvestor/internal/domain"
)

// nothingToClaimMarkers are substrings the venue uses in error bodies when
// there are no fees to collect. Matched case-insensitively.
var nothingToClaimMarkers = []string{
	"no fees",
	"nothing to claim",
	"no creator fee",
	"no fees to claim",
}

// ClassifyClaimResponse maps a fee-collection response onto a ClaimStatus.
// It is the only place the venue's free-text errors are interpreted.
func ClassifyClaimResponse(status int, body []byte) domain.ClaimStatus {
	if status >= 200 && status < 300 {
		return domain.ClaimAccepted
	}
	text := strings.ToLower(string(body))
	for _, marker := range nothingToClaimMarkers {
		if strings.Contains(text, marker) {
			return domain.ClaimNothing
		}
	}
	return domain.ClaimFailed
}

// tradeResponse covers the fields the venue may return on a trade call.
// Fields are read individually so one malformed field does not hide the rest.
type tradeResponse struct {
	fields map[string]json.RawMessage
}

func (r *tradeResponse) str(key string) string {
	raw, ok := r.fields[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// signature returns the first non-empty signature field.
func (r *tradeResponse) signature() string {
	for _, key := range []string{"signature", "txSignature", "transaction"} {
		if sig := r.str(key); sig != "" {
			return sig
		}
	}
	return ""
}

// amount returns the venue-reported amount for logging only.
func (r *tradeResponse) amount() string {
	raw, ok := r.fields["amount"]
	if !ok {
		return ""
	}
	return strings.Trim(string(raw), `"`)
}

// errors returns the entries of a non-empty errors field.
func (r *tradeResponse) errors() []string {
	raw, ok := r.fields["errors"]
	if !ok {
		return nil
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) != nil {
		if s := strings.TrimSpace(string(raw)); s != "null" && s != "" && s != "{}" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		var s string
		if json.Unmarshal(e, &s) == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(e))
	}
	return out
}

// errorText flattens the errors field, falling back to error or message.
func (r *tradeResponse) errorText() string {
	if errs := r.errors(); len(errs) > 0 {
		return strings.Join(errs, "; ")
	}
	if msg := r.str("error"); msg != "" {
		return msg
	}
	return r.str("message")
}

// parseTrade decodes a trade body. A body that is not a JSON object is
// returned raw with a nil response.
func parseTrade(body []byte) (resp *tradeResponse, raw string) {
	trimmed := strings.TrimSpace(string(body))
	var fields map[string]json.RawMessage
	if !strings.HasPrefix(trimmed, "{") || json.Unmarshal(body, &fields) != nil {
		return nil, trimmed
	}
	return &tradeResponse{fields: fields}, ""
}

// errorBody extracts a readable error from a non-2xx body.
func errorBody(body []byte) string {
	if r, raw := parseTrade(body); r != nil {
		if msg := r.errorText(); msg != "" {
			return msg
		}
	} else if raw != "" {
		return raw
	}
	return strings.TrimSpace(string(body))
}
