package httpwire

import "github.com/mcpwatch/mcpwatch/internal/memview"

// Decision is the outcome of trying to recognize a start-line at the front of
// a buffer: either it is there (Accept), it cannot possibly be there
// (Reject), or there is not yet enough data to tell (NeedMoreData).
type Decision int

const (
	NeedMoreData Decision = iota
	Accept
	Reject
)

// scanRequestLine looks for a request-line (RFC 7230 §3.1.1) starting at
// offset 0 of input. It returns the decision and, on Accept, the length in
// bytes of the matched line including the trailing CRLF/LF.
func scanRequestLine(input memview.MemView) (Decision, int64) {
	if input.Len() < minSupportedHTTPMethodLength {
		return NeedMoreData, 0
	}

	for _, m := range supportedHTTPMethods {
		mlen := int64(len(m))
		if input.Len() < mlen {
			continue
		}
		if !input.SubView(0, mlen).Equal(memview.New([]byte(m))) {
			continue
		}
		d, lineLen := hasValidRequestLineTail(input.SubView(mlen, input.Len()))
		if d == Accept {
			return Accept, mlen + lineLen
		}
		if d == NeedMoreData {
			return NeedMoreData, 0
		}
		// Reject for this method: another method might still match if it's a
		// prefix collision (it can't be, since methods are mutually
		// exclusive prefixes here), so fall through to Reject below.
	}

	if input.Len() < int64(maxSupportedHTTPMethodLength) {
		return NeedMoreData, 0
	}
	return Reject, 0
}

// hasValidRequestLineTail checks for " <target> HTTP/1.x\r\n" (or \n),
// input starting right after the method token.
func hasValidRequestLineTail(input memview.MemView) (Decision, int64) {
	if input.Len() == 0 {
		return NeedMoreData, 0
	}
	if input.GetByte(0) != ' ' {
		return Reject, 0
	}

	nextSP := input.Index(1, []byte(" "))
	if nextSP < 0 {
		if input.Len()-1 > maxHTTPRequestURILength {
			return Reject, 0
		}
		return NeedMoreData, 0
	}
	if nextSP == 1 {
		return Reject, 0
	}

	tail := input.SubView(nextSP+1, input.Len())
	if tail.Len() < 9 {
		return NeedMoreData, 0
	}
	if !startsWithVersion(tail) {
		return Reject, 0
	}

	eol := tail.Index(0, []byte("\n"))
	if eol < 0 {
		return NeedMoreData, 0
	}
	return Accept, nextSP + 1 + eol + 1
}

// scanStatusLine looks for a status-line (RFC 7230 §3.1.2) starting at
// offset 0 of input.
func scanStatusLine(input memview.MemView) (Decision, int64) {
	if input.Len() < 9 {
		return NeedMoreData, 0
	}
	if !startsWithVersion(input) {
		return Reject, 0
	}

	rest := input.SubView(8, input.Len())
	if rest.Len() < 5 {
		return NeedMoreData, 0
	}
	if rest.GetByte(0) != ' ' || rest.GetByte(4) != ' ' {
		return Reject, 0
	}
	if !isASCIIDigit(rest.GetByte(1)) || !isASCIIDigit(rest.GetByte(2)) || !isASCIIDigit(rest.GetByte(3)) {
		return Reject, 0
	}

	eol := rest.Index(0, []byte("\n"))
	if eol < 0 {
		if rest.Len()-4 > maxHTTPReasonPhraseLength {
			return Reject, 0
		}
		return NeedMoreData, 0
	}
	return Accept, 8 + eol + 1
}

func startsWithVersion(input memview.MemView) bool {
	if input.Len() < 8 {
		return false
	}
	return input.SubView(0, 8).Equal(memview.New([]byte("HTTP/1.1"))) ||
		input.SubView(0, 8).Equal(memview.New([]byte("HTTP/1.0")))
}

func isASCIIDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

// SniffRole guesses whether buf opens with a request-line or a status-line,
// for the case where no SYN was observed to tell client from server
// directly. It tries the request-line scan first (status-lines cannot be
// confused with it, since "HTTP/1.1" is not among supportedHTTPMethods).
func SniffRole(buf memview.MemView) (Role, Decision) {
	if d, _ := scanRequestLine(buf); d == Accept {
		return RoleRequest, Accept
	}
	if d, _ := scanStatusLine(buf); d == Accept {
		return RoleResponse, Accept
	}
	if buf.Len() < int64(maxSupportedHTTPMethodLength) {
		return RoleRequest, NeedMoreData
	}
	reqDecision, _ := scanRequestLine(buf)
	respDecision, _ := scanStatusLine(buf)
	if reqDecision == NeedMoreData || respDecision == NeedMoreData {
		return RoleRequest, NeedMoreData
	}
	return RoleRequest, Reject
}
