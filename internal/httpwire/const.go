package httpwire

const (
	// Length of the shortest HTTP method we recognize. 3 == len(`GET`).
	minSupportedHTTPMethodLength = 3

	// Length of the longest HTTP method we recognize. 7 == len(`CONNECT`).
	maxSupportedHTTPMethodLength = 7

	// There is no standard limit on request-target length; 2000 bytes is the
	// de facto one most servers enforce, so we allow double that.
	// https://stackoverflow.com/questions/417142
	maxHTTPRequestURILength = 4000

	// Maximum length of a status line's reason phrase that we accept.
	maxHTTPReasonPhraseLength = 512

	// Bytes of unrecognized data tolerated before the first valid start-line,
	// to cope with captures that begin mid-connection.
	maxLeadingGarbageBytes = 8 * 1024

	// Body accumulator cap per message; exceeding this truncates the body
	// early and marks the message Oversize.
	maxBodyBytes = 16 * 1024 * 1024
)

// Sorted with the most common methods first.
var supportedHTTPMethods = []string{
	"GET",
	"POST",
	"DELETE",
	"HEAD",
	"PUT",
	"PATCH",
	"CONNECT",
	"OPTIONS",
	"TRACE",
}
