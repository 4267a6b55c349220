package flow

const (
	// DefaultFlushTimeout is how long a stale-but-open flow is allowed to sit
	// on a sequence gap before the assembler is forced to skip it and
	// deliver what it has.
	DefaultFlushTimeout = 30

	// DefaultCloseTimeout is the idle-timeout default from the concurrency
	// model: a flow with no new bytes for this long is torn down.
	DefaultCloseTimeout = 300

	// DefaultMaxBufferedPagesTotal bounds total reassembly memory across all
	// flows; a gopacket page is ~1900 bytes.
	DefaultMaxBufferedPagesTotal = 100000

	// DefaultMaxBufferedPagesPerConnection stands in for the per-half-stream
	// 1 MiB reorder-buffer cap; ~550 pages is close to 1 MiB at 1900B/page.
	DefaultMaxBufferedPagesPerConnection = 550
)

// Options configures a Demux's underlying reassembly.Assembler.
type Options struct {
	FlushTimeoutSeconds int64
	CloseTimeoutSeconds int64

	MaxBufferedPagesTotal         int
	MaxBufferedPagesPerConnection int
}

func NewOptions() Options {
	return Options{
		FlushTimeoutSeconds:           DefaultFlushTimeout,
		CloseTimeoutSeconds:           DefaultCloseTimeout,
		MaxBufferedPagesTotal:         DefaultMaxBufferedPagesTotal,
		MaxBufferedPagesPerConnection: DefaultMaxBufferedPagesPerConnection,
	}
}

type Option func(*Options)

func WithCloseTimeoutSeconds(s int64) Option {
	return func(o *Options) { o.CloseTimeoutSeconds = s }
}

func WithFlushTimeoutSeconds(s int64) Option {
	return func(o *Options) { o.FlushTimeoutSeconds = s }
}
