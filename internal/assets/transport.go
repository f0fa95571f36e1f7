package assets

// Transport abstracts the reliable, ordered, message-oriented binary
// channel the asset engine runs over (§6 "assets" channel). A concrete
// implementation adapts this to a real WebRTC data channel or, for local
// testing, an in-process pipe — grounded on the teacher's transport/ws
// split between an inbound read loop and an outbound buffered-write path.
type Transport interface {
	// Send writes one already-framed message. The Sender does not send a
	// Chunk while BufferedAmount() exceeds the high-water mark; it waits for
	// a buffered-amount-low notification first (§4.4). Other frames
	// (Manifest, NeedChunks, ScriptPush, GameStart) are sent without that
	// check.
	Send(frame []byte) error

	// BufferedAmount reports the transport's current outbound byte
	// backlog.
	BufferedAmount() int

	// SetBufferedAmountLowHandler registers the callback the transport
	// invokes once BufferedAmount() has fallen to or below the low-water
	// threshold. Only one handler is active at a time; registering a new
	// one replaces the previous.
	SetBufferedAmountLowHandler(func())
}

// HighWaterMark and LowWaterMark are both 1 MiB per §4.4 — the same byte
// count used in both the pause and resume role.
const (
	HighWaterMark = 1 << 20
	LowWaterMark  = 1 << 20
)
