package block

const (
	// Newline terminates every length line and every payload.
	Newline = "\n"

	// MaxBlockSize is the largest block payload accepted by ReadBlock.
	// A larger declared length is treated as a framing error instead of an allocation.
	MaxBlockSize = 64 << 20

	// maxLengthDigits bounds the length line of a block.
	maxLengthDigits = 20
)

// Framing steps reported by FramingError.
const (
	StepLength     = "length"
	StepPayload    = "payload"
	StepTerminator = "terminator"
	StepDecode     = "decode"
)
