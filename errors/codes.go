package errors

// ErrorCode is a stable, string-based identifier for an error kind.
// Codes are intended for logs and machine-readable run summaries.
type ErrorCode string

const (
	// CodeStreamCorruption identifies ErrStreamCorruption.
	CodeStreamCorruption ErrorCode = "STREAM_CORRUPTION"

	// CodeDecodeFailure identifies ErrDecodeFailure.
	CodeDecodeFailure ErrorCode = "DECODE_FAILURE"

	// CodeNetwork identifies ErrNetworkFailure.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeStorage identifies ErrStorageFailure.
	CodeStorage ErrorCode = "STORAGE_ERROR"

	// CodeInvalidState identifies ErrInvalidState.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeInvalidInput identifies ErrInvalidInput.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeCanceled indicates the run was cancelled or timed out.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeUnknown indicates an unclassified error.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// CodeOf classifies err. A nil error yields the empty code.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case IsStreamCorruption(err):
		return CodeStreamCorruption
	case IsDecodeFailure(err):
		return CodeDecodeFailure
	case IsNetworkFailure(err):
		return CodeNetwork
	case IsStorageFailure(err):
		return CodeStorage
	case IsInvalidState(err):
		return CodeInvalidState
	case IsInvalidInput(err):
		return CodeInvalidInput
	case isCanceled(err):
		return CodeCanceled
	default:
		return CodeUnknown
	}
}
