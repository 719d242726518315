package core

// Exit codes for the sr command.
// Signal-based exits follow the Unix convention of 128 + signal number.
const (
	// ExitCodeSuccess indicates every discovered image was processed
	ExitCodeSuccess = 0

	// ExitCodeError indicates at least one image failed and was skipped
	ExitCodeError = 1

	// ExitCodeConfig indicates invalid configuration detected at startup
	ExitCodeConfig = 2

	// ExitCodeNoInput indicates neither --file nor --folder resolved to an image
	ExitCodeNoInput = 3

	// ExitCodeSIGINT indicates the batch was interrupted with Ctrl+C (128 + 2)
	ExitCodeSIGINT = 130
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "partial failure"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeNoInput:
		return "no input"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	default:
		return "unknown"
	}
}
