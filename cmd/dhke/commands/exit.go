package commands

import "dhke/internal/domain"

// Exit codes, one per error category.
const (
	exitOK        = 0
	exitInternal  = 1
	exitNetwork   = 2
	exitTimeout   = 3
	exitProtocol  = 4
	exitCrypto    = 5
	exitParameter = 6
)

// ExitCode maps err onto the process exit status. Usage and configuration
// errors carry no category and exit as internal.
func ExitCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNone:
		return exitOK
	case domain.KindNetwork:
		return exitNetwork
	case domain.KindTimeout:
		return exitTimeout
	case domain.KindProtocol:
		return exitProtocol
	case domain.KindCrypto:
		return exitCrypto
	case domain.KindParameter, domain.KindRandomness:
		return exitParameter
	default:
		return exitInternal
	}
}
