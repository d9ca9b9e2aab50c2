// Package protocol defines the dhke wire messages and the ordered state
// machine that decides which message may be sent or received next.
//
// # Messages
//
// Five tagged variants make up one exchange:
//
//	tag  message       payload
//	0    ClientHello   empty
//	1    ServerHello   int(p) int(g)
//	2    ClientPublic  int(X)
//	3    ServerPublic  int(Y)
//	4    Done          empty
//
// # Framing
//
// Every frame is tag(1) | length(4, big-endian) | payload(length). An integer
// inside a payload is length(4, big-endian) | magnitude(length, big-endian).
// Payloads larger than MaxPayload are rejected before they are read.
//
// # Sequence
//
//	Initiator                          Responder
//	Idle
//	  send ClientHello  ───────────▶  Idle
//	AwaitServerHello                    recv ClientHello
//	                                  AwaitParamsSent
//	  recv ServerHello  ◀───────────    send ServerHello
//	AwaitOwnPublicSent                AwaitClientPublic
//	  send ClientPublic ───────────▶    recv ClientPublic
//	AwaitServerPublic                 AwaitOwnPublicSent
//	  recv ServerPublic ◀───────────    send ServerPublic
//	KeyComputed                       KeyComputed → AwaitDone
//	  send Done         ───────────▶    recv Done
//	Closed                            Closed
//
// Any other message moves the machine to Failed with an error wrapping
// domain.ErrProtocolViolation. There is no retransmission or reordering.
package protocol
