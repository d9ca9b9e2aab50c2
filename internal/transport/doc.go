// Package transport opens the byte streams sessions run over.
//
// Two transports are available: plain TCP, and KCP, a reliable ordered
// stream over UDP from github.com/xtaci/kcp-go. Both hand out net.Conn and
// net.Listener values, so the session and server packages never see which
// one is in use. KCP connections run in stream mode with fast retransmit.
package transport
