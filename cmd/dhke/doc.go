// Command dhke runs a Diffie-Hellman key exchange server or client.
//
// Usage:
//
//	dhke server [--listen :4040] [--transport tcp|kcp] [--source group|generate|per-session|file]
//	dhke client [host:port] [--discover] [--show-secret] [--save-key FILE]
//	dhke params [--group 14 | --bits 1024] [--out FILE] [--check FILE]
//	dhke status http://host:port
//	dhke genconfig > dhke.yaml
//
// Exit status: 0 success, 1 internal or usage error, 2 network, 3 timeout,
// 4 protocol violation, 5 crypto validation, 6 parameter or randomness.
package main
