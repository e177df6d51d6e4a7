// Package exchange correlates netlink requests with their responses.
//
// A Socket never touches a file descriptor: it's driven by a Port running a
// single event loop which calls back into the Socket (i.e. its Handler
// methods) whenever it can write a datagram or has read one. Callers on
// other goroutines enqueue messages, wake the loop up through Trigger and
// wait for the loop to report the outcome. Responses are matched to their
// request by sequence number, so any number of exchanges can be in flight
// over the same socket.
package exchange
