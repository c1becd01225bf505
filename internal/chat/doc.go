// Package chat is the client side of a couple room: the ordered message list
// with its device-local cache, the realtime bridge that feeds remote messages
// into it, and the optimistic sender that shows a message before the server
// has confirmed it.
//
// A Conversation owns one MessageStore and mutates it from a single
// goroutine. The Bridge and Sender run their I/O elsewhere and hand results
// back over channels, so nothing in the store needs a lock.
package chat
