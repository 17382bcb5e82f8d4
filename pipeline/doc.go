// Package pipeline runs the capture loop: acquire a frame into the scratch
// slot, score it against the last published frame and publish it to every
// published slot when it differs enough.
//
// The loop is the only writer of the published slots. It shares no memory
// with the readers of those slots; they rely on the atomic replace done by
// package publish.
package pipeline
