// Package bus is the in-process bounded message queue (§4.M): one
// producer-side enqueue, one consumer-side process_one, full-queue
// rejection rather than silent drop.
package bus
