// Package transcribe adapts a local whisper.cpp model onto
// attachments.Converter, giving the "audio" media-type category a real
// speech-to-text backend.
package transcribe
