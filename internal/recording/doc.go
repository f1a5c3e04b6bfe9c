// Package recording implements the recording pipeline: the task handlers
// that start a remote recording, fetch and persist its artifact, transcribe it
// and expire old artifacts, plus the Trigger that turns completion signals
// into process_recording tasks.
//
// Handlers are idempotent by recording unique ID so that at-least-once task
// execution never corrupts a recording. Every status change goes through the
// registry, which rejects transitions the recording lifecycle does not allow.
//
// Blob layout, per recording:
//
//	recordings/<unique_id>/metadata.json
//	recordings/<unique_id>/recording.mp4
//	recordings/<unique_id>/transcript.txt
package recording
