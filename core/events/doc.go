// Package events defines the typed event contract between the speech-model
// link and the conversation orchestrator.
//
// Event kinds mirror the wire-level event stream:
//
//   - session.created: the model session was established.
//   - session.updated: the model acknowledged session configuration.
//   - speech.started: the model's voice-activity detection heard the user
//     start speaking.
//   - speech.stopped: the model's voice-activity detection heard the user
//     stop speaking.
//   - transcript.user: a finalized transcription of user speech.
//   - text.delta: an incremental response text token.
//   - text.done: the response text stream is complete.
//   - audio.delta: an incremental response audio chunk (decoded PCM bytes).
//   - audio.done: the response audio stream is complete.
//   - response.done: the full model response (text, audio, function calls)
//     is complete.
//   - function_call.done: the model finished emitting a function call and
//     expects a result.
//   - error: the model reported an error.
//
// Events are immutable once constructed. Unknown wire events never reach this
// package; the link drops them after logging.
package events
