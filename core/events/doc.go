// Package events defines the typed client event contract consumed by user
// interfaces.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - capture.*
//   - playback.*
//   - chat.*
//   - status.*
//
// session events
//
//   - SessionConnecting (session.connecting): a session is being dialed.
//   - SessionOpened (session.opened): the endpoint accepted the session.
//   - SessionReset (session.reset): the session was replaced by a fresh one.
//   - SessionClosed (session.closed): the session ended; includes the remote
//     reason when one was given.
//   - SessionFailed (session.failed): connecting failed or the session
//     reported an error.
//
// capture events
//
//   - CaptureStarted (capture.started): the microphone is open and streaming.
//   - CaptureStopped (capture.stopped): the microphone was released.
//   - CaptureFailed (capture.failed): capture could not start or stopped on
//     a send failure.
//
// playback events
//
//   - PlaybackInterrupted (playback.interrupted): the model was interrupted
//     and every scheduled chunk was flushed.
//   - PlaybackTurnComplete (playback.turn_complete): the model finished its
//     turn.
//
// chat events
//
//   - ChatMessageUpdated (chat.message_updated): mutable snapshot of the
//     streamed model reply.
//   - ChatMessageFinal (chat.message_final): the reply is complete or failed.
//
// status events
//
//   - StatusUpdated (status.updated): the user-facing status or error line
//     changed. Status and error are mutually exclusive.
package events
