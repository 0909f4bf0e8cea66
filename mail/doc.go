// Package mail is the outbound-email boundary of the engine.
//
// The engine only sees [Mailer]. Concrete providers live behind it:
//
//   - mail/smtp: SMTP delivery via gomail.
//   - [Console]: writes messages to the structured log; development only.
//   - [Recorder]: keeps messages in memory for tests and demos.
//
// [Dispatcher] wraps any Mailer with a bounded asynchronous queue for sends
// whose failure must not fail the calling request.
//
// # What this package must NOT do
//
//   - Generate tokens or decide who receives mail.
//   - Retry failed sends.
package mail
