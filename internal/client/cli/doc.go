// Package cli provides the interactive EncounterScribe command-line client.
//
// It wires configuration, local storage, the API client and services, and a
// REPL. Typical flow: sign in, record or upload an encounter, wait for the
// transcript and SOAP note, review and edit the draft, submit.
//
// Key features:
//   - Login / Logout / session status
//   - Record from the microphone, or upload an existing file
//   - Process and resume processing of a job
//   - Show / Edit the draft, Submit, Discard
//
// Every failure is reported as a single line (see userMessage). The REPL is
// started via App.Root(ctx), which blocks until the user exits.
package cli
