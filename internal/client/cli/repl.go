package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Record(ctx context.Context) error
	Stop(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	Process(ctx context.Context) error
	Poll(ctx context.Context, args []string) error
	Show(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Submit(ctx context.Context) error
	Discard(ctx context.Context) error
}

// needsLogin lists commands that talk to the backend.
var needsLogin = map[string]bool{
	"status": true, "record": true, "upload": true,
	"process": true, "poll": true, "submit": true,
}

// runREPL starts a simple read–eval–print loop for the EncounterScribe CLI.
//
// It reads a line from the scanner, parses the first token as the command,
// and dispatches to methods on 'a'. The loop exits on scanner EOF or when the
// user types "exit" or "quit".
//
// Commands
//
//	login | logout | status
//	record | stop             microphone capture, then upload and process
//	upload [file]             upload a file (default: last recording) and process it
//	process                   re-run processing for the attached recording
//	poll [job id]             wait for a job (default: the last one)
//	show                      print the draft
//	edit <field> [value]      change a draft field
//	submit                    save the encounter
//	discard                   throw the draft away
//	exit | quit
//
// Errors returned by command handlers are ignored here; handlers print their
// own message. This keeps the loop focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("es%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if needsLogin[cmd] && !a.isLoggedIn() {
			printlnFn("You are not signed in. Use 'login' first.")
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: record, stop, upload [file], process, poll [id], show, edit <field> [value], submit, discard, status, logout, exit")
			} else {
				printlnFn("Available commands: login, show, edit <field> [value], discard, exit")
			}

		case "login":
			_ = a.Login(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "status":
			_ = a.Status(ctx)
		case "record":
			_ = a.Record(ctx)
		case "stop":
			_ = a.Stop(ctx)
		case "upload":
			_ = a.Upload(ctx, args)
		case "process":
			_ = a.Process(ctx)
		case "poll":
			_ = a.Poll(ctx, args)
		case "show":
			_ = a.Show(ctx)
		case "edit":
			_ = a.Edit(ctx, args)
		case "submit":
			_ = a.Submit(ctx)
		case "discard":
			_ = a.Discard(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
