package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
)

func (a *App) getStatus() string {
	var parts []string
	if a.isLoggedIn() {
		parts = append(parts, "signed in")
	}
	a.mu.Lock()
	mode := a.Mode
	a.mu.Unlock()
	if mode != "" {
		parts = append(parts, string(mode))
	}
	if rec := a.recordingStatus(); rec != "" {
		parts = append(parts, rec)
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(" (%s)", strings.Join(parts, ", "))
}

// Root greets the user, checks the stored session, starts the connectivity
// watcher and runs the REPL until exit.
func (a *App) Root(ctx context.Context) {
	a.printf("Welcome to EncounterScribe (type 'help' for commands)\n")

	if a.isLoggedIn() {
		_ = a.Status(ctx)
	} else {
		a.printf("You are not signed in. Use 'login' first.\n")
	}

	if d := a.encounters.Draft(); d != (models.Draft{}) {
		a.printf("A draft from a previous session was restored. Use 'show' to review it.\n")
	}
	if job, ok, err := a.encounters.LastJob(ctx); err == nil && ok && !job.Status.Terminal() {
		a.printf("Job %s was %s when the client last ran. Use 'poll' to resume it.\n", job.ID, job.Status)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
