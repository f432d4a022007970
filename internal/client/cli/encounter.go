package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/client/encounters"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/services"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
)

// interruptible lets Ctrl-C cancel a long command without leaving the REPL.
var interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

func (a *App) callbacks() services.Callbacks {
	last := -1
	return services.Callbacks{
		OnProgress: func(p upload.Progress) {
			if p.Percent != last {
				last = p.Percent
				a.printf("\ruploading... %3d%%", p.Percent)
			}
		},
		OnJob: func(j models.Job) {
			a.printf("\njob %s started\n", j.ID)
		},
		OnStatus: func(s models.JobStatus) {
			a.printf("status: %s\n", s)
		},
	}
}

// Record starts capturing from the microphone.
func (a *App) Record(ctx context.Context) error {
	if err := a.recorder.Start(ctx); err != nil {
		a.report(ctx, err)
		return err
	}
	a.printf("Recording. Type 'stop' to finish (limit %s).\n", a.config.RecordingMaxDuration)
	return nil
}

// Stop ends the recording, saves it and sends it for processing.
func (a *App) Stop(ctx context.Context) error {
	rec, err := a.recorder.Stop(ctx)
	if err != nil {
		a.report(ctx, err)
		return err
	}
	path, err := a.encounters.SaveRecording(rec)
	if err != nil {
		a.report(ctx, err)
		return err
	}
	a.setLastRecording(path)
	a.printf("Recorded %s, saved to %s\n", rec.Duration, path)
	return a.Upload(ctx, []string{path})
}

// onAutoStop runs when the session ended without the user. A recording
// that hit the duration cap is saved for upload; a failed capture yields
// no recording, only the error.
func (a *App) onAutoStop(rec recording.Recording, err error) {
	ctx := context.Background()
	if err != nil {
		a.report(ctx, err)
		return
	}
	path, serr := a.encounters.SaveRecording(rec)
	if serr != nil {
		a.report(ctx, serr)
		return
	}
	a.setLastRecording(path)
	a.printf("\nRecording reached %s and was stopped. Saved to %s; type 'upload' to process it.\n", rec.Duration, path)
}

// Upload sends a file (default: the last recording) and processes it.
func (a *App) Upload(ctx context.Context, args []string) error {
	path := a.getLastRecording()
	if len(args) > 0 {
		path = strings.Join(args, " ")
	}
	if path == "" {
		a.printf("Usage: upload <file>\n")
		return nil
	}

	ctx, stop := interruptible(ctx)
	defer stop()

	cb := a.callbacks()
	meta, err := a.encounters.Upload(ctx, path, cb)
	if err != nil {
		a.printf("\n")
		a.report(ctx, err)
		return err
	}
	a.printf("\nUploaded %s (%.0fs)\n", meta.Name, meta.DurationSeconds)
	return a.process(ctx, meta.Path, cb)
}

// Process re-runs processing for the recording attached to the draft.
func (a *App) Process(ctx context.Context) error {
	path := a.encounters.Draft().RecordingPath
	if path == "" {
		a.printf("No recording attached. Use 'record' or 'upload <file>' first.\n")
		return nil
	}
	ctx, stop := interruptible(ctx)
	defer stop()
	return a.process(ctx, path, a.callbacks())
}

func (a *App) process(ctx context.Context, path string, cb services.Callbacks) error {
	if _, err := a.encounters.Process(ctx, path, cb); err != nil {
		a.report(ctx, err)
		return err
	}
	a.printf("Note ready. Use 'show' to review it.\n")
	return nil
}

// Poll resumes waiting on a job, by default the last one started.
func (a *App) Poll(ctx context.Context, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		job, ok, err := a.encounters.LastJob(ctx)
		if err != nil {
			a.report(ctx, err)
			return err
		}
		if !ok {
			a.printf("Usage: poll <job id>\n")
			return nil
		}
		id = job.ID
		a.printf("Last job %s was %s\n", job.ID, job.Status)
	}

	ctx, stop := interruptible(ctx)
	defer stop()

	if _, err := a.encounters.Resume(ctx, id, a.callbacks()); err != nil {
		a.report(ctx, err)
		return err
	}
	a.printf("Note ready. Use 'show' to review it.\n")
	return nil
}

// Show prints the draft.
func (a *App) Show(_ context.Context) error {
	d := a.encounters.Draft()
	section := func(title, body string) {
		if body == "" {
			body = "(empty)"
		}
		a.printf("== %s ==\n%s\n\n", title, body)
	}
	section("Name", d.Name)
	section("Recording", d.RecordingPath)
	section("Transcript", d.Transcript)
	section("Subjective", d.Subjective)
	section("Objective", d.Objective)
	section("Assessment", d.Assessment)
	section("Plan", d.Plan)
	section("Billing suggestion", d.BillingSuggestion)
	return nil
}

// Edit replaces one draft field: "edit <field> [value]". Without a value
// the new text is read as multiple lines.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printf("Usage: edit <field> [value]. Fields: %s\n", fieldList())
		return nil
	}
	f, err := encounters.ParseField(args[0])
	if err != nil {
		a.report(ctx, err)
		return err
	}

	value := strings.Join(args[1:], " ")
	if value == "" {
		value, err = GetMultiline(a.reader, fmt.Sprintf("Enter %s", f), a.out)
		if err != nil {
			return err
		}
	}

	if err := a.encounters.Set(ctx, f, value); err != nil {
		a.report(ctx, err)
		return err
	}
	a.printf("Saved %s\n", f)
	return nil
}

// Submit saves the encounter on the server and clears the draft.
func (a *App) Submit(ctx context.Context) error {
	id, err := a.encounters.Submit(ctx)
	if err != nil {
		a.report(ctx, err)
		return err
	}
	a.setLastRecording("")
	a.printf("Encounter saved (%s)\n", id)
	return nil
}

// Discard drops the draft after confirmation.
func (a *App) Discard(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "Discard the current draft? (yes/no)", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") && !strings.EqualFold(answer, "y") {
		return nil
	}
	if err := a.encounters.Discard(ctx); err != nil {
		a.report(ctx, err)
		return err
	}
	a.setLastRecording("")
	a.printf("Draft discarded\n")
	return nil
}

func (a *App) recordingStatus() string {
	if a.recorder == nil || a.recorder.State() != recording.StateRecording {
		return ""
	}
	e := a.recorder.Elapsed().Truncate(time.Second)
	return fmt.Sprintf("rec %02d:%02d", int(e.Minutes()), int(e.Seconds())%60)
}

func (a *App) setLastRecording(path string) {
	a.mu.Lock()
	a.lastRecording = path
	a.mu.Unlock()
}

func (a *App) getLastRecording() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRecording
}
