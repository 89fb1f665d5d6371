package checkpoint

import (
	"archive/zip"
	"context"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/internal/telemetry"
	"github.com/marmos91/savepoint/pkg/archive"
	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
	"github.com/marmos91/savepoint/pkg/state"
)

// Phase is one step of a restore operation's state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpening
	PhaseScanning
	PhaseValidating
	PhaseRestoring
	PhaseResuming
	PhaseDone
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpening:
		return "opening"
	case PhaseScanning:
		return "scanning"
	case PhaseValidating:
		return "validating"
	case PhaseRestoring:
		return "restoring"
	case PhaseResuming:
		return "resuming"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// restore reads the archive at path back into the machine. It runs
// synchronously on the executor with the machine paused throughout, holding
// the disk exclusion lock for its entire duration.
//
// Failures in the opening, scanning, and validating phases are guaranteed to
// leave the machine unmutated: the scan is read-only and completeness is
// confirmed before any component is touched. A component failure during the
// restoring phase is fatal and leaves the machine partially restored and
// paused; resuming a half-restored machine is unsafe.
func (e *Engine) restore(ctx context.Context, path string) (err error) {
	e.diskMu.Lock()
	defer e.diskMu.Unlock()

	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanRestore, path)
	defer span.End()

	start := time.Now()
	phase := PhaseIdle

	defer func() {
		if err != nil {
			phase = PhaseFailed
		}
		elapsed := time.Since(start)
		if e.metrics != nil {
			e.metrics.RecordLoad(statusOf(err), elapsed)
			e.metrics.RecordStageDuration("restore", elapsed)
		}
		span.SetAttributes(telemetry.Status(statusOf(err)))
		telemetry.RecordError(ctx, err)
		if err != nil {
			logger.ErrorCtx(ctx, "Restore failed",
				logger.Archive(path), logger.Stage(phase.String()), logger.Err(err))
		} else {
			logger.InfoCtx(ctx, "Restore complete",
				logger.Archive(path),
				logger.DurationMs(float64(elapsed.Milliseconds())))
		}
	}()

	if cerr := ctx.Err(); cerr != nil {
		return cperrors.NewCancelled(path, cerr)
	}

	if perr := e.machine.Pause(ctx); perr != nil {
		return cperrors.NewCancelled(path, perr)
	}

	// The machine resumes on success and on every structural failure, where
	// nothing was mutated. It stays paused after a component failure
	// mid-restore.
	resumeOnExit := true
	defer func() {
		if resumeOnExit {
			e.machine.Resume()
		}
	}()

	phase = PhaseOpening
	r, oerr := archive.Open(path)
	if oerr != nil {
		return oerr
	}
	defer r.Close()

	phase = PhaseScanning
	versionSeen := false
	var internals *zip.File
	found := make(map[string]*zip.File)

	// Single directory pass; each entry is classified exactly once and its
	// handle kept for the apply phase.
	for _, f := range r.Files() {
		if cerr := ctx.Err(); cerr != nil {
			return cperrors.NewCancelled(path, cerr)
		}

		switch {
		case archive.EqualName(f.Name, archive.EntryStateVersion):
			v, verr := r.ReadVersion(f)
			if verr != nil {
				return verr
			}
			if verr := archive.CheckVersion(path, e.version, v); verr != nil {
				return verr
			}
			versionSeen = true

		case archive.EqualName(f.Name, archive.EntryScreenshot):
			// Preview image, not machine state.

		case archive.EqualName(f.Name, archive.EntryInternals):
			internals = f

		default:
			if c, ok := e.lookupComponent(f.Name); ok {
				found[c.Filename()] = f
			} else {
				logger.DebugCtx(ctx, "Ignoring unrecognized archive entry",
					logger.Entry(f.Name))
			}
		}
	}

	phase = PhaseValidating
	if !versionSeen {
		return cperrors.NewMissingCoreData(path, archive.EntryStateVersion)
	}
	if internals == nil {
		return cperrors.NewMissingCoreData(path, archive.EntryInternals)
	}

	var missing []string
	for _, c := range e.registry.Components() {
		if c.Required() && found[c.Filename()] == nil {
			logger.WarnCtx(ctx, "Mandatory component absent from archive",
				logger.Component(c.Filename()))
			missing = append(missing, c.Filename())
		}
	}
	if len(missing) > 0 {
		return cperrors.NewMissingComponents(path, missing)
	}

	if cerr := ctx.Err(); cerr != nil {
		return cperrors.NewCancelled(path, cerr)
	}

	// Mutation begins here. No cancellation checks past this point: aborting
	// between component loads would leave the machine half-restored.
	phase = PhaseRestoring
	e.machine.ClearExecutionCaches()

	for _, c := range e.registry.Components() {
		f := found[c.Filename()]
		if f == nil {
			// Absent optional component: legitimately no data.
			continue
		}
		if lerr := e.loadComponent(r, c, f); lerr != nil {
			resumeOnExit = false
			return lerr
		}
	}

	// Internal structures last: they may depend on component memory already
	// being in place.
	rc, ierr := r.OpenEntry(internals)
	if ierr != nil {
		resumeOnExit = false
		return cperrors.NewComponentIO(path, archive.EntryInternals, "load", ierr)
	}
	ierr = e.machine.LoadInternals(rc)
	rc.Close()
	if ierr != nil {
		resumeOnExit = false
		return cperrors.NewComponentIO(path, archive.EntryInternals, "load", ierr)
	}

	// Restore always leaves the machine running, whatever its state before.
	phase = PhaseResuming
	resumeOnExit = false
	e.machine.Resume()

	phase = PhaseDone
	return nil
}

// loadComponent feeds one archive record into a component.
func (e *Engine) loadComponent(r *archive.Reader, c state.Component, f *zip.File) error {
	rc, err := r.OpenEntry(f)
	if err != nil {
		return cperrors.NewComponentIO(r.Path(), c.Filename(), "load", err)
	}
	defer rc.Close()

	if err := c.Load(rc, int64(f.UncompressedSize64)); err != nil {
		return cperrors.NewComponentIO(r.Path(), c.Filename(), "load", err)
	}
	return nil
}

// lookupComponent matches an archive entry name against the registry,
// falling back to a case-insensitive scan to match the historical reader.
func (e *Engine) lookupComponent(name string) (state.Component, bool) {
	if c, ok := e.registry.Lookup(name); ok {
		return c, true
	}
	for _, c := range e.registry.Components() {
		if archive.EqualName(c.Filename(), name) {
			return c, true
		}
	}
	return nil, false
}
