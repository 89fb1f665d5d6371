package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/internal/telemetry"
	"github.com/marmos91/savepoint/pkg/archive"
	cperrors "github.com/marmos91/savepoint/pkg/checkpoint/errors"
	"github.com/marmos91/savepoint/pkg/state/staging"
)

// snapshot pauses the machine, serializes the internal structures and every
// registered component into a fresh staging list, and resumes the machine.
// The returned list is a complete snapshot independent of further machine
// execution; ownership passes to the caller.
//
// The preview image, when capture is configured, is taken while the machine
// is paused so it matches the captured state.
func (e *Engine) snapshot(ctx context.Context, target string) (*staging.List, []byte, error) {
	if !e.machine.HasValidState() {
		return nil, nil, cperrors.NewNoActiveState()
	}

	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanSnapshot, target)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, nil, cperrors.NewCancelled(target, err)
	}

	start := time.Now()

	if err := e.machine.Pause(ctx); err != nil {
		return nil, nil, cperrors.NewCancelled(target, err)
	}
	defer e.machine.Resume()

	list := staging.NewList()

	// The internal-structures record is mandatory on restore, so it is
	// recorded even when the engine produced no bytes for it.
	recorded, err := list.Append(archive.EntryInternals, e.machine.SaveInternals)
	if err != nil {
		return nil, nil, cperrors.NewComponentIO(target, archive.EntryInternals, "save", err)
	}
	if !recorded {
		list.Add(staging.Entry{Name: archive.EntryInternals, Offset: list.Pos(), Size: 0})
	}

	for _, c := range e.registry.Components() {
		recorded, err := list.Append(c.Filename(), c.Save)
		if err != nil {
			return nil, nil, cperrors.NewComponentIO(target, c.Filename(), "save", err)
		}
		if !recorded {
			logger.DebugCtx(ctx, "Component reported no state, omitting entry",
				logger.Component(c.Filename()))
		}
	}

	if e.maxStagedBytes > 0 && list.Len() > e.maxStagedBytes {
		return nil, nil, fmt.Errorf("staged snapshot is %d bytes, over the configured limit of %d",
			list.Len(), e.maxStagedBytes)
	}

	var preview []byte
	if e.preview != nil {
		preview = e.preview()
	}

	span.SetAttributes(
		telemetry.Entries(len(list.Entries())),
		telemetry.Bytes(list.Len()),
	)

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordStageDuration("snapshot", elapsed)
		e.metrics.RecordStagedBytes(list.Len())
	}

	logger.InfoCtx(ctx, "Snapshot captured",
		logger.Size(list.Len()),
		"entries", len(list.Entries()),
		logger.DurationMs(float64(elapsed.Milliseconds())))

	return list, preview, nil
}
