package isolate

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/logging"
	"github.com/para-dev/para/internal/paths"
)

// JanitorInterval is the minimum time between orphan sweeps, persisted
// across daemon restarts so a crash loop cannot turn "at most once an
// hour" into "once per restart".
const JanitorInterval = time.Hour

// janitorState is the on-disk record of the last sweep time.
type janitorState struct {
	LastRunUnix int64 `json:"last_run_unix"`
}

// Janitor removes para-managed containers with no matching active
// SessionRecord, throttled to run at most once per JanitorInterval.
type Janitor struct {
	container *ContainerLauncher
}

// NewJanitor builds a Janitor sharing the given Container flavor's Docker
// connection.
func NewJanitor(container *ContainerLauncher) *Janitor {
	return &Janitor{container: container}
}

// MaybeRun runs the sweep if the throttle interval has elapsed since the
// last run, persisting the new timestamp on completion (including a
// no-op completion, so a host with nothing to reap doesn't retry every
// call).
func (j *Janitor) MaybeRun(ctx context.Context, activeContainerIDs map[string]bool) error {
	statePath, err := paths.JanitorStateFile()
	if err != nil {
		return err
	}

	due, err := j.due(statePath)
	if err != nil {
		logging.Warn(ctx, "janitor state unreadable, running anyway", "error", err.Error())
		due = true
	}
	if !due {
		return nil
	}

	removed, err := j.sweep(ctx, activeContainerIDs)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		logging.Info(ctx, "janitor removed orphaned containers", "count", len(removed), "ids", removed)
	}

	return j.recordRun(statePath)
}

func (j *Janitor) due(statePath string) (bool, error) {
	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, corerr.Wrap(corerr.IoError, err, "reading janitor state")
	}
	var state janitorState
	if err := json.Unmarshal(data, &state); err != nil {
		return true, nil //nolint:nilerr // corrupt state is treated as never-run
	}
	lastRun := time.Unix(state.LastRunUnix, 0)
	return time.Since(lastRun) >= JanitorInterval, nil
}

func (j *Janitor) recordRun(statePath string) error {
	data, err := json.Marshal(janitorState{LastRunUnix: time.Now().Unix()})
	if err != nil {
		return corerr.Wrap(corerr.IoError, err, "encoding janitor state")
	}
	if err := os.WriteFile(statePath, data, 0o644); err != nil {
		return corerr.Wrap(corerr.IoError, err, "writing janitor state")
	}
	return nil
}

// sweep lists every para-managed container and removes those whose ID is
// not in activeContainerIDs, returning the IDs it removed.
func (j *Janitor) sweep(ctx context.Context, activeContainerIDs map[string]bool) ([]string, error) {
	containers, err := j.container.managedContainers(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, c := range containers {
		if activeContainerIDs[c.ID] {
			continue
		}
		if err := j.container.Stop(ctx, c.ID); err != nil {
			logging.Warn(ctx, "janitor failed to remove orphaned container", "id", c.ID, "error", err.Error())
			continue
		}
		removed = append(removed, c.ID)
	}
	return removed, nil
}
