package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

const (
	JobRevalidateSession = "revalidate_session"
	JobPruneSessions     = "prune_sessions"

	jobTimeout = 5 * time.Minute
)

// RevalidateHandler checks the stored LinkedIn session while it is marked
// connected, so an expired session shows up before the next search
func RevalidateHandler(connection interfaces.ConnectionService, logger arbor.ILogger) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		status, err := connection.GetStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to read connection status: %w", err)
		}
		if status.Status != models.ConnectionStatusConnected {
			return nil
		}
		if status.BrowserBusy {
			logger.Debug().Msg("Browser busy, skipping session revalidation")
			return nil
		}

		result, err := connection.ValidateSession(ctx)
		if err != nil {
			return err
		}
		if result.Status != models.ConnectionStatusConnected {
			logger.Warn().Str("status", string(result.Status)).Msg("Scheduled revalidation found the session expired")
		}
		return nil
	}
}

// PruneHandler deletes finished sessions past retention
func PruneHandler(sessions interfaces.SearchSessionService, retentionDays int) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_, err := sessions.PruneOlderThan(ctx, retentionDays)
		return err
	}
}

// RegisterMaintenanceJobs wires the periodic jobs named in the scheduler config.
// Empty schedules leave the corresponding job out.
func RegisterMaintenanceJobs(
	s interfaces.SchedulerService,
	config common.SchedulerConfig,
	retentionDays int,
	connection interfaces.ConnectionService,
	sessions interfaces.SearchSessionService,
	logger arbor.ILogger,
) error {
	if config.RevalidateSchedule != "" {
		if err := s.RegisterJob(JobRevalidateSession, config.RevalidateSchedule,
			"Revalidate the stored LinkedIn session", RevalidateHandler(connection, logger)); err != nil {
			return err
		}
	}
	if config.PruneSchedule != "" && retentionDays > 0 {
		if err := s.RegisterJob(JobPruneSessions, config.PruneSchedule,
			"Delete finished search sessions past retention", PruneHandler(sessions, retentionDays)); err != nil {
			return err
		}
	}
	return nil
}
