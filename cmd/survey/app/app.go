package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rf-lab/fobwatch/internal/storage"
)

// Run renders one monitoring session from a fobwatch database into an image:
// the power trace over time with accepted detections marked.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store := storage.New(config.DBPath)
	defer store.Close()

	session, err := selectSession(ctx, store, config.SessionID)
	if err != nil {
		return err
	}

	trace, err := store.PowerTrace(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("loading power trace: %w", err)
	}

	detections, err := store.Detections(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("loading detections: %w", err)
	}

	logger.Info("rendering session",
		slog.String("sessionID", session.ID),
		slog.Int("tracePoints", len(trace)),
		slog.Int("detections", len(detections)))

	data, err := BuildSurvey(session, trace, detections, config.MaxWidth,
		config.MinPower, config.MaxPower)
	if err != nil {
		return err
	}

	img, err := NewRenderer(config.Theme).Render(data)
	if err != nil {
		return fmt.Errorf("rendering survey: %w", err)
	}

	if config.FontPath != "" && !config.NoAnnotations {
		annotator, err := NewAnnotator(config.FontPath)
		if err != nil {
			return fmt.Errorf("creating annotator: %w", err)
		}
		defer annotator.Close()

		if err = annotator.Annotate(img, data); err != nil {
			return fmt.Errorf("annotating survey: %w", err)
		}
	}

	if err = saveImage(img, config.OutputFile, config.Format); err != nil {
		return err
	}

	logger.Info("survey saved", slog.String("file", config.OutputFile))
	return nil
}

// selectSession resolves the session to render: the given ID, or the most
// recent session when no ID is supplied.
func selectSession(ctx context.Context, store *storage.Store, id string) (*storage.Session, error) {
	if id != "" {
		session, err := store.Session(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if session == nil {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return session, nil
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("database has no sessions")
	}
	return sessions[len(sessions)-1], nil
}
