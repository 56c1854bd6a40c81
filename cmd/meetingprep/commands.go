package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"MeetingPrep/internal/app"
	"MeetingPrep/internal/config"
	"MeetingPrep/internal/logging"
	"MeetingPrep/internal/telemetry"
)

// session holds what every subcommand needs once the root pre-run has executed.
type session struct {
	cfg          config.Config
	logger       *slog.Logger
	app          *app.Application
	closeLog     func() error
	shutdownOtel func(context.Context) error
}

func newRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:           "meetingprep",
		Short:         "Always-on meeting preparation agent",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// help and shell completion need no database
			if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			return s.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return s.close(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(s), newRunCmd(s), newSteeringCmd(s))
	return root
}

func (s *session) open(ctx context.Context) error {
	s.cfg = config.Load()
	s.logger, s.closeLog = logging.New(s.cfg.Logging)

	shutdown, err := telemetry.Setup(ctx, s.cfg.Telemetry)
	if err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	}
	s.shutdownOtel = shutdown

	s.app, err = app.New(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}
	return nil
}

func (s *session) close(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			s.logger.Warn("close database", "error", err)
		}
	}
	if s.shutdownOtel != nil {
		if err := s.shutdownOtel(ctx); err != nil {
			s.logger.Warn("flush traces", "error", err)
		}
	}
	if s.closeLog != nil {
		return s.closeLog()
	}
	return nil
}

func newServeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional interval scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.app.Serve(ctx)
		},
	}
}

func newRunCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the calendar once and process every new meeting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := s.app.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func newSteeringCmd(s *session) *cobra.Command {
	steering := &cobra.Command{
		Use:   "steering",
		Short: "Inspect or adapt the steering profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current steering profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := s.app.Steering.Current(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, profile)
		},
	}

	var (
		score int
		notes string
	)
	feedback := &cobra.Command{
		Use:   "feedback",
		Short: "Apply a feedback score (0 or 1) and notes to the steering profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := s.app.Steering.ApplyFeedback(cmd.Context(), score, notes)
			if err != nil {
				return err
			}
			return printJSON(cmd, profile)
		},
	}
	feedback.Flags().IntVar(&score, "score", 1, "1 = useful, 0 = not useful")
	feedback.Flags().StringVar(&notes, "notes", "", "free-text feedback, e.g. \"too generic, more news\"")

	steering.AddCommand(show, feedback)
	return steering
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
