package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/config"
)

// NewLoginCmd creates the login command.
func NewLoginCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the browser session",
		Long: `Login opens Chrome on the login page and waits for you to sign in, then saves
the session cookies encrypted to the session file.

If a saved session is still valid nothing is opened unless --force is given,
which discards the saved session before logging in.
With --worker N the session is saved to the slot used by parallel worker N.

Examples:
  # Log in once before crawling headless
  signalscan login

  # Replace a working session
  signalscan login --force

  # Prepare the session for the second parallel worker
  signalscan login --worker 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoginCmd(cmd, e)
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Log in again even if the saved session is valid")
	cmd.Flags().Int("worker", 1, "Session slot to log in for")
	addSessionFlags(cmd)

	return cmd
}

func runLoginCmd(cmd *cobra.Command, e *env) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSession(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	slot, err := cmd.Flags().GetInt("worker")
	if err != nil {
		return err
	}
	if slot < 1 {
		return config.ErrInvalidWorkers
	}
	// A login needs a visible window.
	cfg.Headless = false

	rl, err := openLogger(e, cfg)
	if err != nil {
		return err
	}
	defer rl.Close()

	ctx, stop := signalContext(cmd.Context(), rl.Logger)
	defer stop()

	w, err := newWorker(ctx, e, cfg, slot, rl.Logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if !force && w.auth.State() == auth.StateAuthenticated {
		valid, err := sessionValid(ctx, w, cfg.BaseURL)
		if err != nil {
			return err
		}
		if valid {
			fmt.Fprintf(e.stdout, "Saved session is valid: %s\n", w.store.Path())
			return nil
		}
		rl.Logger.Info("saved session is no longer accepted")
	}

	if force {
		if err := w.store.Clear(); err != nil {
			return err
		}
	}
	if err := w.auth.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(e.stdout, "Session saved to %s\n", w.store.Path())
	return nil
}

// sessionValid opens the site root and reports whether it shows a logged-in
// page.
func sessionValid(ctx context.Context, w *worker, baseURL string) (bool, error) {
	if err := w.renderer.Navigate(ctx, baseURL); err != nil {
		return false, fmt.Errorf("failed to open %s: %w", baseURL, err)
	}
	current, err := w.renderer.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	src, err := w.renderer.PageSource(ctx)
	if err != nil {
		return false, err
	}
	return !w.auth.IsLoggedOut(auth.PageSignal{URL: current, Text: src}), nil
}
