package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"streamfm/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and auto-upload dropped audio files",
	Long: `Watch a directory for new audio files and upload each one to the
catalog once it has finished copying. The directory defaults to WATCH_DIR.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer app.close()

		if !app.auth.IsAuthenticated() {
			return fmt.Errorf("not signed in, run the interactive client and sign in first")
		}

		dir := app.cfg.WatchDir
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "" {
			return fmt.Errorf("no directory given and WATCH_DIR is not set")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s, press ctrl+c to stop\n", dir)
		if err := watcher.New(dir, app.upload).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
