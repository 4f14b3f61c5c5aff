package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ai-voice-tutor/internal/app"
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Hold a tutoring session in this terminal",
	Long: `Hold a tutoring session in this terminal.

The microphone is captured through ffmpeg unless AUDIO_INPUT names a WAV
file. Finished utterances are printed as they complete. Press Ctrl+C to
end the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		initLogging(cfg, true)

		application, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		sess := application.Session
		updates, cancel := sess.Subscribe()
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderBanner(sess.Snapshot()))

		ctx, stop := context.WithTimeout(context.Background(), cfg.Live.ConnectTimeout)
		err = sess.StartSession(ctx)
		stop()

		printer := newTranscriptPrinter(out)
		if err != nil {
			printer.Update(sess.Snapshot())
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		for {
			select {
			case snap := <-updates:
				printer.Update(snap)
				if !snap.Status.IsActive() && snap.Error != "" {
					return fmt.Errorf("session ended: %s", snap.Error)
				}
			case <-sig:
				fmt.Fprintln(out)
				sess.EndSession()
				printer.Update(sess.Snapshot())
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(talkCmd)
}
