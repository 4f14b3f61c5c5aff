package commands

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	httpapi "ai-voice-tutor/internal/http"
	"ai-voice-tutor/internal/service/session"
)

var (
	watchAddr  string
	watchStart bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the session of a running service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u := url.URL{Scheme: "ws", Host: watchAddr, Path: "/v1/session/ws"}
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(u.String(), nil)
		if err != nil {
			return fmt.Errorf("connect %s: %w", u.String(), err)
		}
		defer conn.Close()

		if watchStart {
			if err := conn.WriteJSON(httpapi.Command{Action: "start"}); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		printer := newTranscriptPrinter(out)
		snaps := make(chan session.Snapshot)
		readErr := make(chan error, 1)
		go func() {
			for {
				var snap session.Snapshot
				if err := conn.ReadJSON(&snap); err != nil {
					readErr <- err
					return
				}
				snaps <- snap
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		first := true
		for {
			select {
			case snap := <-snaps:
				if first {
					fmt.Fprintln(out, renderBanner(snap))
					first = false
				}
				printer.Update(snap)
			case err := <-readErr:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			case <-sig:
				if watchStart {
					_ = conn.WriteJSON(httpapi.Command{Action: "end"})
				}
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return nil
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "localhost:8080", "service HTTP address")
	watchCmd.Flags().BoolVar(&watchStart, "start", false, "start a session, and end it on exit")
	rootCmd.AddCommand(watchCmd)
}
