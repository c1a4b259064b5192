package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var tailChats []int64

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print realtime changes of one or more chats",
	Long: `Open the /ws stream with a realtime token, subscribe to the given chats and
print every message and read-marker change as one JSON line until interrupted.`,
	Example: "  doulitsactl tail --chat 12 --chat 40",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		if len(tailChats) == 0 {
			return fmt.Errorf("at least one --chat is required")
		}
		ctx := cmd.Context()

		tok, err := newTokenSource().Token(ctx)
		if err != nil {
			return err
		}
		wsURL, err := websocketURL(apiURL)
		if err != nil {
			return err
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", wsURL, err)
		}
		defer conn.Close()

		go func() {
			<-ctx.Done()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}()

		if err := conn.WriteJSON(map[string]string{"token": tok}); err != nil {
			return err
		}
		for _, id := range tailChats {
			if err := conn.WriteJSON(map[string]any{"type": "subscribe", "chat_id": id}); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			}
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				log.WithError(err).Warn("skip malformed frame")
				continue
			}
			if t, _ := frame["type"].(string); t == "error" {
				log.WithField("chat_id", frame["chat_id"]).Warn(frame["message"])
				continue
			}
			fmt.Fprintln(out, string(data))
		}
	},
}

func init() {
	tailCmd.Flags().Int64SliceVar(&tailChats, "chat", nil, "chat id to follow (repeatable)")
}

// websocketURL maps http(s)://host/base to ws(s)://host/base/ws.
func websocketURL(api string) (string, error) {
	u, err := url.Parse(strings.TrimRight(api, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}
