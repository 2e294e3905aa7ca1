package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/client/connection"
	"github.com/yourusername/roomlog/internal/client/ui"
	"github.com/yourusername/roomlog/internal/logging"
	"github.com/yourusername/roomlog/internal/server"
)

const replyTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "roomlog",
	Short: "Chat in a room and follow its activity feed",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(viper.GetString("log-level"), "text", "stderr", "")
	},
}

var sayCmd = &cobra.Command{
	Use:   "say <message>",
	Short: "Join a room, send one chat message and leave",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, events, err := connect()
		if err != nil {
			return err
		}
		defer m.Disconnect()

		if err := join(m, events); err != nil {
			return err
		}
		if err := m.SendChat(strings.Join(args, " ")); err != nil {
			return err
		}

		userID := m.State().UserID()
		if _, err := await(events, func(e connection.Event) bool {
			logged, ok := e.(connection.EntryLoggedEvent)
			return ok && logged.Entry.Type == actionlog.TypeRoomChat && entryUser(logged.Entry) == userID
		}); err != nil {
			return err
		}
		return m.LeaveRoom()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Join a room and print its grouped log as it grows",
	RunE: func(cmd *cobra.Command, args []string) error {
		grouper, err := actionlog.NewGrouper(viper.GetDuration("window"), actionlog.DefaultUserKey)
		if err != nil {
			return err
		}

		m, events, err := connect()
		if err != nil {
			return err
		}
		defer m.Disconnect()

		renderer := ui.NewRenderer(ui.NewStyles(nil))
		panel := ui.NewChatPanel("#"+viper.GetString("room"), renderer, grouper, ui.DefaultMaxEntries)

		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

		if err := m.JoinRoom(viper.GetString("room"), viper.GetString("name")); err != nil {
			return err
		}

		for {
			select {
			case <-signalChan:
				return m.LeaveRoom()

			case e := <-events:
				switch e := e.(type) {
				case connection.ActionLogEvent:
					panel.SetLog(e.Entries)
					fmt.Println(panel.View())

				case connection.EntryLoggedEvent:
					group, merged := panel.AddEntry(e.Entry)
					if merged {
						fmt.Println(renderer.RenderGroup(actionlog.GroupedLogEntry{
							ID:        group.ID,
							RoomID:    group.RoomID,
							Type:      group.Type,
							Timestamp: group.Timestamp,
							Payloads:  group.Payloads[len(group.Payloads)-1:],
						}))
					} else {
						fmt.Println(renderer.RenderGroup(group))
					}

				case connection.ErrorEvent:
					return fmt.Errorf("server error: %s", e.Message)

				case connection.DisconnectedEvent:
					if e.Error != nil {
						return fmt.Errorf("connection lost: %w", e.Error)
					}
					return nil
				}
			}
		}
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Fetch and print a room's log over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := apiBase(viper.GetString("server"))
		if err != nil {
			return err
		}

		grouped, _ := cmd.Flags().GetBool("grouped")
		limit, _ := cmd.Flags().GetInt("limit")

		query := url.Values{}
		query.Set("grouped", strconv.FormatBool(grouped))
		if limit > 0 {
			query.Set("limit", strconv.Itoa(limit))
		}
		endpoint := fmt.Sprintf("%s/api/v1/rooms/%s/log?%s", base, url.PathEscape(viper.GetString("room")), query.Encode())

		httpClient := &http.Client{Timeout: replyTimeout}
		resp, err := httpClient.Get(endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var errResp server.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			return fmt.Errorf("server returned %s: %s", resp.Status, errResp.Message)
		}

		var body server.LogResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode log: %w", err)
		}

		groups := body.Groups
		if !grouped {
			groups = singletons(body.Entries)
		}
		fmt.Println(ui.NewRenderer(ui.NewStyles(nil)).RenderLog(groups))
		return nil
	},
}

// connect dials the server and returns the manager with its event stream
func connect() (*connection.Manager, <-chan connection.Event, error) {
	events := make(chan connection.Event, 256)
	m := connection.NewManager(viper.GetString("server"), nil)
	m.OnEvent(func(e connection.Event) {
		select {
		case events <- e:
		default:
			// reader fell behind; the log is still complete in State
		}
	})
	if err := m.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	return m, events, nil
}

// join joins the configured room and waits for the confirmation
func join(m *connection.Manager, events <-chan connection.Event) error {
	if err := m.JoinRoom(viper.GetString("room"), viper.GetString("name")); err != nil {
		return err
	}
	_, err := await(events, func(e connection.Event) bool {
		_, ok := e.(connection.RoomJoinedEvent)
		return ok
	})
	return err
}

// await returns the first event accepted by match. Server errors and
// disconnects end the wait early.
func await(events <-chan connection.Event, match func(connection.Event) bool) (connection.Event, error) {
	timeout := time.After(replyTimeout)
	for {
		select {
		case e := <-events:
			if match(e) {
				return e, nil
			}
			switch e := e.(type) {
			case connection.ErrorEvent:
				return nil, fmt.Errorf("server error: %s", e.Message)
			case connection.DisconnectedEvent:
				if e.Error != nil {
					return nil, fmt.Errorf("connection lost: %w", e.Error)
				}
				return nil, errors.New("connection closed")
			}
		case <-timeout:
			return nil, errors.New("timed out waiting for the server")
		}
	}
}

func entryUser(e actionlog.LogEntry) string {
	var p actionlog.UserPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	return p.UserID
}

// singletons wraps each entry in its own group so raw logs render like
// grouped ones
func singletons(entries []actionlog.LogEntry) []actionlog.GroupedLogEntry {
	groups := make([]actionlog.GroupedLogEntry, len(entries))
	for i, e := range entries {
		groups[i] = actionlog.GroupedLogEntry{
			ID:        e.ID,
			RoomID:    e.RoomID,
			Type:      e.Type,
			Timestamp: e.Timestamp,
			Payloads:  []json.RawMessage{e.Payload},
		}
	}
	return groups
}

// apiBase turns the websocket URL into the HTTP API's base URL
func apiBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

func init() {
	rootCmd.PersistentFlags().String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	rootCmd.PersistentFlags().String("room", server.DefaultRoomID, "Room ID to join")
	rootCmd.PersistentFlags().String("name", os.Getenv("USER"), "Username")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	watchCmd.Flags().Duration("window", actionlog.DefaultWindow, "grouping window")
	logCmd.Flags().Bool("grouped", false, "group the log before printing")
	logCmd.Flags().Int("limit", 0, "print only the newest entries")

	viper.SetEnvPrefix("ROOMLOG")
	viper.AutomaticEnv()
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("room", rootCmd.PersistentFlags().Lookup("room"))
	viper.BindPFlag("name", rootCmd.PersistentFlags().Lookup("name"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("window", watchCmd.Flags().Lookup("window"))

	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
