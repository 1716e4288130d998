package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ============================================================================
// pcremote-ctl - Command-line IPC Client
// ============================================================================
// This tool talks to a running pcremote daemon over its Unix domain socket.
//
// Usage:
//   pcremote-ctl status
//   pcremote-ctl press 0x20DF10EF
//   pcremote-ctl binds list
//   pcremote-ctl binds add 0x20DF10EF media_play_pause
//   pcremote-ctl binds add 0x20DF40BF keyboard_press --keys ctrl,t
//   pcremote-ctl binds remove <id>
//   pcremote-ctl mouse-mode
//   pcremote-ctl reload
// ============================================================================

// Request types (duplicated from the daemon for a standalone binary)
const (
	reqPressCode       = "press_code"
	reqGetStatus       = "get_status"
	reqListBinds       = "list_binds"
	reqAddBind         = "add_bind"
	reqUpdateBind      = "update_bind"
	reqRemoveBind      = "remove_bind"
	reqReloadConfig    = "reload_config"
	reqToggleMouseMode = "toggle_mouse_mode"
	reqRefreshMedia    = "refresh_media"
)

type request struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// bind mirrors the daemon's bind wire form.
type bind struct {
	ID     string `json:"id,omitempty"`
	Code   string `json:"code"`
	Action string `json:"action"`
	Keys   []any  `json:"keys,omitempty"`
	URL    string `json:"url,omitempty"`
	Repeat bool   `json:"repeat"`
}

// keyValues sends all-digit tokens longer than one character as numeric key codes.
func keyValues(keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if n, err := strconv.ParseUint(k, 10, 32); err == nil && len(k) > 1 {
			out = append(out, n)
			continue
		}
		out = append(out, k)
	}
	return out
}

const dialTimeout = 2 * time.Second

func defaultSocketPath() string {
	return filepath.Join(os.TempDir(), "pcremote.sock")
}

// call sends one request and returns the response payload.
func call(socketPath, typ string, data any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	b, err := json.Marshal(request{Type: typ, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", b); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp.Data, nil
}

// printJSON pretty-prints a payload, or "ok" when there is none.
func printJSON(raw json.RawMessage) error {
	if len(raw) == 0 {
		fmt.Println("ok")
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newRootCmd() *cobra.Command {
	var socketPath string

	root := &cobra.Command{
		Use:           "pcremote-ctl",
		Short:         "Control a running pcremote daemon via IPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "Unix domain socket path")

	simple := func(use, short, typ string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				data, err := call(socketPath, typ, nil)
				if err != nil {
					return err
				}
				return printJSON(data)
			},
		}
	}

	root.AddCommand(simple("status", "Show daemon, listener and media state", reqGetStatus))
	root.AddCommand(simple("reload", "Reload the config file", reqReloadConfig))
	root.AddCommand(simple("mouse-mode", "Toggle mouse mode", reqToggleMouseMode))
	root.AddCommand(simple("refresh", "Refresh the media device cache", reqRefreshMedia))

	root.AddCommand(&cobra.Command{
		Use:   "press <code>",
		Short: "Queue a remote code as if the receiver had sent it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := call(socketPath, reqPressCode, map[string]string{"code": args[0]})
			if err != nil {
				return err
			}
			return printJSON(data)
		},
	})

	root.AddCommand(newBindsCmd(&socketPath))
	return root
}

func newBindsCmd(socketPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "binds",
		Short: "List and edit binds",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all binds",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := call(*socketPath, reqListBinds, nil)
			if err != nil {
				return err
			}
			var binds []bind
			if err := json.Unmarshal(data, &binds); err != nil {
				return fmt.Errorf("decode binds: %w", err)
			}
			for _, b := range binds {
				extra := ""
				switch {
				case len(b.Keys) > 0:
					names := make([]string, len(b.Keys))
					for i, k := range b.Keys {
						names[i] = fmt.Sprint(k)
					}
					extra = " " + strings.Join(names, "+")
				case b.URL != "":
					extra = " " + b.URL
				}
				repeat := ""
				if b.Repeat {
					repeat = " (repeat)"
				}
				fmt.Printf("%s  %s  %s%s%s\n", b.ID, b.Code, b.Action, extra, repeat)
			}
			return nil
		},
	})

	var (
		keys   []string
		url    string
		repeat bool
	)
	addFlags := func(c *cobra.Command) {
		c.Flags().StringSliceVar(&keys, "keys", nil, "Keys for keyboard_press (comma separated)")
		c.Flags().StringVar(&url, "url", "", "URL for browser_open")
		c.Flags().BoolVar(&repeat, "repeat", false, "Run the bind while the button is held")
	}

	add := &cobra.Command{
		Use:   "add <code> <action>",
		Short: "Add a bind",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			b := bind{Code: args[0], Action: args[1], Keys: keyValues(keys), URL: url, Repeat: repeat}
			data, err := call(*socketPath, reqAddBind, b)
			if err != nil {
				return err
			}
			return printJSON(data)
		},
	}
	addFlags(add)
	cmd.AddCommand(add)

	update := &cobra.Command{
		Use:   "update <id> <code> <action>",
		Short: "Replace a bind",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			b := bind{ID: args[0], Code: args[1], Action: args[2], Keys: keyValues(keys), URL: url, Repeat: repeat}
			data, err := call(*socketPath, reqUpdateBind, b)
			if err != nil {
				return err
			}
			return printJSON(data)
		},
	}
	addFlags(update)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a bind",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := call(*socketPath, reqRemoveBind, map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return printJSON(data)
		},
	})

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
