package main

import (
	"bufio"
	"context"
	"fmt"
	"ichat_backend/internal/model"
	"ichat_backend/internal/syncclient"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const intervalFlag = "interval"

// terminalRenderer prints view updates as lines of text.
type terminalRenderer struct {
	out    io.Writer
	mu     sync.Mutex
	logout func()
}

func (r *terminalRenderer) printf(format string, a ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, a...)
}

func (r *terminalRenderer) Apply(d syncclient.Delta) {
	for _, id := range d.Removed {
		r.printf("  (message %d deleted)\n", id)
	}
	for _, m := range d.Added {
		line := m.Content
		if m.FileURL != "" {
			if line != "" {
				line += " "
			}
			line += "[" + m.FileName + " " + m.FileURL + "]"
		}
		r.printf("%s #%d %s: %s\n", m.SentAt.Local().Format("15:04"), m.ID, m.SenderName, line)
	}
}

func (r *terminalRenderer) Info(info *model.ConversationInfo) {
	if info.IsGroup {
		names := make([]string, 0, len(info.Members))
		for _, m := range info.Members {
			names = append(names, m.FullName)
		}
		r.printf("== %s (%d members: %s)\n", info.Name, len(info.Members), strings.Join(names, ", "))
		return
	}
	r.printf("== %s\n", info.Name)
}

func (r *terminalRenderer) Notice(err error) {
	r.printf("! %v\n", err)
}

func (r *terminalRenderer) Unauthenticated() {
	r.printf("! session expired, run `chatcli login` again\n")
	if r.logout != nil {
		r.logout()
	}
}

const watchHelp = `commands:
  <text>              send a message
  /file <path> [text] send a file
  /delete <id>        delete one of your messages
  /add <id>...        add members (group admin)
  /remove <id>        remove a member (group admin)
  /hide, /show        pause or resume polling
  /quit               leave
`

var watchCmd = &cobra.Command{
	Use:   "watch <conversation id>",
	Short: "Open a conversation and keep it in sync; read commands from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		convID, err := parseID(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		renderer := &terminalRenderer{out: os.Stdout, logout: cancel}
		view := syncclient.NewConversationView(newClient(), renderer, convID, viper.GetDuration(intervalFlag))
		if err := view.Start(ctx); err != nil {
			return err
		}
		defer view.Close()

		fmt.Print(watchHelp)
		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := runWatchCommand(ctx, view, strings.TrimSpace(line)); quit {
					return nil
				}
			}
		}
	},
}

// runWatchCommand executes one input line. Failures are already shown by the
// renderer, so errors are not returned.
func runWatchCommand(ctx context.Context, view *syncclient.ConversationView, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		_ = view.Send(ctx, line, nil)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/hide":
		view.SetVisible(false)
	case "/show":
		view.SetVisible(true)
	case "/delete":
		if len(fields) != 2 {
			fmt.Println("usage: /delete <id>")
			return false
		}
		if id, err := parseID(fields[1]); err == nil {
			_ = view.Delete(ctx, id)
		} else {
			fmt.Println(err)
		}
	case "/add":
		ids, err := parseIDs(fields[1:])
		if err != nil {
			fmt.Println(err)
			return false
		}
		if added, err := view.AddMembers(ctx, ids); err == nil {
			fmt.Printf("%d member(s) added\n", added)
		} else if err == syncclient.ErrNotGroup {
			fmt.Println(err)
		}
	case "/remove":
		if len(fields) != 2 {
			fmt.Println("usage: /remove <id>")
			return false
		}
		id, err := parseID(fields[1])
		if err != nil {
			fmt.Println(err)
			return false
		}
		if err := view.RemoveMember(ctx, id); err == syncclient.ErrNotGroup {
			fmt.Println(err)
		}
	case "/file":
		if len(fields) < 2 {
			fmt.Println("usage: /file <path> [text]")
			return false
		}
		f, err := os.Open(fields[1])
		if err != nil {
			fmt.Println(err)
			return false
		}
		defer f.Close()
		_ = view.Send(ctx, strings.Join(fields[2:], " "), &syncclient.File{Name: filepath.Base(fields[1]), Reader: f})
	default:
		fmt.Print(watchHelp)
	}
	return false
}

func init() {
	watchCmd.Flags().Duration(intervalFlag, syncclient.DefaultPollInterval,
		"Polling interval while the conversation is visible.")
	bindFlagHelper(intervalFlag, watchCmd)

	rootCmd.AddCommand(watchCmd)
}
