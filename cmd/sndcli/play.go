package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/swordsanddeath/pkg/client"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
)

func newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup <username> <password>",
		Short: "Create a player and log out again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			motd, err := c.Login(args[0], args[1], true, opts.version)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, motd)
			fmt.Fprintf(out, "Player %s created.\n", args[0])
			return c.Send(protocol.ClientDisconnect{})
		},
	}
}

func newPlayCmd() *cobra.Command {
	var signup bool
	cmd := &cobra.Command{
		Use:   "play <username> <password>",
		Short: "Log in and play, reading commands from standard input",
		Long: `Log in and play. Commands are read one per line:

  step | s              walk one step
  inv | i              show the inventory
  drop <item>          destroy an item
  inspect <item>       show an item
  quit                 leave the game`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			motd, err := c.Login(args[0], args[1], signup, opts.version)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, motd)
			return play(c, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().BoolVar(&signup, "signup", false, "Create the player first")
	return cmd
}

// play relays commands from in and prints server events until either side
// ends the session.
func play(c *client.Client, in io.Reader, out io.Writer) error {
	done := make(chan error, 1)
	go func() {
		for {
			ev, err := c.Next()
			if err != nil {
				if protocol.IsEOF(err) {
					err = nil
				}
				done <- err
				return
			}
			if text := client.FormatEvent(ev); text != "" {
				fmt.Fprintln(out, text)
			}
			switch m := ev.(type) {
			case protocol.ServerDisconnect:
				done <- nil
				return
			case protocol.ServerError:
				if m.Disconnect {
					done <- nil
					return
				}
			}
		}
	}()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case err := <-done:
			return err
		case line, ok := <-lines:
			if !ok {
				line = "quit"
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			ev, err := client.ParseCommand(line)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if err := c.Send(ev); err != nil {
				return err
			}
			if _, quit := ev.(protocol.ClientDisconnect); quit {
				return <-done
			}
		}
	}
}
