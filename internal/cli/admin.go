package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/room-companion/internal/adminclient"
)

const adminTimeout = 15 * time.Second

func newGameCommand() *cobra.Command {
	var participant string
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Start, play and stop games as a participant",
	}
	cmd.PersistentFlags().StringVar(&participant, "participant", "cli:operator", "participant id that owns the session")

	cmd.AddCommand(&cobra.Command{
		Use:   "start <wordchain|quiz|riddle>",
		Short: "Start a game, replacing any active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			started, err := client.StartGame(ctx, participant, args[0])
			if err != nil {
				return err
			}
			cmd.Println(started.Prompt)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "answer <text>",
		Short: "Submit a move to the active game",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			outcome, err := client.SubmitGame(ctx, participant, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Abort the active game",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			outcome, err := client.StopGame(ctx, participant)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	})
	return cmd
}

func printOutcome(out io.Writer, outcome adminclient.Outcome) {
	if message := strings.TrimSpace(outcome.Message); message != "" {
		fmt.Fprintln(out, message)
	}
	fmt.Fprintf(out, "state=%s score=%d attempts_left=%d\n", outcome.State, outcome.Score, outcome.AttemptsLeft)
}

func newLedgerCommand() *cobra.Command {
	var room, participant string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show a participant's violation ledger in a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			entry, err := client.Ledger(ctx, room, participant)
			if err != nil {
				return err
			}
			printLedger(cmd.OutOrStdout(), entry)
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room id")
	cmd.Flags().StringVar(&participant, "participant", "", "participant id")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("participant")
	cmd.AddCommand(newPardonCommand())
	return cmd
}

func newPardonCommand() *cobra.Command {
	var room, participant string
	var release bool
	cmd := &cobra.Command{
		Use:   "pardon",
		Short: "Clear a participant's warnings so escalation starts over",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			result, err := client.Pardon(ctx, room, participant, release)
			if err != nil {
				return err
			}
			printPardon(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room id")
	cmd.Flags().StringVar(&participant, "participant", "", "participant id")
	cmd.Flags().BoolVar(&release, "unmute", false, "also lift an active mute on the platform")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

func printPardon(out io.Writer, result adminclient.PardonResult) {
	if result.Forgotten {
		fmt.Fprintf(out, "%s pardoned in %s\n", result.Participant, result.Room)
	} else {
		fmt.Fprintf(out, "%s had no warnings in %s\n", result.Participant, result.Room)
	}
	if result.Released {
		fmt.Fprintln(out, "mute lifted")
	}
}

func printLedger(out io.Writer, entry adminclient.LedgerEntry) {
	if !entry.Found {
		fmt.Fprintf(out, "%s has a clean record in %s\n", entry.Participant, entry.Room)
		return
	}
	fmt.Fprintf(out, "%s in %s: %d warning(s), %d mute(s)\n", entry.Participant, entry.Room, entry.Count, entry.Mutes)
	if len(entry.Reasons) > 0 {
		fmt.Fprintf(out, "reasons: %s\n", strings.Join(entry.Reasons, ", "))
	}
	if entry.LastViolationUnix > 0 {
		fmt.Fprintf(out, "last violation: %s\n", time.Unix(entry.LastViolationUnix, 0).UTC().Format(time.RFC3339))
	}
}

func newEnforcementCommand() *cobra.Command {
	var filter adminclient.EnforcementFilter
	cmd := &cobra.Command{
		Use:   "enforcement",
		Short: "List recorded warnings and mutes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			records, err := client.ListEnforcement(ctx, filter)
			if err != nil {
				return err
			}
			return printEnforcement(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&filter.Room, "room", "", "filter by room id")
	cmd.Flags().StringVar(&filter.Participant, "participant", "", "filter by participant id")
	cmd.Flags().BoolVar(&filter.MutesOnly, "mutes-only", false, "only show mutes")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum records to show")
	return cmd
}

func printEnforcement(out io.Writer, records []adminclient.EnforcementRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "no enforcement records")
		return nil
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "WHEN\tROOM\tPARTICIPANT\tREASON\tWARN\tMUTE\tACTUATOR")
	for _, record := range records {
		mute := "-"
		if record.MuteSeconds > 0 {
			mute = fmt.Sprintf("tier %d / %s", record.Tier, time.Duration(record.MuteSeconds)*time.Second)
		}
		actuator := record.Actuator
		if record.Restored {
			actuator += " (restored)"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			time.Unix(record.OccurredAtUnix, 0).UTC().Format(time.RFC3339),
			record.Room,
			record.Participant,
			record.Reason,
			record.WarnCount,
			record.Threshold,
			mute,
			actuator,
		)
	}
	return writer.Flush()
}

func newContextCommand() *cobra.Command {
	var room string
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show or clear a room's conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			exchanges, err := client.Context(ctx, room)
			if err != nil {
				return err
			}
			if len(exchanges) == 0 {
				cmd.Println("no history")
				return nil
			}
			for _, exchange := range exchanges {
				speaker := exchange.Role
				if exchange.Participant != "" {
					speaker = exchange.Participant
				}
				cmd.Printf("%s: %s\n", speaker, exchange.Text)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&room, "room", "cli:local", "room id")
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the room's conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			if err := client.ClearContext(ctx, room); err != nil {
				return err
			}
			cmd.Printf("cleared %s\n", room)
			return nil
		},
	})
	return cmd
}

func newRoomsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms and manage greeting opt-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			rooms, err := client.Rooms(ctx)
			if err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), rooms)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "greetings <room> <on|off>",
		Short: "Opt a known room in or out of scheduled greetings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseToggle(args[1])
			if err != nil {
				return err
			}
			client, err := clientFor(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()
			if err := client.SetRoomGreetings(ctx, args[0], enabled); err != nil {
				return err
			}
			cmd.Printf("greetings %s for %s\n", args[1], args[0])
			return nil
		},
	})
	return cmd
}

func printRooms(out io.Writer, rooms adminclient.Rooms) {
	greeting := map[string]struct{}{}
	for _, room := range rooms.Greetings {
		greeting[room] = struct{}{}
	}
	if len(rooms.Active) == 0 && len(rooms.Greetings) == 0 {
		fmt.Fprintln(out, "no rooms yet")
		return
	}
	seen := map[string]struct{}{}
	for _, room := range append(append([]string{}, rooms.Active...), rooms.Greetings...) {
		if _, ok := seen[room]; ok {
			continue
		}
		seen[room] = struct{}{}
		marker := ""
		if _, ok := greeting[room]; ok {
			marker = " (greetings)"
		}
		fmt.Fprintf(out, "%s%s\n", room, marker)
	}
}

func parseToggle(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "yes", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "disable", "disabled":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
}
