// Package cli implements the one-shot lotterydesk commands that talk to the
// lottery service without starting the console server.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// DefaultReplyTimeout bounds how long say waits for the command result
const DefaultReplyTimeout = 15 * time.Second

// ErrUnknownCommand is returned for command names Run does not know
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoMessaging is returned by say and watch when no push channel is configured
var ErrNoMessaging = errors.New("voice command channel is disabled")

// UsageError reports a command called with the wrong arguments
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: lotterydesk %s %s", e.Command, e.Usage)
}

// Messenger is the push channel say and watch use
type Messenger interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendVoiceCommand(transcript, sessionID string) error
	SubscribeCommandResult(cb func(lotteryapi.CommandResponse)) error
	SubscribeLotteryResult(cb func(lotteryapi.DrawResult)) error
}

// Runner executes commands against the lottery service
type Runner struct {
	Client       lotteryapi.Client
	Admin        services.AdminServicer
	Messenger    Messenger // nil disables say and watch
	Operator     string
	SessionID    string
	Version      string
	ReplyTimeout time.Duration
	Out          io.Writer
}

const (
	prizeAddUsage    = "<name> <level> <count> [description]"
	prizeUpdateUsage = "<id> <name> <level> <count> [description]"
	recordsUsage     = "[-all] [-prize id] [-participant id]"
)

type command struct {
	usage   string
	minArgs int
	run     func(r *Runner, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"participants":       {"[status]", 0, (*Runner).participants},
	"participant-add":    {"<name> [employee-id] [department]", 1, (*Runner).participantAdd},
	"participant-update": {"<id> <name> [employee-id] [department]", 2, (*Runner).participantUpdate},
	"participant-delete": {"<id>...", 1, (*Runner).participantDelete},
	"import":             {"<file.xlsx>", 1, (*Runner).importParticipants},
	"prizes":             {"[status]", 0, (*Runner).prizes},
	"prize-add":          {prizeAddUsage, 3, (*Runner).prizeAdd},
	"prize-update":       {prizeUpdateUsage, 4, (*Runner).prizeUpdate},
	"prize-delete":       {"<id>", 1, (*Runner).prizeDelete},
	"next-prize":         {"", 0, (*Runner).nextPrize},
	"stats":              {"", 0, (*Runner).stats},
	"draw":               {"<prize-id>", 1, (*Runner).draw},
	"cancel-win":         {"<participant-id>", 1, (*Runner).cancelWin},
	"reset":              {"", 0, (*Runner).reset},
	"records":            {recordsUsage, 0, (*Runner).records},
	"say":                {"<text>", 1, (*Runner).say},
	"watch":              {"", 0, (*Runner).watch},
	"health":             {"", 0, (*Runner).health},
	"info":               {"", 0, (*Runner).info},
	"version":            {"", 0, (*Runner).version},
}

// Commands returns the names Run accepts, sorted
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a command Run accepts
func Has(name string) bool {
	_, ok := commands[name]
	return ok
}

// Run executes the named command
func (r *Runner) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if len(args) < cmd.minArgs {
		return &UsageError{Command: name, Usage: cmd.usage}
	}
	return cmd.run(r, ctx, args)
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.out(), 0, 0, 2, ' ', 0)
}

func (r *Runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out(), format, args...)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func formatTime(t *lotteryapi.FlexTime) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ==================== Participants ====================

func (r *Runner) participants(ctx context.Context, args []string) error {
	list, err := r.Admin.ListParticipants(ctx, argAt(args, 0))
	if err != nil {
		return err
	}

	tw := r.table()
	fmt.Fprintln(tw, "ID\tNAME\tEMPLOYEE\tDEPARTMENT\tSTATUS\tPRIZE")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Name, orDash(p.EmployeeID), orDash(p.Department), p.Status, orDash(p.WonPrizeName))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	r.printf("%d participants\n", len(list))
	return nil
}

func (r *Runner) participantAdd(ctx context.Context, args []string) error {
	p, err := r.Admin.AddParticipant(ctx, lotteryapi.Participant{
		Name:       args[0],
		EmployeeID: argAt(args, 1),
		Department: argAt(args, 2),
	})
	if err != nil {
		return err
	}
	r.printf("Added participant %s (%s)\n", p.Name, p.ID)
	return nil
}

func (r *Runner) participantUpdate(ctx context.Context, args []string) error {
	p, err := r.Admin.UpdateParticipant(ctx, args[0], lotteryapi.Participant{
		Name:       args[1],
		EmployeeID: argAt(args, 2),
		Department: argAt(args, 3),
	})
	if err != nil {
		return err
	}
	r.printf("Updated participant %s (%s)\n", p.Name, p.ID)
	return nil
}

func (r *Runner) participantDelete(ctx context.Context, args []string) error {
	if err := r.Admin.DeleteParticipants(ctx, args); err != nil {
		return err
	}
	r.printf("Deleted %d participant(s)\n", len(args))
	return nil
}

func (r *Runner) importParticipants(ctx context.Context, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := r.Admin.ImportParticipants(ctx, args[0], f)
	if err != nil {
		return err
	}
	r.printf("Imported %d of %d rows (%d failed)\n", result.Success, result.Total, result.Failed)
	for _, e := range result.Errors {
		r.printf("  %s\n", e)
	}
	return nil
}

// ==================== Prizes ====================

func (r *Runner) prizes(ctx context.Context, args []string) error {
	list, err := r.Admin.ListPrizes(ctx, argAt(args, 0))
	if err != nil {
		return err
	}

	tw := r.table()
	fmt.Fprintln(tw, "ID\tLEVEL\tNAME\tDRAWN\tSTATUS\tDESCRIPTION")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d/%d\t%s\t%s\n",
			p.ID, p.Level, p.Name, p.DrawnCount, p.Count, p.Status, orDash(p.Description))
	}
	return tw.Flush()
}

func parsePrize(cmd, usage string, args []string) (lotteryapi.Prize, error) {
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return lotteryapi.Prize{}, &UsageError{Command: cmd, Usage: usage}
	}
	count, err := strconv.Atoi(args[2])
	if err != nil {
		return lotteryapi.Prize{}, &UsageError{Command: cmd, Usage: usage}
	}
	return lotteryapi.Prize{Name: args[0], Level: level, Count: count, Description: argAt(args, 3)}, nil
}

func (r *Runner) prizeAdd(ctx context.Context, args []string) error {
	p, err := parsePrize("prize-add", prizeAddUsage, args)
	if err != nil {
		return err
	}
	created, err := r.Admin.CreatePrize(ctx, p)
	if err != nil {
		return err
	}
	r.printf("Added prize %s (%s)\n", created.Name, created.ID)
	return nil
}

func (r *Runner) prizeUpdate(ctx context.Context, args []string) error {
	p, err := parsePrize("prize-update", prizeUpdateUsage, args[1:])
	if err != nil {
		return err
	}
	updated, err := r.Admin.UpdatePrize(ctx, args[0], p)
	if err != nil {
		return err
	}
	r.printf("Updated prize %s (%s)\n", updated.Name, updated.ID)
	return nil
}

func (r *Runner) prizeDelete(ctx context.Context, args []string) error {
	if err := r.Admin.DeletePrize(ctx, args[0]); err != nil {
		return err
	}
	r.printf("Deleted prize %s\n", args[0])
	return nil
}

func (r *Runner) nextPrize(ctx context.Context, args []string) error {
	p, err := r.Admin.NextPendingPrize(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		r.printf("All prizes have been drawn\n")
		return nil
	}
	r.printf("Next prize: %s %s (level %d, %d/%d drawn)\n", p.ID, p.Name, p.Level, p.DrawnCount, p.Count)
	return nil
}

func (r *Runner) stats(ctx context.Context, args []string) error {
	s, err := r.Admin.Statistics(ctx)
	if err != nil {
		return err
	}

	tw := r.table()
	if ps := s.Participants; ps != nil {
		fmt.Fprintf(tw, "Participants\t%d\n", ps.Total)
		fmt.Fprintf(tw, "Available\t%d\n", ps.Available)
		fmt.Fprintf(tw, "Won\t%d\n", ps.Won)
		fmt.Fprintf(tw, "Win rate\t%.1f%%\n", ps.WinRate*100)
	}
	if ps := s.Prizes; ps != nil {
		fmt.Fprintf(tw, "Prizes\t%d\n", ps.TotalPrizes)
		fmt.Fprintf(tw, "Pending\t%d\n", ps.PendingPrizes)
		fmt.Fprintf(tw, "Completed\t%d\n", ps.CompletedPrizes)
		fmt.Fprintf(tw, "Drawn\t%d/%d\n", ps.TotalDrawn, ps.TotalWinnerSlots)
	}
	return tw.Flush()
}

// ==================== Lottery ====================

func (r *Runner) printResult(result *lotteryapi.DrawResult) error {
	r.printf("%s (level %d) at %s\n", result.PrizeName, result.PrizeLevel, formatTime(result.DrawTime))
	tw := r.table()
	fmt.Fprintln(tw, "ID\tNAME\tEMPLOYEE\tDEPARTMENT")
	for _, w := range result.Winners {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.ID, w.Name, orDash(w.EmployeeID), orDash(w.Department))
	}
	return tw.Flush()
}

func (r *Runner) draw(ctx context.Context, args []string) error {
	result, err := r.Client.Draw(ctx, args[0], r.Operator)
	if err != nil {
		return err
	}
	return r.printResult(result)
}

func (r *Runner) cancelWin(ctx context.Context, args []string) error {
	if err := r.Client.CancelWin(ctx, args[0], r.Operator); err != nil {
		return err
	}
	r.printf("Cancelled win for %s\n", args[0])
	return nil
}

func (r *Runner) reset(ctx context.Context, args []string) error {
	if err := r.Client.Reset(ctx); err != nil {
		return err
	}
	r.printf("Lottery reset\n")
	return nil
}

func (r *Runner) records(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	fs.SetOutput(r.out())
	var filter services.RecordFilter
	fs.BoolVar(&filter.All, "all", false, "Include cancelled records")
	fs.StringVar(&filter.PrizeID, "prize", "", "Only records for this prize")
	fs.StringVar(&filter.ParticipantID, "participant", "", "Only records for this participant")
	if err := fs.Parse(args); err != nil {
		return &UsageError{Command: "records", Usage: recordsUsage}
	}

	list, err := r.Admin.Records(ctx, filter)
	if err != nil {
		return err
	}

	tw := r.table()
	fmt.Fprintln(tw, "TIME\tPRIZE\tPARTICIPANT\tOPERATOR\tCANCELLED")
	for _, rec := range list {
		cancelled := ""
		if rec.IsCancelled {
			cancelled = formatTime(rec.CancelledTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			formatTime(rec.DrawTime), rec.PrizeName, rec.ParticipantName, orDash(rec.Operator), cancelled)
	}
	return tw.Flush()
}

// ==================== Voice ====================

func (r *Runner) replyTimeout() time.Duration {
	if r.ReplyTimeout <= 0 {
		return DefaultReplyTimeout
	}
	return r.ReplyTimeout
}

func (r *Runner) say(ctx context.Context, args []string) error {
	if r.Messenger == nil {
		return ErrNoMessaging
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return services.ErrEmptyTranscript
	}

	if err := r.Messenger.Connect(ctx); err != nil {
		return err
	}
	defer r.Messenger.Disconnect()

	replies := make(chan lotteryapi.CommandResponse, 1)
	err := r.Messenger.SubscribeCommandResult(func(resp lotteryapi.CommandResponse) {
		select {
		case replies <- resp:
		default:
		}
	})
	if err != nil {
		return err
	}

	if err := r.Messenger.SendVoiceCommand(text, r.SessionID); err != nil {
		return err
	}

	select {
	case resp := <-replies:
		r.printCommand(resp)
		return nil
	case <-time.After(r.replyTimeout()):
		return fmt.Errorf("no reply within %s", r.replyTimeout())
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) printCommand(resp lotteryapi.CommandResponse) {
	r.printf("[%s] %s\n", resp.Type, resp.Reply)
	if resp.Data == nil {
		return
	}
	switch {
	case resp.Data.Prize != nil:
		r.printf("  action %s: %s (%s)\n", resp.Data.Action, resp.Data.Prize.Name, resp.Data.Prize.ID)
	case resp.Data.Participant != nil:
		r.printf("  action %s: %s (%s)\n", resp.Data.Action, resp.Data.Participant.Name, resp.Data.Participant.ID)
	case resp.Data.Action != "":
		r.printf("  action %s\n", resp.Data.Action)
	}
}

func (r *Runner) watch(ctx context.Context, args []string) error {
	if r.Messenger == nil {
		return ErrNoMessaging
	}
	if err := r.Messenger.Connect(ctx); err != nil {
		return err
	}
	defer r.Messenger.Disconnect()

	events := make(chan func(), 16)
	err := r.Messenger.SubscribeCommandResult(func(resp lotteryapi.CommandResponse) {
		r.queue(ctx, events, func() { r.printCommand(resp) })
	})
	if err != nil {
		return err
	}
	err = r.Messenger.SubscribeLotteryResult(func(result lotteryapi.DrawResult) {
		r.queue(ctx, events, func() { r.printResult(&result) })
	})
	if err != nil {
		return err
	}

	r.printf("Watching for draw results, press Ctrl+C to stop\n")
	for {
		select {
		case show := <-events:
			show()
		case <-ctx.Done():
			return nil
		}
	}
}

// queue hands an event to the watch loop unless it already stopped
func (r *Runner) queue(ctx context.Context, events chan<- func(), event func()) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

// ==================== System ====================

func (r *Runner) health(ctx context.Context, args []string) error {
	if err := r.Client.Health(ctx); err != nil {
		return err
	}
	r.printf("Lottery service at %s is up\n", r.Client.BaseURL())
	return nil
}

func (r *Runner) info(ctx context.Context, args []string) error {
	info, err := r.Client.SystemInfo(ctx)
	if err != nil {
		return err
	}

	tw := r.table()
	fmt.Fprintf(tw, "Service\t%s\n", r.Client.BaseURL())
	fmt.Fprintf(tw, "Version\t%s\n", orDash(info.Version))
	fmt.Fprintf(tw, "Server time\t%s\n", formatTime(info.ServerTime))
	if ps := info.ParticipantStats; ps != nil {
		fmt.Fprintf(tw, "Participants\t%d (%d won)\n", ps.Total, ps.Won)
	}
	if ps := info.PrizeStats; ps != nil {
		fmt.Fprintf(tw, "Prizes\t%d (%d completed)\n", ps.TotalPrizes, ps.CompletedPrizes)
	}
	return tw.Flush()
}

func (r *Runner) version(ctx context.Context, args []string) error {
	r.printf("lotterydesk %s\n", orDash(r.Version))
	return nil
}
