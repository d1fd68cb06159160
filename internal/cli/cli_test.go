package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/lotterydesk/internal/cli"
	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/internal/services"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryws"
)

// fakeMessenger answers every voice command with reply
type fakeMessenger struct {
	mu         sync.Mutex
	connectErr error
	reply      *lotteryapi.CommandResponse
	sent       []string
	onCommand  func(lotteryapi.CommandResponse)
	onResult   func(lotteryapi.DrawResult)
	subscribed chan struct{}
	closed     bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{subscribed: make(chan struct{}, 2)}
}

func (f *fakeMessenger) Connect(ctx context.Context) error {
	return f.connectErr
}

func (f *fakeMessenger) Disconnect() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeMessenger) SendVoiceCommand(transcript, sessionID string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sessionID+":"+transcript)
	cb, reply := f.onCommand, f.reply
	f.mu.Unlock()
	if cb != nil && reply != nil {
		go cb(*reply)
	}
	return nil
}

func (f *fakeMessenger) SubscribeCommandResult(cb func(lotteryapi.CommandResponse)) error {
	f.mu.Lock()
	f.onCommand = cb
	f.mu.Unlock()
	f.subscribed <- struct{}{}
	return nil
}

func (f *fakeMessenger) SubscribeLotteryResult(cb func(lotteryapi.DrawResult)) error {
	f.mu.Lock()
	f.onResult = cb
	f.mu.Unlock()
	f.subscribed <- struct{}{}
	return nil
}

func newRunner(opts ...lotteryapi.MockOption) (*cli.Runner, *lotteryapi.MockClient, *bytes.Buffer) {
	client := lotteryapi.NewMockClient(opts...)
	out := &bytes.Buffer{}
	return &cli.Runner{
		Client:    client,
		Admin:     services.NewAdminService(logger.Discard(), client),
		Operator:  "host",
		SessionID: "desk",
		Version:   "1.2.3",
		Out:       out,
	}, client, out
}

func run(t *testing.T, r *cli.Runner, name string, args ...string) {
	t.Helper()
	if err := r.Run(context.Background(), name, args); err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
}

func expectOutput(t *testing.T, out *bytes.Buffer, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out.String(), w) {
			t.Errorf("expected output to contain %q, got:\n%s", w, out.String())
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	r, _, _ := newRunner()
	err := r.Run(context.Background(), "spin", nil)
	if !errors.Is(err, cli.ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestRun_MissingArguments(t *testing.T) {
	tests := []string{"participant-add", "participant-update", "participant-delete", "import", "prize-add", "prize-update", "prize-delete", "draw", "cancel-win", "say"}
	r, _, _ := newRunner()

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			err := r.Run(context.Background(), name, nil)
			var usage *cli.UsageError
			if !errors.As(err, &usage) {
				t.Fatalf("expected UsageError, got %v", err)
			}
			if !strings.HasPrefix(usage.Error(), "usage: lotterydesk "+name) {
				t.Errorf("unexpected usage text %q", usage.Error())
			}
		})
	}
}

func TestCommands_Sorted(t *testing.T) {
	names := cli.Commands()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("commands not sorted: %v", names)
		}
	}
	if !cli.Has("draw") || cli.Has("serve") {
		t.Error("expected draw to be a command and serve not")
	}
}

func TestParticipants(t *testing.T) {
	r, client, out := newRunner()
	client.Draw(context.Background(), "prize-1", "")

	run(t, r, "participants")
	expectOutput(t, out, "张伟", "E001", "研发部", "一等奖", "6 participants")

	out.Reset()
	run(t, r, "participants", "won")
	expectOutput(t, out, "张伟", "1 participants")
	if strings.Contains(out.String(), "王芳") {
		t.Error("expected only won participants")
	}
}

func TestParticipantAddUpdateDelete(t *testing.T) {
	r, _, out := newRunner()

	run(t, r, "participant-add", "赵敏", "E007", "行政部")
	expectOutput(t, out, "Added participant 赵敏 (participant-101)")

	out.Reset()
	run(t, r, "participant-update", "participant-101", "赵敏敏")
	expectOutput(t, out, "Updated participant 赵敏敏")

	out.Reset()
	run(t, r, "participant-delete", "participant-101", "participant-6")
	expectOutput(t, out, "Deleted 2 participant(s)")

	list, _ := r.Admin.ListParticipants(context.Background(), "")
	if len(list) != 5 {
		t.Errorf("expected 5 participants left, got %d", len(list))
	}
}

func TestParticipantAdd_Validation(t *testing.T) {
	r, _, _ := newRunner()
	err := r.Run(context.Background(), "participant-add", []string{"   "})
	if !errors.Is(err, services.ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	sheet := filepath.Join(dir, "people.xlsx")
	if err := os.WriteFile(sheet, []byte("PK fake sheet"), 0o600); err != nil {
		t.Fatal(err)
	}
	csv := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(csv, []byte("name"), 0o600); err != nil {
		t.Fatal(err)
	}

	r, _, out := newRunner(lotteryapi.WithImportResult(&lotteryapi.ImportResult{
		Total: 3, Success: 2, Failed: 1, Errors: []string{"row 3: name is empty"},
	}))

	run(t, r, "import", sheet)
	expectOutput(t, out, "Imported 2 of 3 rows (1 failed)", "row 3: name is empty")

	if err := r.Run(context.Background(), "import", []string{csv}); !errors.Is(err, services.ErrInvalidImportType) {
		t.Errorf("expected ErrInvalidImportType, got %v", err)
	}
	if err := r.Run(context.Background(), "import", []string{filepath.Join(dir, "missing.xlsx")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist error, got %v", err)
	}
}

func TestPrizes(t *testing.T) {
	r, _, out := newRunner()
	run(t, r, "prizes")
	expectOutput(t, out, "prize-1", "一等奖", "0/1", "笔记本电脑", "0/3")
}

func TestPrizeAddUpdateDelete(t *testing.T) {
	r, _, out := newRunner()

	run(t, r, "prize-add", "特等奖", "1", "1", "汽车")
	expectOutput(t, out, "Added prize 特等奖 (prize-101)")

	out.Reset()
	run(t, r, "prize-update", "prize-101", "特等奖", "1", "2")
	expectOutput(t, out, "Updated prize 特等奖")

	out.Reset()
	run(t, r, "prize-delete", "prize-101")
	expectOutput(t, out, "Deleted prize prize-101")
}

func TestPrizeAdd_BadNumbers(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"level", []string{"奖", "one", "1"}},
		{"count", []string{"奖", "1", "many"}},
	}

	r, _, _ := newRunner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var usage *cli.UsageError
			if err := r.Run(context.Background(), "prize-add", tt.args); !errors.As(err, &usage) {
				t.Errorf("expected UsageError, got %v", err)
			}
		})
	}
}

func TestNextPrize(t *testing.T) {
	r, _, out := newRunner()
	run(t, r, "next-prize")
	expectOutput(t, out, "Next prize: prize-3 三等奖")

	r, _, out = newRunner(lotteryapi.WithPrizes(nil))
	run(t, r, "next-prize")
	expectOutput(t, out, "All prizes have been drawn")
}

func TestStats(t *testing.T) {
	r, client, out := newRunner()
	client.Draw(context.Background(), "prize-2", "")

	run(t, r, "stats")
	expectOutput(t, out, "Participants", "Won", "Drawn", "2/6")
}

func TestDraw(t *testing.T) {
	r, client, out := newRunner()

	run(t, r, "draw", "prize-2")
	expectOutput(t, out, "二等奖 (level 2)", "张伟", "王芳")
	if client.DrawCalls() != 1 {
		t.Errorf("expected 1 draw call, got %d", client.DrawCalls())
	}

	records, _ := client.ListRecords(context.Background())
	if len(records) == 0 || records[0].Operator != "host" {
		t.Errorf("expected records by operator host, got %+v", records)
	}
}

func TestDraw_RemoteError(t *testing.T) {
	r, _, _ := newRunner(lotteryapi.WithDrawError(&lotteryapi.APIError{Status: 200, Code: 400, Message: "no available participants"}))
	err := r.Run(context.Background(), "draw", []string{"prize-1"})
	if lotteryapi.MessageOf(err) != "no available participants" {
		t.Errorf("expected remote message, got %v", err)
	}
}

func TestCancelWinAndReset(t *testing.T) {
	r, client, out := newRunner()
	client.Draw(context.Background(), "prize-1", "")

	run(t, r, "cancel-win", "participant-1")
	expectOutput(t, out, "Cancelled win for participant-1")

	run(t, r, "reset")
	expectOutput(t, out, "Lottery reset")
	if client.ResetCalls() != 1 {
		t.Errorf("expected 1 reset call, got %d", client.ResetCalls())
	}
}

func TestRecords(t *testing.T) {
	r, client, out := newRunner()
	ctx := context.Background()
	client.Draw(ctx, "prize-1", "host")
	client.Draw(ctx, "prize-2", "host")
	client.CancelWin(ctx, "participant-1", "host")

	run(t, r, "records")
	expectOutput(t, out, "二等奖", "王芳")
	if strings.Contains(out.String(), "张伟") {
		t.Error("expected cancelled record hidden by default")
	}

	out.Reset()
	run(t, r, "records", "-all")
	expectOutput(t, out, "张伟")

	out.Reset()
	run(t, r, "records", "-prize", "prize-2")
	expectOutput(t, out, "王芳", "李娜")

	out.Reset()
	run(t, r, "records", "-participant", "participant-3")
	expectOutput(t, out, "李娜")
	if strings.Contains(out.String(), "王芳") {
		t.Error("expected only participant-3 records")
	}
}

func TestRecords_BadFlag(t *testing.T) {
	r, _, _ := newRunner()
	var usage *cli.UsageError
	if err := r.Run(context.Background(), "records", []string{"-bogus"}); !errors.As(err, &usage) {
		t.Errorf("expected UsageError, got %v", err)
	}
}

func TestSay(t *testing.T) {
	r, _, out := newRunner()
	messenger := newFakeMessenger()
	messenger.reply = &lotteryapi.CommandResponse{
		Success: true,
		Type:    lotteryapi.CommandStartDraw,
		Reply:   "好的，开始抽取三等奖",
		Data:    &lotteryapi.CommandData{Action: "START_DRAW", Prize: &lotteryapi.Prize{ID: "prize-3", Name: "三等奖"}},
	}
	r.Messenger = messenger

	run(t, r, "say", "开始", "抽奖")
	expectOutput(t, out, "[START_DRAW] 好的，开始抽取三等奖", "action START_DRAW: 三等奖 (prize-3)")

	if len(messenger.sent) != 1 || messenger.sent[0] != "desk:开始 抽奖" {
		t.Errorf("expected one command for session desk, got %v", messenger.sent)
	}
	if !messenger.closed {
		t.Error("expected messenger disconnected after say")
	}
}

func TestSay_Errors(t *testing.T) {
	t.Run("no messaging", func(t *testing.T) {
		r, _, _ := newRunner()
		if err := r.Run(context.Background(), "say", []string{"你好"}); !errors.Is(err, cli.ErrNoMessaging) {
			t.Errorf("expected ErrNoMessaging, got %v", err)
		}
	})

	t.Run("blank text", func(t *testing.T) {
		r, _, _ := newRunner()
		r.Messenger = newFakeMessenger()
		if err := r.Run(context.Background(), "say", []string{"  "}); !errors.Is(err, services.ErrEmptyTranscript) {
			t.Errorf("expected ErrEmptyTranscript, got %v", err)
		}
	})

	t.Run("connect failure", func(t *testing.T) {
		r, _, _ := newRunner()
		messenger := newFakeMessenger()
		messenger.connectErr = &lotteryws.ConnectError{Message: "refused"}
		r.Messenger = messenger
		var connErr *lotteryws.ConnectError
		if err := r.Run(context.Background(), "say", []string{"你好"}); !errors.As(err, &connErr) {
			t.Errorf("expected ConnectError, got %v", err)
		}
	})

	t.Run("no reply", func(t *testing.T) {
		r, _, _ := newRunner()
		r.Messenger = newFakeMessenger()
		r.ReplyTimeout = 20 * time.Millisecond
		err := r.Run(context.Background(), "say", []string{"你好"})
		if err == nil || !strings.Contains(err.Error(), "no reply") {
			t.Errorf("expected timeout error, got %v", err)
		}
	})
}

func TestWatch(t *testing.T) {
	r, _, out := newRunner()
	messenger := newFakeMessenger()
	r.Messenger = messenger

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, "watch", nil)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-messenger.subscribed:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscriptions")
		}
	}

	messenger.mu.Lock()
	onResult := messenger.onResult
	messenger.mu.Unlock()
	onResult(lotteryapi.DrawResult{
		PrizeID: "prize-1", PrizeName: "一等奖", PrizeLevel: 1,
		Winners: []lotteryapi.Winner{{ID: "participant-4", Name: "刘洋"}},
	})

	// the result is printed before cancellation is observed
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	expectOutput(t, out, "Watching for draw results", "一等奖 (level 1)", "刘洋")
}

func TestHealthInfoVersion(t *testing.T) {
	r, _, out := newRunner()

	run(t, r, "health")
	expectOutput(t, out, "http://mock-lottery.local is up")

	out.Reset()
	run(t, r, "info")
	expectOutput(t, out, "Version", "mock", "Participants", "6 (0 won)")

	out.Reset()
	run(t, r, "version")
	expectOutput(t, out, "lotterydesk 1.2.3")

	r, _, _ = newRunner(lotteryapi.WithHealthError(&lotteryapi.TransportError{Err: errors.New("refused")}))
	if err := r.Run(context.Background(), "health", nil); err == nil {
		t.Error("expected health error")
	}
}
