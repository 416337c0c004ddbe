package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/state"
	"github.com/baderanaas/swapbytes/pkg/topics"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []any
}

type fakeCommander struct {
	calls []call
	err   error
}

func (f *fakeCommander) record(name string, args ...any) error {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.err
}

func (f *fakeCommander) SendMessage(_ context.Context, text, topic string) error {
	return f.record("SendMessage", text, topic)
}

func (f *fakeCommander) RequestFile(_ context.Context, text string, p peer.ID) error {
	return f.record("RequestFile", text, p)
}

func (f *fakeCommander) RespondFile(_ context.Context, filename, path string, ch *exchange.ResponseChannel) error {
	return f.record("RespondFile", filename, path, ch)
}

func (f *fakeCommander) DeclineFile(_ context.Context, ch *exchange.ResponseChannel) error {
	return f.record("DeclineFile", ch)
}

func (f *fakeCommander) UpdateRating(_ context.Context, p peer.ID, delta int32) error {
	return f.record("UpdateRating", p, delta)
}

func (f *fakeCommander) CreateRoom(_ context.Context, name string) error {
	return f.record("CreateRoom", name)
}

func (f *fakeCommander) FetchRooms(_ context.Context) error {
	return f.record("FetchRooms")
}

func (f *fakeCommander) JoinRoom(_ context.Context, topic string) error {
	return f.record("JoinRoom", topic)
}

func newPeerID(t *testing.T) peer.ID {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return id
}

type harness struct {
	st  *state.State
	cmd *fakeCommander
	out *bytes.Buffer
	cli *CLI
}

func newHarness(t *testing.T, input string) *harness {
	st := state.New("Alice")
	st.SetLocalPeer(newPeerID(t))
	h := &harness{st: st, cmd: &fakeCommander{}, out: &bytes.Buffer{}}
	h.cli = New(st, h.cmd, bufio.NewScanner(strings.NewReader(input)), h.out, nil)
	return h
}

func (h *harness) handle(t *testing.T, line string) string {
	h.out.Reset()
	require.Equal(t, Continue, h.cli.Handle(context.Background(), line))
	return h.out.String()
}

func TestReadNickname(t *testing.T) {
	out := &bytes.Buffer{}
	name, err := ReadNickname(bufio.NewScanner(strings.NewReader("\n  \n Alice \n")), out)
	require.NoError(t, err)
	require.Equal(t, "Alice", name)
	require.Equal(t, 3, strings.Count(out.String(), "Enter your nickname"))

	_, err = ReadNickname(bufio.NewScanner(strings.NewReader("")), out)
	require.Error(t, err)
}

func TestPlainTextGoesToCurrentRoom(t *testing.T) {
	h := newHarness(t, "")
	h.handle(t, "hello")
	require.Equal(t, []call{{"SendMessage", []any{"hello", topics.Global}}}, h.cmd.calls)
}

func TestQuit(t *testing.T) {
	h := newHarness(t, "")
	require.Equal(t, Quit, h.cli.Handle(context.Background(), "/quit"))
}

func TestRoomsMarkers(t *testing.T) {
	h := newHarness(t, "")
	h.st.MarkUnread("COSC473")
	out := h.handle(t, "/rooms")
	require.Contains(t, out, "  - Global (current)\n")
	require.Contains(t, out, "  - COSC473 - New Messages\n")
	require.Contains(t, out, "  - SENG402\n")
}

func TestJoinKnownRoom(t *testing.T) {
	h := newHarness(t, "")
	h.handle(t, "/join COSC478")
	require.Equal(t, []call{{"JoinRoom", []any{"COSC478"}}}, h.cmd.calls)
	require.Equal(t, "COSC478", h.st.CurrentRoom())

	out := h.handle(t, "/join Nowhere")
	require.Contains(t, out, "Unknown room")
	require.Len(t, h.cmd.calls, 1)
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t, "")
	h.handle(t, "/create  COSC999 ")
	require.Equal(t, []call{{"CreateRoom", []any{"COSC999"}}}, h.cmd.calls)

	out := h.handle(t, "/create Global")
	require.Contains(t, out, "already exists")
	out = h.handle(t, "/create")
	require.Contains(t, out, "❌")
	require.Len(t, h.cmd.calls, 1)
}

func TestSwitchRequiresHistory(t *testing.T) {
	h := newHarness(t, "")
	out := h.handle(t, "/switch COSC473")
	require.Contains(t, out, "not in room")
	require.Equal(t, topics.Global, h.st.CurrentRoom())

	h.st.EnsureHistory("COSC473", topics.WelcomeLine("COSC473"))
	h.st.MarkUnread("COSC473")
	h.handle(t, "/switch COSC473")
	require.Equal(t, "COSC473", h.st.CurrentRoom())
	require.False(t, h.st.Unread("COSC473"))
}

func TestRefreshPrintsNewLinesOnce(t *testing.T) {
	h := newHarness(t, "")
	h.st.EnsureHistory(topics.Global, topics.WelcomeLine(topics.Global))
	h.cli.Refresh()
	require.Equal(t, "[Global] "+topics.WelcomeLine(topics.Global)+"\n", h.out.String())

	h.out.Reset()
	h.cli.Refresh()
	require.Empty(t, h.out.String())

	h.st.AppendMessage(topics.Global, "Bob: hi")
	h.st.AppendMessage("COSC473", "Carol: elsewhere")
	h.cli.Refresh()
	require.Equal(t, "[Global] Bob: hi\n", h.out.String())
}

func TestDirectAndRequest(t *testing.T) {
	h := newHarness(t, "")
	bob := newPeerID(t)
	h.st.AddPeer(bob)
	h.st.SetNickname(bob, "Bob")

	h.handle(t, "/dm Bob")
	require.Equal(t, topics.DirectTopic(h.st.LocalPeer(), bob), h.st.CurrentRoom())

	h.handle(t, "/request Bob notes.pdf please")
	require.Equal(t, call{"RequestFile", []any{"notes.pdf please", bob}}, h.cmd.calls[0])

	out := h.handle(t, "/request Nobody hi")
	require.Contains(t, out, "no peer called Nobody")

	h.handle(t, "/request "+bob.String()+" by id")
	require.Equal(t, call{"RequestFile", []any{"by id", bob}}, h.cmd.calls[1])
}

func TestRespondAndDecline(t *testing.T) {
	h := newHarness(t, "")
	bob := newPeerID(t)
	h.st.SetNickname(bob, "Bob")
	ch := exchange.NewResponseChannel(bob, nil)
	h.st.AddRequest(state.FileRequest{ID: ch.ID(), Peer: bob, Message: "notes?", Channel: ch})

	out := h.handle(t, "/requests")
	require.Contains(t, out, "["+ch.ID()+"] Bob: notes?")

	out = h.handle(t, "/respond "+ch.ID()+" /tmp/docs/notes.pdf")
	require.Contains(t, out, "Sent notes.pdf to Bob")
	require.Equal(t, call{"RespondFile", []any{"notes.pdf", "/tmp/docs/notes.pdf", ch}}, h.cmd.calls[0])

	h.handle(t, "/decline "+ch.ID())
	require.Equal(t, call{"DeclineFile", []any{ch}}, h.cmd.calls[1])

	out = h.handle(t, "/decline missing")
	require.Contains(t, out, "No request missing")
}

func TestRespondErrorIsReported(t *testing.T) {
	h := newHarness(t, "")
	bob := newPeerID(t)
	ch := exchange.NewResponseChannel(bob, nil)
	h.st.AddRequest(state.FileRequest{ID: ch.ID(), Peer: bob, Channel: ch})
	h.cmd.err = errors.New("failed to read missing.pdf")

	out := h.handle(t, "/respond "+ch.ID()+" missing.pdf")
	require.Contains(t, out, "❌ failed to read missing.pdf")
}

func TestRate(t *testing.T) {
	h := newHarness(t, "")
	out := h.handle(t, "/rate good")
	require.Contains(t, out, "Nobody to rate")

	bob := newPeerID(t)
	h.st.SetNickname(bob, "Bob")
	h.st.SetRatingTarget(bob)

	h.out.Reset()
	h.cli.Refresh()
	require.Contains(t, h.out.String(), "File received from Bob")

	h.handle(t, "/rate bad")
	require.Equal(t, []call{{"UpdateRating", []any{bob, int32(-1)}}}, h.cmd.calls)
	_, ok := h.st.RatingTarget()
	require.False(t, ok)

	h.st.SetRatingTarget(bob)
	h.handle(t, "/rate neutral")
	require.Len(t, h.cmd.calls, 1)
	_, ok = h.st.RatingTarget()
	require.False(t, ok)

	out = h.handle(t, "/rate meh")
	require.Contains(t, out, "Usage: /rate")
}

func TestHistory(t *testing.T) {
	h := newHarness(t, "")
	h.st.EnsureHistory(topics.Global, "one")
	h.st.AppendMessage(topics.Global, "two")
	h.st.AppendMessage(topics.Global, "three")

	out := h.handle(t, "/history 2")
	require.Contains(t, out, "two\nthree\n")
	require.NotContains(t, out, "one")

	out = h.handle(t, "/history x")
	require.Contains(t, out, "invalid count")
}

func TestRunStopsOnQuit(t *testing.T) {
	h := newHarness(t, "hello\n/quit\nignored\n")
	require.NoError(t, h.cli.Run(context.Background(), time.Hour))
	require.Equal(t, []call{{"SendMessage", []any{"hello", topics.Global}}}, h.cmd.calls)
	require.Contains(t, h.out.String(), "Shutting down")
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	h := newHarness(t, "/fetch\n")
	require.NoError(t, h.cli.Run(context.Background(), time.Hour))
	require.Equal(t, []call{{"FetchRooms", nil}}, h.cmd.calls)
}
