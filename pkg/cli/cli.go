// Package cli is the line-oriented front end. It reads the shared state and
// talks to the event loop only through commands.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/state"
	"github.com/baderanaas/swapbytes/pkg/topics"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// Commander is the subset of network.Client the front end uses.
type Commander interface {
	SendMessage(ctx context.Context, text, topic string) error
	RequestFile(ctx context.Context, text string, p peer.ID) error
	RespondFile(ctx context.Context, filename, path string, ch *exchange.ResponseChannel) error
	DeclineFile(ctx context.Context, ch *exchange.ResponseChannel) error
	UpdateRating(ctx context.Context, p peer.ID, delta int32) error
	CreateRoom(ctx context.Context, name string) error
	FetchRooms(ctx context.Context) error
	JoinRoom(ctx context.Context, topic string) error
}

// Outcome tells Run whether to keep reading input.
type Outcome int

const (
	Continue Outcome = iota
	Quit
)

const (
	defaultHistory = 50
	newMessages    = " - New Messages"
)

var ratings = map[string]int32{"good": 1, "neutral": 0, "bad": -1}

// CLI is not safe for concurrent use; Run drives it from one goroutine.
type CLI struct {
	state  *state.State
	cmd    Commander
	in     *bufio.Scanner
	out    io.Writer
	logger *zap.Logger

	shown    map[string]int
	prompted peer.ID
}

func New(st *state.State, cmd Commander, in *bufio.Scanner, out io.Writer, logger *zap.Logger) *CLI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CLI{
		state:  st,
		cmd:    cmd,
		in:     in,
		out:    out,
		logger: logger.Named("cli"),
		shown:  make(map[string]int),
	}
}

// ReadNickname prompts until a non-empty nickname is entered.
func ReadNickname(in *bufio.Scanner, out io.Writer) (string, error) {
	for {
		fmt.Fprint(out, "Enter your nickname: ")
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		if name := strings.TrimSpace(in.Text()); name != "" {
			return name, nil
		}
	}
}

// Run prints the banner and handles input until /quit, end of input or ctx
// is done. New lines in the focused room are printed every refresh.
func (c *CLI) Run(ctx context.Context, refresh time.Duration) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for c.in.Scan() {
			select {
			case lines <- c.in.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- c.in.Err()
	}()

	c.banner()
	c.Refresh()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
			c.Refresh()
		case line := <-lines:
			if c.Handle(ctx, line) == Quit {
				return nil
			}
			c.Refresh()
		}
	}
}

func (c *CLI) banner() {
	fmt.Fprintf(c.out, "\n✅ SwapBytes started as %s\n", c.state.Nickname())
	c.help()
}

func (c *CLI) help() {
	fmt.Fprintf(c.out, "Commands:\n")
	fmt.Fprintf(c.out, "  /rooms                       - List rooms\n")
	fmt.Fprintf(c.out, "  /join <room>                 - Join a room and switch to it\n")
	fmt.Fprintf(c.out, "  /create <room>               - Create a new room\n")
	fmt.Fprintf(c.out, "  /fetch                       - Fetch the room list from the network\n")
	fmt.Fprintf(c.out, "  /switch <room>               - Switch to a joined room\n")
	fmt.Fprintf(c.out, "  /peers                       - List discovered peers\n")
	fmt.Fprintf(c.out, "  /dm <nickname>               - Open a direct conversation\n")
	fmt.Fprintf(c.out, "  /request <nickname> <text>   - Ask a peer for a file\n")
	fmt.Fprintf(c.out, "  /requests                    - List incoming file requests\n")
	fmt.Fprintf(c.out, "  /respond <id> <path>         - Answer a request with a file\n")
	fmt.Fprintf(c.out, "  /decline <id>                - Decline a request\n")
	fmt.Fprintf(c.out, "  /rate good|neutral|bad       - Rate the last peer you received a file from\n")
	fmt.Fprintf(c.out, "  /history [n]                 - Show the last [n] lines of this room\n")
	fmt.Fprintf(c.out, "  /quit                        - Exit\n")
	fmt.Fprintf(c.out, "  <message>                    - Send to the current room\n")
}

// Refresh prints lines of the focused room not printed yet, and the rating
// prompt after a file has arrived.
func (c *CLI) Refresh() {
	room := c.state.CurrentRoom()
	msgs := c.state.Messages(room)
	for _, line := range msgs[min(c.shown[room], len(msgs)):] {
		fmt.Fprintf(c.out, "[%s] %s\n", room, line)
	}
	c.shown[room] = len(msgs)

	if target, ok := c.state.RatingTarget(); ok && target != c.prompted {
		c.prompted = target
		fmt.Fprintf(c.out, "📥 File received from %s. Rate them with /rate good|neutral|bad\n", c.state.DisplayName(target))
	}
}

// Handle runs one line of input.
func (c *CLI) Handle(ctx context.Context, input string) Outcome {
	input = strings.TrimSpace(input)
	if input == "" {
		return Continue
	}
	if !strings.HasPrefix(input, "/") {
		c.report(c.cmd.SendMessage(ctx, input, c.state.CurrentRoom()))
		return Continue
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit":
		fmt.Fprintln(c.out, "🔌 Shutting down...")
		return Quit
	case "/help":
		c.help()
	case "/rooms":
		c.listRooms()
	case "/join":
		c.join(ctx, arg)
	case "/create":
		c.create(ctx, arg)
	case "/fetch":
		if c.report(c.cmd.FetchRooms(ctx)) {
			fmt.Fprintln(c.out, "Fetching rooms, check /rooms in a moment.")
		}
	case "/switch":
		c.switchTo(arg)
	case "/peers":
		c.listPeers()
	case "/dm":
		c.direct(arg)
	case "/request":
		c.request(ctx, arg)
	case "/requests":
		c.listRequests()
	case "/respond":
		c.respond(ctx, arg)
	case "/decline":
		c.decline(ctx, arg)
	case "/rate":
		c.rate(ctx, arg)
	case "/history":
		c.history(arg)
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help for the list.\n", name)
	}
	return Continue
}

// report prints err and reports whether it was nil.
func (c *CLI) report(err error) bool {
	if err == nil {
		return true
	}
	c.logger.Warn("command failed", zap.Error(err))
	fmt.Fprintf(c.out, "❌ %v\n", err)
	return false
}

func (c *CLI) listRooms() {
	current := c.state.CurrentRoom()
	fmt.Fprintln(c.out, "Rooms:")
	for _, room := range c.state.Rooms() {
		line := "  - " + room
		if room == current {
			line += " (current)"
		}
		if c.state.Unread(room) {
			line += newMessages
		}
		fmt.Fprintln(c.out, line)
	}
	for _, topic := range c.state.Topics() {
		if topics.IsDirect(topic) && c.state.Unread(topic) {
			fmt.Fprintf(c.out, "  - %s%s\n", c.directName(topic), newMessages)
		}
	}
}

// directName names the other side of a direct topic.
func (c *CLI) directName(topic string) string {
	local := c.state.LocalPeer()
	for _, p := range c.state.Peers() {
		if topics.DirectTopic(local, p) == topic {
			return "DM " + c.state.DisplayName(p)
		}
	}
	return topic
}

func (c *CLI) join(ctx context.Context, room string) {
	if room == "" {
		fmt.Fprintln(c.out, "Usage: /join <room>")
		return
	}
	if !slices.Contains(c.state.Rooms(), room) {
		fmt.Fprintf(c.out, "Unknown room '%s'. Use /fetch or /create %s.\n", room, room)
		return
	}
	if !c.report(c.cmd.JoinRoom(ctx, room)) {
		return
	}
	c.focus(room)
}

func (c *CLI) create(ctx context.Context, arg string) {
	name, err := topics.ValidateName(arg)
	if err != nil {
		c.report(err)
		return
	}
	if slices.Contains(c.state.Rooms(), name) {
		fmt.Fprintf(c.out, "Room '%s' already exists. Use /join %s.\n", name, name)
		return
	}
	if c.report(c.cmd.CreateRoom(ctx, name)) {
		fmt.Fprintf(c.out, "Creating room '%s'...\n", name)
	}
}

func (c *CLI) switchTo(room string) {
	if room == "" {
		fmt.Fprintln(c.out, "Usage: /switch <room>")
		return
	}
	if !c.state.HasHistory(room) {
		fmt.Fprintf(c.out, "You are not in room '%s'. Use /join %s to join it.\n", room, room)
		return
	}
	c.focus(room)
}

// focus switches rooms and reprints the room's recent history.
func (c *CLI) focus(topic string) {
	c.state.Focus(topic)
	fmt.Fprintf(c.out, "Switched to '%s'\n", topic)
	c.shown[topic] = max(0, len(c.state.Messages(topic))-defaultHistory)
}

func (c *CLI) listPeers() {
	ps := c.state.Peers()
	if len(ps) == 0 {
		fmt.Fprintln(c.out, "No peers discovered yet.")
		return
	}
	fmt.Fprintln(c.out, "Peers:")
	for _, p := range ps {
		if nick, ok := c.state.NicknameOf(p); ok {
			fmt.Fprintf(c.out, "  - %s (%s)\n", nick, p)
		} else {
			fmt.Fprintf(c.out, "  - %s\n", p)
		}
	}
}

// lookup resolves a nickname or a full peer ID.
func (c *CLI) lookup(name string) (peer.ID, error) {
	if p, ok := c.state.PeerByNickname(name); ok {
		return p, nil
	}
	p, err := peer.Decode(name)
	if err != nil {
		return "", fmt.Errorf("no peer called %s", name)
	}
	return p, nil
}

func (c *CLI) direct(name string) {
	if name == "" {
		fmt.Fprintln(c.out, "Usage: /dm <nickname>")
		return
	}
	p, err := c.lookup(name)
	if err != nil {
		c.report(err)
		return
	}
	c.focus(topics.DirectTopic(c.state.LocalPeer(), p))
}

func (c *CLI) request(ctx context.Context, arg string) {
	name, text, ok := strings.Cut(arg, " ")
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		fmt.Fprintln(c.out, "Usage: /request <nickname> <text>")
		return
	}
	p, err := c.lookup(name)
	if err != nil {
		c.report(err)
		return
	}
	if c.report(c.cmd.RequestFile(ctx, text, p)) {
		fmt.Fprintf(c.out, "📤 Asked %s: %s\n", c.state.DisplayName(p), text)
	}
}

func (c *CLI) listRequests() {
	reqs := c.state.Requests()
	if len(reqs) == 0 {
		fmt.Fprintln(c.out, "No pending requests.")
		return
	}
	fmt.Fprintln(c.out, "Requests:")
	for _, req := range reqs {
		fmt.Fprintf(c.out, "  [%s] %s: %s\n", req.ID, c.state.DisplayName(req.Peer), req.Message)
	}
}

func (c *CLI) respond(ctx context.Context, arg string) {
	id, path, ok := strings.Cut(arg, " ")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		fmt.Fprintln(c.out, "Usage: /respond <id> <path>")
		return
	}
	req, found := c.state.Request(id)
	if !found {
		fmt.Fprintf(c.out, "No request %s. See /requests.\n", id)
		return
	}
	if c.report(c.cmd.RespondFile(ctx, filepath.Base(path), path, req.Channel)) {
		fmt.Fprintf(c.out, "✅ Sent %s to %s\n", filepath.Base(path), c.state.DisplayName(req.Peer))
	}
}

func (c *CLI) decline(ctx context.Context, id string) {
	req, found := c.state.Request(id)
	if !found {
		fmt.Fprintf(c.out, "No request %s. See /requests.\n", id)
		return
	}
	if c.report(c.cmd.DeclineFile(ctx, req.Channel)) {
		fmt.Fprintf(c.out, "Declined request from %s\n", c.state.DisplayName(req.Peer))
	}
}

func (c *CLI) rate(ctx context.Context, arg string) {
	delta, ok := ratings[arg]
	if !ok {
		fmt.Fprintln(c.out, "Usage: /rate good|neutral|bad")
		return
	}
	target, ok := c.state.RatingTarget()
	if !ok {
		fmt.Fprintln(c.out, "Nobody to rate.")
		return
	}
	if delta != 0 && !c.report(c.cmd.UpdateRating(ctx, target, delta)) {
		return
	}
	c.state.ClearRatingTarget()
	fmt.Fprintf(c.out, "Rated %s %s\n", c.state.DisplayName(target), arg)
}

func (c *CLI) history(arg string) {
	n := defaultHistory
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			c.report(errors.New("invalid count, must be a positive number"))
			return
		}
		n = v
	}
	room := c.state.CurrentRoom()
	msgs := c.state.Messages(room)
	msgs = msgs[max(0, len(msgs)-n):]
	fmt.Fprintf(c.out, "--- History for %s (last %d lines) ---\n", room, len(msgs))
	for _, line := range msgs {
		fmt.Fprintln(c.out, line)
	}
	fmt.Fprintln(c.out, "--- End of history ---")
	c.shown[room] = len(c.state.Messages(room))
}
