package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatrouter/internal/domain"
)

// CLIMessage is a line typed at the terminal. The local user is a direct contact.
type CLIMessage struct {
	domain.Base
	user string
	text string
	cli  *CLI
}

func (m *CLIMessage) ContactID(context.Context) (string, error) { return m.user, nil }

func (m *CLIMessage) PlainText(context.Context) (string, bool, error) {
	return textOf(m.text)
}

func (m *CLIMessage) Reply(_ context.Context, content string) error {
	return m.cli.print(content)
}

// CLI implements domain.Channel for interactive terminal chat.
type CLI struct {
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	user   string
	bot    string

	mu  sync.Mutex
	seq int
}

type CLIConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	// User is the contact id of the local user (default "user").
	User string
	// BotID is the id events report as receiving bot (default "chatrouter").
	BotID string
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.User == "" {
		cfg.User = "user"
	}
	if cfg.BotID == "" {
		cfg.BotID = "chatrouter"
	}
	return &CLI{
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
		user:   cfg.User,
		bot:    cfg.BotID,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start reads lines until EOF, /quit or context cancellation and publishes
// each non-empty line as a CLIMessage.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	_, _ = fmt.Fprintln(c.out, "chatrouter CLI. Type a message and press Enter. Type /quit to exit.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		bus.Publish(c.newMessage(line))
	}
}

func (c *CLI) newMessage(line string) *CLIMessage {
	c.mu.Lock()
	c.seq++
	id := "cli-" + strconv.Itoa(c.seq)
	c.mu.Unlock()

	return &CLIMessage{
		Base: domain.Base{EventID: id, ComponentName: "cli", Bot: c.bot, Timestamp: time.Now()},
		user: c.user,
		text: line,
		cli:  c,
	}
}

func (c *CLI) print(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\r\033[K--- %s ---\n%s\n----------------\nYou> ", c.bot, content)
	return err
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }
