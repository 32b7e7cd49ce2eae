// chatctl is a terminal chat session against a running staychat server.
// It drives the same embeddable client the booking platform uses, which
// makes it handy for poking at a deployment:
//
//	chatctl -api http://localhost:8080 -token <session-token> -user guest-1 -to support
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"staychat/internal/client"
	"staychat/internal/durable"
	"staychat/internal/models"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Base URL of the chat API")
	socketURL := flag.String("socket", "", "WebSocket URL (derived from -api when empty)")
	token := flag.String("token", "", "Session token (see POST /admin/sessions)")
	userID := flag.String("user", "", "Session user id")
	peerID := flag.String("to", "support", "Counterparty id to message")
	flag.Parse()

	if *token == "" || *userID == "" {
		fmt.Println("Usage: chatctl -token <session-token> -user <user-id> [-to <peer-id>]")
		os.Exit(1)
	}

	sock := *socketURL
	if sock == "" {
		sock = strings.Replace(*apiURL, "http", "ws", 1) + "/api/chat"
	}
	sock += "?token=" + *token

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chat, err := client.New(client.Config{
		UserID:    *userID,
		SocketURL: sock,
		Durable:   durable.New(*apiURL, *token),
		Notify: func(text string) {
			fmt.Printf("! %s\n", text)
		},
		OnTyping: func(threadID string, isTyping bool) {
			if isTyping {
				fmt.Printf("* %s is typing...\n", threadID)
			}
		},
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := chat.Start(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer chat.Close()

	chat.OpenPanel(ctx)

	fmt.Printf("Connected as %s. Roster:\n", *userID)
	for _, agent := range chat.Agents() {
		fmt.Printf("  %s (%s) — %s\n", agent.Name, agent.ID, agent.Status)
	}
	for _, msg := range chat.Messages() {
		printMessage(msg)
	}
	fmt.Println("Type a message and press enter. Ctrl-C to quit.")

	// Print new messages as they arrive.
	go func() {
		seen := len(chat.Messages())
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				msgs := chat.Messages()
				for ; seen < len(msgs); seen++ {
					if msgs[seen].SenderID != *userID {
						printMessage(msgs[seen])
					}
				}
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := chat.SendMessage(ctx, line, *peerID, "", false); err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}

func printMessage(msg models.Message) {
	ts := time.Unix(msg.Timestamp, 0).Format("15:04:05")
	fmt.Printf("[%s] %s: %s\n", ts, msg.SenderID, msg.Content)
}
