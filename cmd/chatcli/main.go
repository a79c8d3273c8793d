// chatcli is a terminal client: it logs in, joins one room, and runs
// the adaptive polling engine, printing messages, roster changes, and
// typing indicators as they arrive. Lines typed on stdin are sent to
// the room.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Magnec/chatspace/client/chatspace"
	"github.com/Magnec/chatspace/internal/chat"
	"github.com/Magnec/chatspace/internal/poller"
	"github.com/Magnec/chatspace/internal/presence"
	"go.uber.org/zap"
)

type consoleSink struct{}

func (consoleSink) OnMessages(batch []chat.MessageView) {
	for _, m := range batch {
		edited := ""
		if m.IsEdited {
			edited = " (edited)"
		}
		fmt.Printf("[%s] %s: %s%s\n", m.Created, m.Name, m.Message, edited)
	}
}

func (consoleSink) OnRoster([]presence.RoomUser, presence.Stats) {
	// Roster refreshes every couple of seconds; too noisy for a
	// line-per-update terminal.
}

func (consoleSink) OnTyping(names []string) {
	if len(names) > 0 {
		fmt.Printf("… %s typing\n", strings.Join(names, ", "))
	}
}

func main() {
	var (
		server   = flag.String("server", "http://localhost:8081", "server base URL")
		room     = flag.String("room", "general", "room id or slug")
		username = flag.String("user", "", "username")
		password = flag.String("pass", "", "password")
	)
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -pass are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := chatspace.New(*server)
	user, err := client.Login(ctx, *username, *password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("connected as %s, room %s\n", user.Name, *room)

	roomClient := client.Room(*room)
	session := poller.NewSession(roomClient, consoleSink{}, zap.NewNop())
	session.Start(ctx)
	defer session.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		}

		if _, err := roomClient.Send(ctx, line); err != nil {
			if chatspace.IsRateLimited(err) {
				fmt.Println("! sending too fast, wait a moment")
				continue
			}
			fmt.Printf("! send failed: %v\n", err)
		}
	}
}
