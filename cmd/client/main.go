package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL string `env:"SERVER_URL,default=ws://localhost:8080/ws"`
	Token     string `env:"CHAT_TOKEN,required=true"`
	Room      string `env:"CHAT_ROOM"`
}

type inboundFrame struct {
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
	Message *struct {
		ID        string    `json:"id"`
		RoomID    string    `json:"room_id"`
		SenderID  string    `json:"sender_id"`
		Content   string    `json:"content"`
		Lang      string    `json:"lang,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"message,omitempty"`
}

type outboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		color.Errorf("Config error: %v\n", err)
		os.Exit(1)
	}

	target, err := url.Parse(config.ServerURL)
	if err != nil {
		color.Errorf("Invalid SERVER_URL: %v\n", err)
		os.Exit(1)
	}
	q := target.Query()
	q.Set("token", config.Token)
	target.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		color.Errorf("Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	color.Greenln("Connected.")

	room := config.Room
	if room != "" {
		send(conn, outboundFrame{Type: "join", RoomID: room})
		color.Infof("Joined room %s\n", room)
	}

	go receive(conn)

	color.Grayln("Commands: /join <room>  /leave <room>  /room <room>  /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case strings.HasPrefix(line, "/join "):
			room = strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			send(conn, outboundFrame{Type: "join", RoomID: room})
		case strings.HasPrefix(line, "/leave "):
			send(conn, outboundFrame{Type: "leave",
				RoomID: strings.TrimSpace(strings.TrimPrefix(line, "/leave "))})
		case strings.HasPrefix(line, "/room "):
			room = strings.TrimSpace(strings.TrimPrefix(line, "/room "))
			color.Infof("Now talking in %s\n", room)
		default:
			if room == "" {
				color.Warnln("No room selected, use /join <room> first")
				continue
			}
			send(conn, outboundFrame{Type: "send", RoomID: room, Content: line})
		}
	}
}

func send(conn *websocket.Conn, frame outboundFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		color.Errorf("Send failed: %v\n", err)
	}
}

func receive(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			color.Grayln("Connection closed.")
			os.Exit(0)
		}
		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "message":
			if frame.Message == nil {
				continue
			}
			ts := frame.Message.CreatedAt.Local().Format("15:04:05")
			fmt.Printf("%s %s %s %s\n",
				color.Gray.Sprint(ts),
				color.Cyan.Sprintf("[%s]", frame.Message.RoomID),
				color.Green.Sprintf("%s:", frame.Message.SenderID),
				frame.Message.Content)
		case "error":
			color.Errorf("Server: %s\n", frame.Error)
		}
	}
}
