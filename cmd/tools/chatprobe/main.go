// chatprobe drives a conversation against a running companion backend the
// way the desktop shell does: optimistic local session state, a websocket
// subscription for live events, and HTTP sends.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/internal/session"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	baseURL := flag.String("addr", "http://localhost:8080", "backend base URL")
	chatID := flag.String("chat", "", "chat ID, empty creates a new chat")
	text := flag.String("message", "", "message to send")
	reasoning := flag.Bool("reasoning", false, "request step-by-step reasoning")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	if *text == "" {
		flag.Usage()
		log.Fatal().Msg("provide a message with -message")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &apiClient{baseURL: *baseURL, http: &http.Client{Timeout: *timeout}}

	id := *chatID
	if id == "" {
		var err error
		id, err = client.createChat(ctx, "probe")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create chat")
		}
		log.Info().Str("chat_id", id).Msg("created chat")
	}

	updates := make(chan session.Snapshot, 16)
	sess := session.New(id, client, session.WithNotify(func(snap session.Snapshot) {
		select {
		case updates <- snap:
		default:
		}
	}))

	transcript, err := client.getMessages(ctx, id)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load transcript")
	}
	sess.Load(transcript)

	conn, err := client.subscribe(ctx, id)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open websocket subscription")
	}
	defer conn.Close()

	go func() {
		for {
			var ev event.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if err := session.Apply(sess, ev); err != nil {
				log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("failed to apply event")
			}
		}
	}()

	log.Info().Str("chat_id", id).Str("text", *text).Msg("sending")
	sess.SendMessage(ctx, *text, chat.SendOptions{Reasoning: *reasoning})

	for {
		select {
		case snap := <-updates:
			printSnapshot(snap)
			if !snap.Waiting {
				if snap.LastError != "" {
					log.Fatal().Str("error", snap.LastError).Msg("send failed")
				}
				return
			}
		case <-ctx.Done():
			log.Fatal().Msg("timed out waiting for reply")
		}
	}
}

func printSnapshot(snap session.Snapshot) {
	for _, m := range snap.Messages {
		text := ""
		if m.Text != nil {
			text = *m.Text
		}
		fmt.Printf("[%s] %s\n", m.Role, text)
	}
	if len(snap.ActiveToolCalls) > 0 {
		fmt.Printf("  active tool calls: %d\n", len(snap.ActiveToolCalls))
	}
	fmt.Println("---")
}

// apiClient implements session.Sender over the backend's REST surface.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) SendMessage(ctx context.Context, chatID, text string, opts chat.SendOptions) (*chat.Message, error) {
	body, err := json.Marshal(map[string]any{
		"text":      text,
		"reasoning": opts.Reasoning,
		"voice":     opts.Voice,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chats/"+chatID+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("send failed with status %d: %s", resp.StatusCode, apiErr.Error)
	}

	var reply chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *apiClient) createChat(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chats", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create chat failed with status %d", resp.StatusCode)
	}

	var created chat.Chat
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *apiClient) getMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chats/"+chatID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript fetch failed with status %d", resp.StatusCode)
	}

	var msgs []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *apiClient) subscribe(ctx context.Context, chatID string) (*websocket.Conn, error) {
	wsURL := "ws" + c.baseURL[len("http"):] + "/api/subscribe/" + chatID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	return conn, err
}
