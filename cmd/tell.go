package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	storyhttp "github.com/nextlevelbuilder/storycast/internal/http"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

type tellOptions struct {
	server      string
	token       string
	user        string
	mode        string
	task        string
	image       string
	historyFile string
	audioDir    string
}

func tellCmd() *cobra.Command {
	var o tellOptions
	cmd := &cobra.Command{
		Use:   "tell [message]",
		Short: "Send a dialog to a running gateway and print the streamed paragraphs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := buildTellHistory(o, args)
			if err != nil {
				return err
			}
			return runTell(cmd.OutOrStdout(), o, history)
		},
	}
	cmd.Flags().StringVar(&o.server, "server", "http://localhost:8080", "gateway base URL")
	cmd.Flags().StringVar(&o.token, "token", os.Getenv("STORYCAST_GATEWAY_TOKEN"), "gateway bearer token")
	cmd.Flags().StringVar(&o.user, "user", "", "account identity ("+storyhttp.UserIDHeader+")")
	cmd.Flags().StringVar(&o.mode, "mode", "story", "story or qna")
	cmd.Flags().StringVar(&o.task, "task", "", "visual task for image questions")
	cmd.Flags().StringVar(&o.image, "image", "", "image URL to attach to the message")
	cmd.Flags().StringVar(&o.historyFile, "history", "", "JSON file with a prior dialogHistory")
	cmd.Flags().StringVar(&o.audioDir, "save-audio", "", "directory to write each paragraph's audio")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func buildTellHistory(o tellOptions, args []string) (protocol.DialogHistory, error) {
	var history protocol.DialogHistory
	if o.historyFile != "" {
		data, err := os.ReadFile(o.historyFile)
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		if err := json.Unmarshal(data, &history); err != nil {
			return nil, fmt.Errorf("parse history: %w", err)
		}
	}
	if len(args) == 1 {
		msg := protocol.TextMessage(protocol.RoleUser, args[0])
		if o.image != "" {
			msg = protocol.PartsMessage(protocol.RoleUser, protocol.TextPart(args[0]), protocol.ImagePart(o.image))
		}
		history = append(history, msg)
	}
	if len(history) == 0 {
		return nil, errors.New("nothing to send: pass a message or --history")
	}
	return history, nil
}

func runTell(out io.Writer, o tellOptions, history protocol.DialogHistory) error {
	body, err := json.Marshal(map[string]any{"dialogHistory": history})
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("query_type", o.mode)
	q.Set("current_time", time.Now().Format("2006-01-02T15:04:05"))
	if o.task != "" {
		q.Set("visual_task", o.task)
	}
	endpoint := strings.TrimRight(o.server, "/") + "/v1/story?" + q.Encode()

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(storyhttp.UserIDHeader, o.user)
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post story: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb protocol.ErrorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &eb) == nil && eb.Error.Message != "" {
			return fmt.Errorf("gateway returned %d %s: %s", resp.StatusCode, eb.Error.Code, eb.Error.Message)
		}
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	n := 0
	err = protocol.ReadRecords(resp.Body, func(rec protocol.StreamRecord) error {
		if rec.IsTerminal() {
			return nil
		}
		p := rec.CurrentParagraph
		n++
		fmt.Fprintf(out, "[%d] %s\n", p.Index, p.Text)
		if o.audioDir != "" && p.Audio != "" {
			path, err := saveAudio(o.audioDir, p.Index, p.Audio)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "    audio: %s\n", path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(out, "(no paragraphs)")
	}
	return nil
}

// saveAudio decodes a base64 data URI and writes it as <dir>/<index>.<ext>.
func saveAudio(dir string, index int, dataURI string) (string, error) {
	header, payload, ok := strings.Cut(dataURI, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", fmt.Errorf("paragraph %d: audio is not a base64 data URI", index)
	}
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("paragraph %d: decode audio: %w", index, err)
	}
	ext := "mp3"
	if strings.Contains(header, "ogg") {
		ext = "ogg"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%03d.%s", index, ext))
	return path, os.WriteFile(path, audio, 0o644)
}
