package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
)

const (
	colorRed   = 16711680 // #FF0000
	colorGreen = 65280    // #00FF00

	discordUsername = "Sitepulse Monitor"
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
}

type discordRequest struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

type Discord struct {
	Webhook string
	Client  *http.Client
}

// NewDiscord returns nil when no webhook is configured.
func NewDiscord(webhook string) *Discord {
	if webhook == "" {
		return nil
	}
	return &Discord{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func embedFor(ws domain.WorkspaceID, p domain.AlertPayload) discordEmbed {
	e := discordEmbed{
		Title:     Title(p),
		Color:     colorRed,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields:    []discordField{{Name: "URL", Value: p.SiteURL, Inline: false}},
	}
	if p.Status == domain.StatusUp {
		e.Color = colorGreen
		e.Description = fmt.Sprintf("**%s** is back to normal operation.", p.SiteName)
	} else {
		e.Description = fmt.Sprintf("**%s** is not responding correctly.", p.SiteName)
	}
	if p.StatusCode != nil {
		e.Fields = append(e.Fields, discordField{Name: "HTTP", Value: strconv.Itoa(*p.StatusCode), Inline: true})
	}
	if p.ErrorMessage != nil {
		e.Fields = append(e.Fields, discordField{Name: "Error", Value: *p.ErrorMessage})
	}
	if p.Diagnosis != nil {
		e.Fields = append(e.Fields, discordField{Name: "Likely cause", Value: *p.Diagnosis})
	}
	if p.DowntimeSeconds != nil {
		e.Fields = append(e.Fields, discordField{Name: "Downtime", Value: (time.Duration(*p.DowntimeSeconds) * time.Second).String(), Inline: true})
	}
	if ws != "" {
		e.Fields = append(e.Fields, discordField{Name: "Workspace", Value: string(ws), Inline: true})
	}
	return e
}

// Send posts an embed. With an attachment the request becomes multipart,
// carrying the JSON under payload_json and the file under files[0].
func (d *Discord) Send(ctx context.Context, ws domain.WorkspaceID, p domain.AlertPayload, a *domain.Attachment) error {
	if d == nil || d.Webhook == "" {
		return errors.New("discord disabled")
	}
	payload, err := json.Marshal(discordRequest{Username: discordUsername, Embeds: []discordEmbed{embedFor(ws, p)}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	var (
		body        io.Reader = bytes.NewReader(payload)
		contentType           = "application/json"
	)
	if a != nil && len(a.Data) > 0 {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		if err := mw.WriteField("payload_json", string(payload)); err != nil {
			return fmt.Errorf("discord multipart: %w", err)
		}
		fw, err := mw.CreateFormFile("files[0]", a.Filename)
		if err != nil {
			return fmt.Errorf("discord multipart: %w", err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return fmt.Errorf("discord multipart: %w", err)
		}
		if err := mw.Close(); err != nil {
			return fmt.Errorf("discord multipart: %w", err)
		}
		body, contentType = buf, mw.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Webhook, body)
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
