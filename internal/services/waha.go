package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"restopay_app/internal/config"
	"restopay_app/internal/invoice"
)

// WahaService sends WhatsApp messages through a WAHA gateway
type WahaService struct {
	baseURL     string
	apiKey      string
	countryCode string
	typingDelay time.Duration
	client      *http.Client
}

func NewWahaService(cfg config.WahaConfig) *WahaService {
	return &WahaService{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		countryCode: cfg.CountryCode,
		typingDelay: 150 * time.Millisecond,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) wait(ctx context.Context) error {
	if s.typingDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.typingDelay):
		return nil
	}
}

// NormalizeChatID adds the WhatsApp suffix and swaps a leading trunk 0 for the country code
func NormalizeChatID(chatID, countryCode string) string {
	chatID = strings.TrimSpace(chatID)

	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(chatID)
	chatID = strings.TrimPrefix(chatID, "+")

	if strings.HasPrefix(chatID, "0") && countryCode != "" {
		chatID = countryCode + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage sends text after a short typing indicator
func (s *WahaService) SendMessage(ctx context.Context, phone, text string) error {
	chatID := NormalizeChatID(phone, s.countryCode)

	if err := s.makeRequest(ctx, http.MethodPost, "/api/startTyping", map[string]string{
		"chatId":  chatID,
		"session": "default",
	}); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err := s.makeRequest(ctx, http.MethodPost, "/api/stopTyping", map[string]string{
		"chatId":  chatID,
		"session": "default",
	}); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}

	if err := s.makeRequest(ctx, http.MethodPost, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": "default",
	}); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// SendDocument delivers a rendered invoice as a WhatsApp file message
func (s *WahaService) SendDocument(ctx context.Context, phone, caption, filename string, doc *invoice.Document) error {
	chatID := NormalizeChatID(phone, s.countryCode)

	mimetype := doc.ContentType
	if i := strings.Index(mimetype, ";"); i >= 0 {
		mimetype = mimetype[:i]
	}

	payload := map[string]interface{}{
		"chatId":  chatID,
		"session": "default",
		"caption": caption,
		"file": map[string]string{
			"mimetype": mimetype,
			"filename": filename,
			"data":     doc.Base64(),
		},
	}
	if err := s.makeRequest(ctx, http.MethodPost, "/api/sendFile", payload); err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}
	return nil
}
