// Package telegram implements a Telegram capture channel: messages sent
// to the bot are ingested into the content store under a per-chat user id.
package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"orbit/internal/channels"
	"orbit/internal/store"
)

// userIDPrefix namespaces Telegram chats inside the store.
const userIDPrefix = "tg_"

const maxDownloadBytes = 20 << 20 // Telegram bot API file limit

// botAPI abstracts the Telegram bot methods used by the adapter, enabling
// testing with mocks.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Adapter implements the ChannelAdapter interface for Telegram
type Adapter struct {
	id        string
	name      string
	bot       botAPI
	config    Config
	content   *store.ContentStore
	client    *http.Client
	status    channels.StatusCode
	statusMsg string
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.RWMutex
	startTime time.Time
	msgCount  int64
}

// Config contains Telegram-specific configuration
type Config struct {
	BotToken string
	Debug    bool
}

// Factory creates Telegram channel adapters
type Factory struct {
	content *store.ContentStore
}

// NewFactory creates a new Telegram adapter factory capturing into the
// given store.
func NewFactory(content *store.ContentStore) *Factory {
	return &Factory{content: content}
}

// SupportsType returns whether this factory supports the given adapter type
func (f *Factory) SupportsType(adapterType string) bool {
	return adapterType == "telegram"
}

// GetSupportedTypes returns the adapter types this factory supports
func (f *Factory) GetSupportedTypes() []string {
	return []string{"telegram"}
}

// CreateAdapter creates a new Telegram adapter instance
func (f *Factory) CreateAdapter(config channels.ChannelConfig) (channels.ChannelAdapter, error) {
	token := config.Config["bot_token"]
	if token == "" {
		return nil, fmt.Errorf("bot_token is required for Telegram adapter")
	}

	return &Adapter{
		id:      config.ID,
		name:    config.Name,
		config:  Config{BotToken: token, Debug: config.Config["debug"] == "true"},
		content: f.content,
		client:  &http.Client{Timeout: 60 * time.Second},
		status:  channels.StatusInitializing,
	}, nil
}

// ID returns the adapter's unique identifier
func (a *Adapter) ID() string { return a.id }

// Name returns the adapter's human-readable name
func (a *Adapter) Name() string { return a.name }

// Type returns the adapter type
func (a *Adapter) Type() string { return "telegram" }

// Start initializes and starts the Telegram bot
func (a *Adapter) Start(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.ctx, a.cancel = context.WithCancel(ctx)
	a.status = channels.StatusInitializing
	a.statusMsg = "Starting Telegram bot"
	a.startTime = time.Now()

	opts := []bot.Option{
		bot.WithDefaultHandler(a.handleUpdate),
	}
	if a.config.Debug {
		opts = append(opts, bot.WithDebug())
	}

	telegramBot, err := bot.New(a.config.BotToken, opts...)
	if err != nil {
		a.status = channels.StatusError
		a.statusMsg = fmt.Sprintf("Failed to create bot: %v", err)
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.bot = telegramBot

	go func() {
		defer func() {
			a.mutex.Lock()
			a.status = channels.StatusOffline
			a.statusMsg = "Bot stopped"
			a.mutex.Unlock()
		}()

		a.mutex.Lock()
		a.status = channels.StatusOnline
		a.statusMsg = "Bot is running"
		a.mutex.Unlock()

		log.Printf("[Telegram] Bot started: %s", a.Name())
		a.bot.Start(a.ctx)
	}()

	return nil
}

// Stop gracefully shuts down the adapter
func (a *Adapter) Stop() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	a.status = channels.StatusOffline
	a.statusMsg = "Adapter stopped"

	log.Printf("[Telegram] Adapter stopped: %s", a.Name())
	return nil
}

// Status returns the current adapter status
func (a *Adapter) Status() channels.ChannelStatus {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return channels.ChannelStatus{
		Status:  a.status,
		Message: a.statusMsg,
		Details: map[string]interface{}{
			"message_count": a.msgCount,
			"uptime":        time.Since(a.startTime).String(),
		},
		Timestamp: time.Now(),
	}
}

// IsHealthy returns whether the adapter is functioning properly
func (a *Adapter) IsHealthy() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.status == channels.StatusOnline
}

// handleUpdate processes an incoming Telegram update and captures its
// content into the store.
func (a *Adapter) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	a.mutex.Lock()
	a.msgCount++
	a.mutex.Unlock()

	userID := fmt.Sprintf("%s%d", userIDPrefix, msg.Chat.ID)
	meta := map[string]any{"channel": "telegram"}

	var reply string
	switch {
	case len(msg.Photo) > 0:
		reply = a.capturePhoto(ctx, userID, msg, meta)
	case msg.Voice != nil:
		reply = a.captureAudioFile(ctx, userID, msg.Voice.FileID, msg.Voice.MimeType, meta)
	case msg.Audio != nil:
		reply = a.captureAudioFile(ctx, userID, msg.Audio.FileID, msg.Audio.MimeType, meta)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "audio/"):
		reply = a.captureAudioFile(ctx, userID, msg.Document.FileID, msg.Document.MimeType, meta)
	case msg.Text != "":
		reply = a.captureText(ctx, userID, msg.Text, meta)
	default:
		reply = "Nothing I can store in that message. Send text, a link, a photo, or WAV audio."
	}

	if _, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   reply,
	}); err != nil {
		log.Printf("[Telegram] Failed to send reply to chat %d: %v", msg.Chat.ID, err)
	}
}

func (a *Adapter) captureText(ctx context.Context, userID, text string, meta map[string]any) string {
	kind := store.KindText
	if isBareURL(text) {
		kind = store.KindLink
	}

	id, modality, err := a.content.Save(ctx, userID, kind, text, nil, meta)
	if err != nil {
		log.Printf("[Telegram] Save failed for %s: %v", userID, err)
		return "Could not save that: " + err.Error()
	}
	return fmt.Sprintf("Saved %s (%s)", shortID(id), modality)
}

func (a *Adapter) capturePhoto(ctx context.Context, userID string, msg *models.Message, meta map[string]any) string {
	// Telegram orders photo sizes ascending; take the largest rendition.
	photo := msg.Photo[len(msg.Photo)-1]

	raw, err := a.download(ctx, photo.FileID)
	if err != nil {
		log.Printf("[Telegram] Photo download failed for %s: %v", userID, err)
		return "Could not download that photo."
	}

	if msg.Caption != "" {
		meta["caption"] = msg.Caption
	}

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)
	id, _, err := a.content.Save(ctx, userID, store.KindImage, payload, nil, meta)
	if err != nil {
		log.Printf("[Telegram] Save failed for %s: %v", userID, err)
		return "Could not save that photo: " + err.Error()
	}
	return fmt.Sprintf("Saved %s (image)", shortID(id))
}

func (a *Adapter) captureAudioFile(ctx context.Context, userID, fileID, mimeType string, meta map[string]any) string {
	// The waveform pipeline understands PCM WAV. Telegram voice notes are
	// OGG/Opus, which we don't transcode.
	if mimeType != "audio/wav" && mimeType != "audio/x-wav" && mimeType != "audio/wave" {
		return fmt.Sprintf("Audio format %s is not supported yet; send WAV.", mimeType)
	}

	raw, err := a.download(ctx, fileID)
	if err != nil {
		log.Printf("[Telegram] Audio download failed for %s: %v", userID, err)
		return "Could not download that audio."
	}

	payload := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(raw)
	id, _, err := a.content.Save(ctx, userID, store.KindAudio, payload, nil, meta)
	if err != nil {
		log.Printf("[Telegram] Save failed for %s: %v", userID, err)
		return "Could not save that audio: " + err.Error()
	}
	return fmt.Sprintf("Saved %s (audio)", shortID(id))
}

// download fetches a Telegram file's bytes via the bot file API.
func (a *Adapter) download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := a.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

func isBareURL(text string) bool {
	if strings.ContainsAny(text, " \t\n") {
		return false
	}
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
