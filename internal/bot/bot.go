package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const failedReply = "Something went wrong! It seems that link wasn't added to your bookmarks. Check your link and try again."

// BookmarkCreator is the part of APIClient the handlers need.
type BookmarkCreator interface {
	CreateBookmark(ctx context.Context, telegramID, url string) (string, error)
}

// IsLink reports whether a message should be saved as a bookmark.
func IsLink(text string) bool {
	t := strings.ToLower(strings.TrimLeft(text, " \t\r\n"))
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}

func helpReply(chatID int64) string {
	return fmt.Sprintf("Send me a link to create new bookmark.\n\nYour Telegram user ID is: %d\n\n"+
		"Set your ID in your user's profile to add links sent to me to your bookmarks.", chatID)
}

// Handler answers chat messages.
type Handler struct {
	api BookmarkCreator
}

func NewHandler(api BookmarkCreator) *Handler {
	return &Handler{api: api}
}

// Reply returns the text to send back for msg.
func (h *Handler) Reply(ctx context.Context, msg *models.Message) string {
	logger := log.With().Int64("chat_id", msg.Chat.ID).Logger()
	if msg.From != nil {
		logger = logger.With().Str("username", msg.From.Username).Int64("user_id", msg.From.ID).Logger()
	}
	logger.Info().Str("text", msg.Text).Msg("Message received")

	if !IsLink(msg.Text) {
		return helpReply(msg.Chat.ID)
	}

	stored, err := h.api.CreateBookmark(ctx, strconv.FormatInt(msg.Chat.ID, 10), strings.TrimSpace(msg.Text))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to add link")
		return failedReply
	}
	logger.Info().Str("url", stored).Msg("Link added")
	return "Added link: " + stored
}

func (h *Handler) handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	noPreview := true
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:              update.Message.Chat.ID,
		Text:                h.Reply(ctx, update.Message),
		DisableNotification: true,
		LinkPreviewOptions:  &models.LinkPreviewOptions{IsDisabled: &noPreview},
	})
	if err != nil {
		log.Error().Err(err).Int64("chat_id", update.Message.Chat.ID).Msg("Failed to send reply")
	}
}

// New creates a polling bot whose every text message goes through h.
func New(token string, h *Handler, opts ...tgbot.Option) (*tgbot.Bot, error) {
	opts = append([]tgbot.Option{tgbot.WithDefaultHandler(h.handle)}, opts...)
	b, err := tgbot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, nil
}
