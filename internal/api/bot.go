package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "fabric-qc/internal/application"
	"fabric-qc/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я слежу за линией контроля ткани.

🔔 Вы подписаны на уведомления о дефектах.

📋 Команды:
/detect on|off - включить или выключить детекцию
/count - дефекты за текущую сессию
/help - справка`

	msgHelp = `ℹ️ Управление детекцией:

/start - подписаться на уведомления
/stop - отписаться
/detect on|off - включить или выключить анализ кадров
/count - число дефектов за сессию
/qcwait <мс> - пауза после кадра без дефекта
/defectwait <мс> - пауза после кадра с дефектом
/reset - начать новую сессию

📸 Можно прислать фото полотна: бот вернёт его с разметкой.`

	msgStopped         = "🔕 Уведомления выключены. /start чтобы включить снова."
	msgDetectUsage     = "Использование: /detect on или /detect off"
	msgDetectOn        = "▶️ Детекция включена."
	msgDetectOff       = "⏸ Детекция выключена, кадры проходят без анализа."
	msgWaitUsage       = "Укажите паузу в миллисекундах, например /%s 5000"
	msgReset           = "🔄 Начата новая сессия, счётчики сброшены."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendPhoto       = "📸 Отправьте фото полотна или команду из /help."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgUnavailable     = "⚠️ Конвейер недоступен, попробуйте позже."
	msgModelNotReady   = "⏳ Модель ещё загружается, попробуйте позже."
)

// botAPI часть tgbotapi.BotAPI, которой пользуется бот.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Bot управляет детекцией через Telegram и рассылает события подписчикам
type Bot struct {
	api         botAPI
	token       string
	subscribers *app.SubscriberService
	worker      *app.FrameWorker
	http        *http.Client
}

// NewBot создаёт нового бота
func NewBot(token string, subscribers *app.SubscriberService, worker *app.FrameWorker) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return newBot(api, token, subscribers, worker), nil
}

func newBot(api botAPI, token string, subscribers *app.SubscriberService, worker *app.FrameWorker) *Bot {
	return &Bot{
		api:         api,
		token:       token,
		subscribers: subscribers,
		worker:      worker,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// Run запускает основной цикл обработки сообщений до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// Notify рассылает события всем подписанным чатам, пока открыт канал
func (b *Bot) Notify(ctx context.Context, events <-chan entity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			b.broadcast(ctx, formatEvent(e))
		}
	}
}

func (b *Bot) broadcast(ctx context.Context, text string) {
	subscribers, err := b.subscribers.ListSubscribed(ctx)
	if err != nil {
		log.Printf("Error listing subscribers: %v", err)
		return
	}
	for _, s := range subscribers {
		b.sendMessage(s.ChatID, text)
	}
}

func formatEvent(e entity.Event) string {
	text := fmt.Sprintf("🚨 Обнаружен дефект! Всего за сессию: %d", e.Total)
	if len(e.PerClass) > 0 {
		text += "\n" + e.Summary
	}
	return text + "\n🕒 " + e.At.Format("15:04:05")
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if _, err := b.subscribers.Get(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		log.Printf("Error getting subscriber: %v", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, b.handleCommand(ctx, msg))
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand выполняет команду и возвращает текст ответа
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) string {
	switch msg.Command() {
	case "start":
		if _, err := b.subscribers.Subscribe(ctx, msg.From.ID, msg.Chat.ID); err != nil {
			log.Printf("Error subscribing: %v", err)
		}
		return msgStart

	case "stop":
		if _, err := b.subscribers.Unsubscribe(ctx, msg.From.ID, msg.Chat.ID); err != nil {
			log.Printf("Error unsubscribing: %v", err)
		}
		return msgStopped

	case "help":
		return msgHelp

	case "detect":
		var enabled bool
		switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
		case "on":
			enabled = true
		case "off":
		default:
			return msgDetectUsage
		}
		if err := b.worker.Do(ctx, func(p *app.Pipeline) { p.SetDetectionEnabled(enabled) }); err != nil {
			return msgUnavailable
		}
		if enabled {
			return msgDetectOn
		}
		return msgDetectOff

	case "count":
		var snap app.Snapshot
		if err := b.worker.Do(ctx, func(p *app.Pipeline) { snap = p.Snapshot() }); err != nil {
			return msgUnavailable
		}
		return formatCount(snap)

	case "qcwait", "defectwait":
		return b.setWait(ctx, msg.Command(), msg.CommandArguments())

	case "reset":
		if err := b.worker.Do(ctx, func(p *app.Pipeline) { p.Reset() }); err != nil {
			return msgUnavailable
		}
		return msgReset

	default:
		return msgUnknownCommand
	}
}

func formatCount(s app.Snapshot) string {
	text := fmt.Sprintf("📊 Дефектов за сессию: %d", s.TotalDefects)
	if len(s.PerClass) > 0 {
		text += "\n" + entity.FormatCounts(s.PerClass)
	}
	if s.LastStatus != "" {
		text += "\nПоследний кадр: " + s.LastStatus
	}
	if !s.DetectionEnabled {
		text += "\n⏸ Детекция выключена"
	}
	return text
}

// setWait меняет одну из пауз. Без аргумента возвращает текущее значение.
func (b *Bot) setWait(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)
	var current time.Duration
	err := b.worker.Do(ctx, func(p *app.Pipeline) {
		pacing := p.Pacing()
		if args == "" {
			current = waitOf(pacing, command)
			return
		}
		ms, convErr := strconv.Atoi(args)
		if convErr != nil || ms < 0 {
			current = -1
			return
		}
		current = time.Duration(ms) * time.Millisecond
		if command == "qcwait" {
			pacing.CooldownAfterPass = current
		} else {
			pacing.CooldownAfterDefect = current
		}
		p.SetPacing(pacing)
	})
	if err != nil {
		return msgUnavailable
	}
	if current < 0 {
		return fmt.Sprintf(msgWaitUsage, command)
	}
	return fmt.Sprintf("⏱ /%s: %d мс", command, current.Milliseconds())
}

func waitOf(p entity.PacingConfig, command string) time.Duration {
	if command == "qcwait" {
		return p.CooldownAfterPass
	}
	return p.CooldownAfterDefect
}

// handlePhoto прогоняет фото через конвейер и возвращает размеченный кадр
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	b.inspectPhoto(ctx, msg.Chat.ID, imageData)
}

// inspectPhoto размечает снимок оператора. Сессия камеры не затрагивается.
func (b *Bot) inspectPhoto(ctx context.Context, chatID int64, imageData []byte) {
	var (
		out        []byte
		result     *entity.DetectionResult
		inspectErr error
	)
	err := b.worker.Do(ctx, func(p *app.Pipeline) {
		out, result, inspectErr = p.Inspect(ctx, imageData)
	})
	if err == nil {
		err = inspectErr
	}
	if err != nil {
		log.Printf("Error processing photo: %v", err)
		switch {
		case errors.Is(err, app.ErrWorkerStopped):
			b.sendMessage(chatID, msgUnavailable)
		case errors.Is(err, entity.ErrNotReady):
			b.sendMessage(chatID, msgModelNotReady)
		default:
			b.sendMessage(chatID, msgProcessingError)
		}
		return
	}

	reply := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "frame.jpg", Bytes: out})
	reply.Caption = result.Status()
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("Error sending photo: %v", err)
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
