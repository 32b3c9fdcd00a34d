package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	"DebtorBot/internal/contracts"
	"DebtorBot/internal/phone"
	"DebtorBot/internal/services"
)

// MessageProcessor обрабатывает сообщения Telegram бота
type MessageProcessor struct {
	users   contracts.UserRepository
	balance contracts.BalanceLookup
}

// NewMessageProcessor создает новый обработчик сообщений
func NewMessageProcessor(users contracts.UserRepository, balance contracts.BalanceLookup) *MessageProcessor {
	return &MessageProcessor{
		users:   users,
		balance: balance,
	}
}

// ProcessMessage обрабатывает входящее сообщение
func (p *MessageProcessor) ProcessMessage(client *TelegramClient, update Update) error {
	if update.CallbackQuery != nil {
		return p.processCallback(client, update.CallbackQuery)
	}

	if update.Message == nil {
		return nil
	}
	msg := update.Message
	chatID := msg.Chat.ID

	if msg.Contact != nil {
		return p.processContact(client, msg)
	}

	user, err := p.users.GetByTelegramID(int64(msg.From.ID))
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка получения пользователя: %v", err)
	}

	lang := "ru"
	if user != nil {
		lang = user.Language
	} else if msg.From.LanguageCode == "en" {
		lang = "en"
	}

	command := msg.Text
	if i := strings.Index(command, "@"); i > 0 && strings.HasPrefix(command, "/") {
		command = command[:i]
	}

	switch command {
	case "/start":
		return p.processStart(client, chatID, user, lang)
	case "/balance":
		return p.processBalance(client, chatID, user, lang)
	case "/language":
		_, err := client.SendMessageWithKeyboard(chatID, "Выберите язык / Choose a language:", makeLanguageKeyboard())
		return err
	case "/stop":
		return p.setActive(client, chatID, user, lang, false)
	case "/resume":
		return p.setActive(client, chatID, user, lang, true)
	default:
		// прочие сообщения игнорируем
		return nil
	}
}

// processStart обрабатывает команду /start
func (p *MessageProcessor) processStart(client *TelegramClient, chatID int64, user *contracts.BotUser, lang string) error {
	if user != nil {
		text := fmt.Sprintf("С возвращением, %s! Ваш номер %s уже зарегистрирован.\nКоманды: /balance — ваш баланс, /language — язык, /stop — отключить напоминания.",
			contracts.FullName(user), user.Phone)
		if lang == "en" {
			text = fmt.Sprintf("Welcome back, %s! Your number %s is already registered.\nCommands: /balance — your balance, /language — language, /stop — disable reminders.",
				contracts.FullName(user), user.Phone)
		}
		return p.sendMessage(client, chatID, text)
	}

	text := "Здравствуйте! Это бот напоминаний о задолженности.\nЧтобы зарегистрироваться, поделитесь своим номером телефона кнопкой ниже."
	if lang == "en" {
		text = "Hello! This is the debt reminder bot.\nTo register, share your phone number with the button below."
	}
	_, err := client.SendMessageWithReplyKeyboard(chatID, text, makeContactKeyboard(lang))
	return err
}

// processContact обрабатывает переданный контакт: нормализует номер
// и регистрирует пользователя
func (p *MessageProcessor) processContact(client *TelegramClient, msg *Message) error {
	chatID := msg.Chat.ID

	// Принимаем только собственный контакт пользователя
	if msg.Contact.UserID != 0 && msg.Contact.UserID != int64(msg.From.ID) {
		return p.sendErrorMessage(client, chatID, "Пожалуйста, отправьте свой собственный контакт")
	}

	normalized, err := phone.Normalize(msg.Contact.PhoneNumber)
	if err != nil {
		return p.sendErrorMessage(client, chatID, fmt.Sprintf("не удалось распознать номер %q", msg.Contact.PhoneNumber))
	}

	name := strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
	lang := "ru"
	if msg.From.LanguageCode == "en" {
		lang = "en"
	}

	user := &contracts.BotUser{
		TelegramID: int64(msg.From.ID),
		Phone:      normalized,
		Name:       name,
		IsActive:   true,
		Language:   lang,
	}
	if err := p.users.Save(user); err != nil {
		log.Printf("[MessageProcessor] Ошибка регистрации пользователя: %v", err)
		return p.sendErrorMessage(client, chatID, "не удалось сохранить регистрацию, попробуйте позже")
	}

	text := fmt.Sprintf("✅ Номер %s зарегистрирован. Напоминания о задолженности включены.", normalized)
	if lang == "en" {
		text = fmt.Sprintf("✅ Number %s registered. Debt reminders are enabled.", normalized)
	}
	_, err = client.SendMessageRemoveKeyboard(chatID, text)
	return err
}

// processBalance сообщает пользователю его текущий баланс
func (p *MessageProcessor) processBalance(client *TelegramClient, chatID int64, user *contracts.BotUser, lang string) error {
	if user == nil {
		return p.sendMessage(client, chatID, "Сначала зарегистрируйтесь командой /start")
	}

	balance, err := p.balance.Lookup(context.Background(), user.Phone, true)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка поиска баланса: %v", err)
	}
	if balance == nil {
		text := "По вашему номеру не найден контрагент. Обратитесь к менеджеру."
		if lang == "en" {
			text = "No counterparty found for your number. Please contact your manager."
		}
		return p.sendMessage(client, chatID, text)
	}

	var text string
	switch balance.Status {
	case contracts.StatusDebtor:
		text = fmt.Sprintf("У вас задолженность %s ₽.", services.FormatAmount(-balance.Balance))
		if lang == "en" {
			text = fmt.Sprintf("You owe %s ₽.", services.FormatAmount(-balance.Balance))
		}
	case contracts.StatusCreditor:
		text = fmt.Sprintf("На вашем счету переплата %s ₽.", services.FormatAmount(balance.Balance))
		if lang == "en" {
			text = fmt.Sprintf("You have a credit of %s ₽.", services.FormatAmount(balance.Balance))
		}
	default:
		text = "Задолженности нет. Спасибо!"
		if lang == "en" {
			text = "No outstanding balance. Thank you!"
		}
	}
	return p.sendMessage(client, chatID, text)
}

// setActive включает или выключает напоминания для пользователя
func (p *MessageProcessor) setActive(client *TelegramClient, chatID int64, user *contracts.BotUser, lang string, active bool) error {
	if user == nil {
		return p.sendMessage(client, chatID, "Сначала зарегистрируйтесь командой /start")
	}

	user.IsActive = active
	if err := p.users.Save(user); err != nil {
		log.Printf("[MessageProcessor] Ошибка обновления пользователя: %v", err)
		return p.sendErrorMessage(client, chatID, "не удалось сохранить изменение")
	}

	var text string
	if active {
		text = "Напоминания включены."
		if lang == "en" {
			text = "Reminders enabled."
		}
	} else {
		text = "Напоминания отключены. Включить снова: /resume"
		if lang == "en" {
			text = "Reminders disabled. Re-enable with /resume"
		}
	}
	return p.sendMessage(client, chatID, text)
}

// processCallback обрабатывает нажатия inline-кнопок
func (p *MessageProcessor) processCallback(client *TelegramClient, cq *CallbackQuery) error {
	if !strings.HasPrefix(cq.Data, "lang_") {
		return nil
	}

	lang := strings.TrimPrefix(cq.Data, "lang_")
	if lang != "ru" && lang != "en" {
		return nil
	}

	user, err := p.users.GetByTelegramID(int64(cq.From.ID))
	if err != nil || user == nil {
		if _, err := client.AnswerCallbackQuery(cq.ID, "Сначала зарегистрируйтесь: /start"); err != nil {
			log.Printf("[MessageProcessor] Ошибка ответа на callback: %v", err)
		}
		return nil
	}

	user.Language = lang
	if err := p.users.Save(user); err != nil {
		log.Printf("[MessageProcessor] Ошибка смены языка: %v", err)
		return err
	}

	confirmation := "Язык переключён на русский"
	if lang == "en" {
		confirmation = "Language switched to English"
	}
	if _, err := client.AnswerCallbackQuery(cq.ID, confirmation); err != nil {
		log.Printf("[MessageProcessor] Ошибка ответа на callback: %v", err)
	}
	return nil
}
