package telegram

import (
	"log"
)

// sendMessage отправляет обычное сообщение
func (p *MessageProcessor) sendMessage(client *TelegramClient, chatID int64, text string) error {
	_, err := client.SendMessage(chatID, text, "")
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки сообщения: %v", err)
	}
	return err
}

// sendMessageHTML отправляет сообщение с HTML разметкой
func (p *MessageProcessor) sendMessageHTML(client *TelegramClient, chatID int64, text string) error {
	_, err := client.SendMessageHTML(chatID, text)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки HTML сообщения: %v", err)
	}
	return err
}

// sendErrorMessage отправляет сообщение об ошибке
func (p *MessageProcessor) sendErrorMessage(client *TelegramClient, chatID int64, text string) error {
	errorMessage := "❌ <b>Ошибка:</b> " + text
	return p.sendMessageHTML(client, chatID, errorMessage)
}

// makeContactKeyboard возвращает reply-клавиатуру с запросом контакта
func makeContactKeyboard(lang string) *ReplyKeyboardMarkup {
	text := "📱 Поделиться номером"
	if lang == "en" {
		text = "📱 Share phone number"
	}
	return &ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{
				{Text: text, RequestContact: true},
			},
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// makeLanguageKeyboard возвращает inline-клавиатуру выбора языка
func makeLanguageKeyboard() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "🇷🇺 Русский", CallbackData: "lang_ru"},
				{Text: "🇬🇧 English", CallbackData: "lang_en"},
			},
		},
	}
}
