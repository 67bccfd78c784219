package bot

// User-facing reply templates. Wording is presentation, not contract: the
// handlers only guarantee which template is used for which event.
const (
	greetingTemplate = "Здравствуйте, %s! 👋\n\nЯ бот-ассистент для консультаций. Напишите мне текстовое сообщение, и я отвечу вам."

	// Clear is always confirmed, whether or not anything existed.
	clearConfirmation = "История диалога очищена. Можете начать новый разговор."

	// Shown on completion exhaustion; provider error text never reaches the user.
	completionApology = "Извините, сейчас не получается ответить. Попробуйте, пожалуйста, написать ещё раз чуть позже."

	nonTextRejection = "Контент не распознан. Пожалуйста, напишите текстовое сообщение."
)
