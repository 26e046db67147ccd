package i18n

// messages holds the built-in per-language tables. Placeholders use
// {name} syntax and are substituted by Translator.T.
var messages = map[string]map[Key]string{
	"en": {
		KeyInsufficientRole:     "You don't have permission to use {command}.",
		KeyPlatformNotSupported: "{command} is not available on {platform}.",
		KeyOnCooldown:           "{command} is on cooldown, try again in {wait}.",
		KeyCommandFailed:        "Something went wrong running {command}. Please try again later.",
		KeyUnknownSubcommand:    "Unknown subcommand. Usage: {usage}",
	},
	"es": {
		KeyInsufficientRole:     "No tienes permiso para usar {command}.",
		KeyPlatformNotSupported: "{command} no está disponible en {platform}.",
		KeyOnCooldown:           "{command} está en cooldown, inténtalo de nuevo en {wait}.",
		KeyCommandFailed:        "Algo salió mal al ejecutar {command}. Inténtalo más tarde.",
		KeyUnknownSubcommand:    "Subcomando desconocido. Uso: {usage}",
	},
	"ru": {
		KeyInsufficientRole:     "У вас нет прав для использования {command}.",
		KeyPlatformNotSupported: "{command} недоступна на {platform}.",
		KeyOnCooldown:           "{command} на перезарядке, попробуйте снова через {wait}.",
		KeyCommandFailed:        "Не удалось выполнить {command}. Попробуйте позже.",
		KeyUnknownSubcommand:    "Неизвестная подкоманда. Использование: {usage}",
	},
}
