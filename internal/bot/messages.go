package bot

import (
	"errors"
	"fmt"
	"time"
)

// User-facing messages, in the bot's voice.
const (
	msgDisabled        = "❌ IA está desativada pelo dono."
	msgEmptyPrompt     = "Me diga o que você quer perguntar."
	msgQuotaExceeded   = "⏳ Limite de %d perguntas atingido. Tente novamente em %s."
	msgLowQuota        = "⚠️ Restam apenas %d perguntas nesta janela."
	msgCompletionError = "Erro: %v"
	msgEmptyReply      = "A IA não retornou nada desta vez. Tente de novo."
)

// failureMessage converts a pipeline error into the single message the user
// sees; nothing from the taxonomy escapes as a raw error.
func failureMessage(err error, quota int, retryAfter time.Duration) string {
	switch {
	case errors.Is(err, ErrDisabled):
		return msgDisabled
	case errors.Is(err, ErrEmptyPrompt):
		return msgEmptyPrompt
	case errors.Is(err, ErrQuotaExceeded):
		return fmt.Sprintf(msgQuotaExceeded, quota, formatWait(retryAfter))
	default:
		return fmt.Sprintf(msgCompletionError, err)
	}
}
