package router

import (
	"strings"

	"github.com/zapfunnel/zapfunnel/internal/models"
)

// Keyword lists per queue, matched as case-insensitive substrings. HUMAN is
// scanned first so a cancellation request is never misread as buying intent,
// then SUPPORT, then CHECKOUT.
var keywordQueues = []struct {
	queue    models.QueueType
	keywords []string
}{
	{models.QueueHuman, []string{
		"cancelar", "reembolso", "devolução", "devolver", "falar com humano",
		"falar com atendente", "falar com uma pessoa",
	}},
	{models.QueueSupport, []string{
		"erro", "não funciona", "nao funciona", "problema", "bug", "travou",
		"não consigo acessar", "nao consigo acessar", "não carrega", "nao carrega",
	}},
	{models.QueueCheckout, []string{
		"comprar", "preço", "preco", "quanto custa", "valor", "pagamento",
		"parcelar", "pix", "boleto", "cupom",
	}},
}

// DetectQueue scans text for queue keywords and returns the first matching
// queue in precedence order. ok is false when no keyword matches.
func DetectQueue(text string) (models.QueueType, bool) {
	lower := strings.ToLower(text)
	for _, kq := range keywordQueues {
		for _, kw := range kq.keywords {
			if strings.Contains(lower, kw) {
				return kq.queue, true
			}
		}
	}
	return "", false
}
