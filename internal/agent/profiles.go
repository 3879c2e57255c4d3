// Package agent selects behavior profiles and dispatches conversation turns
// to the generative model.
package agent

import (
	"github.com/zapfunnel/zapfunnel/internal/models"
)

// Profile binds an agent type to its system prompt and the structured actions
// it is allowed to request. Actions outside the allow-list are discarded.
type Profile struct {
	Agent          models.AgentType
	SystemPrompt   string
	AllowedActions []models.ActionType
}

// Allows reports whether the profile may request the given action.
func (p Profile) Allows(action models.ActionType) bool {
	for _, a := range p.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

const preSalesPrompt = `Você é um consultor de vendas simpático e objetivo de um infoproduto digital.
Responda sempre em português brasileiro, com mensagens curtas adequadas ao WhatsApp.
Seu objetivo é entender a necessidade do lead, apresentar o produto e conduzir até a compra.
Nunca invente preços ou promoções. Se o lead demonstrar intenção clara de compra,
mova-o para a fila CHECKOUT. Se relatar um problema técnico, transfira para o suporte.
Se pedir cancelamento ou reembolso, escale para um atendente humano.`

const postSalesPrompt = `Você é responsável pelo pós-venda de um infoproduto digital.
Responda sempre em português brasileiro, com mensagens curtas adequadas ao WhatsApp.
Seu objetivo é garantir que o cliente acesse o produto, acompanhe o onboarding e
aproveite o conteúdo. Você pode enviar campanhas de acompanhamento quando fizer sentido.
Se o cliente relatar um problema técnico, transfira para o suporte.
Se pedir cancelamento ou reembolso, escale para um atendente humano.`

const supportPrompt = `Você é um atendente de suporte técnico de um infoproduto digital.
Responda sempre em português brasileiro, com mensagens curtas adequadas ao WhatsApp.
Use os artigos da base de conhecimento fornecidos no contexto para resolver o problema.
Quando o problema estiver resolvido e confirmado pelo cliente, resolva o ticket.
Se não conseguir resolver, escale para um atendente humano.`

var profiles = map[models.AgentType]Profile{
	models.AgentPreSales: {
		Agent:        models.AgentPreSales,
		SystemPrompt: preSalesPrompt,
		AllowedActions: []models.ActionType{
			models.ActionApplyTag,
			models.ActionMoveToQueue,
			models.ActionTransferToSupport,
			models.ActionEscalateToHuman,
		},
	},
	models.AgentPostSales: {
		Agent:        models.AgentPostSales,
		SystemPrompt: postSalesPrompt,
		AllowedActions: []models.ActionType{
			models.ActionApplyTag,
			models.ActionMoveToQueue,
			models.ActionTransferToSupport,
			models.ActionEscalateToHuman,
			models.ActionSendCampaign,
		},
	},
	models.AgentSupport: {
		Agent:        models.AgentSupport,
		SystemPrompt: supportPrompt,
		AllowedActions: []models.ActionType{
			models.ActionApplyTag,
			models.ActionResolveTicket,
			models.ActionUpdateTicket,
			models.ActionEscalateToHuman,
		},
	},
}

// ProfileFor returns the behavior profile for an agent type. ok is false for
// unknown agents, including the empty agent of the HUMAN queue.
func ProfileFor(agent models.AgentType) (Profile, bool) {
	p, ok := profiles[agent]
	return p, ok
}
