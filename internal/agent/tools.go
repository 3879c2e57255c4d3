package agent

import (
	"github.com/openai/openai-go"
	"github.com/zapfunnel/zapfunnel/internal/models"
)

// toolDefinitions maps each action to its OpenAI function declaration. The
// dispatcher exposes only the subset allowed by the active profile.
var toolDefinitions = map[models.ActionType]openai.ChatCompletionToolParam{
	models.ActionApplyTag: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionApplyTag),
			Description: openai.String("Aplica uma tag ao lead para segmentação."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"tag": map[string]interface{}{
						"type":        "string",
						"description": "Nome da tag, por exemplo interessado-mentoria.",
					},
				},
				"required": []string{"tag"},
			},
		},
	},
	models.ActionMoveToQueue: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionMoveToQueue),
			Description: openai.String("Move o lead para outra fila de atendimento."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"queue": map[string]interface{}{
						"type": "string",
						"enum": []string{
							string(models.QueuePreSales), string(models.QueueCheckout),
							string(models.QueuePostSales), string(models.QueueSupport),
							string(models.QueueRetention), string(models.QueueHuman),
						},
					},
				},
				"required": []string{"queue"},
			},
		},
	},
	models.ActionTransferToSupport: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionTransferToSupport),
			Description: openai.String("Transfere o lead para o suporte técnico e abre um ticket."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"issue": map[string]interface{}{
						"type":        "string",
						"description": "Descrição do problema relatado.",
					},
				},
				"required": []string{"issue"},
			},
		},
	},
	models.ActionEscalateToHuman: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionEscalateToHuman),
			Description: openai.String("Encaminha a conversa para um atendente humano e pausa a automação."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"reason": map[string]interface{}{
						"type":        "string",
						"description": "Motivo do encaminhamento.",
					},
				},
				"required": []string{"reason"},
			},
		},
	},
	models.ActionResolveTicket: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionResolveTicket),
			Description: openai.String("Resolve o ticket aberto e devolve o lead ao pós-venda."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"solution": map[string]interface{}{
						"type":        "string",
						"description": "Resumo da solução aplicada.",
					},
				},
				"required": []string{"solution"},
			},
		},
	},
	models.ActionUpdateTicket: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionUpdateTicket),
			Description: openai.String("Atualiza o status do ticket aberto."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"status": map[string]interface{}{
						"type": "string",
						"enum": []string{
							string(models.TicketStatusOpen), string(models.TicketStatusInProgress),
							string(models.TicketStatusWaiting), string(models.TicketStatusResolved),
						},
					},
				},
				"required": []string{"status"},
			},
		},
	},
	models.ActionSendCampaign: {
		Function: openai.FunctionDefinitionParam{
			Name:        string(models.ActionSendCampaign),
			Description: openai.String("Registra o envio de uma campanha de acompanhamento para o lead."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"campaignType": map[string]interface{}{
						"type":        "string",
						"description": "Tipo da campanha, por exemplo onboarding ou upsell.",
					},
				},
				"required": []string{"campaignType"},
			},
		},
	},
}

// toolsForProfile returns the tool declarations for a profile's allow-list.
func toolsForProfile(p Profile) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(p.AllowedActions))
	for _, action := range p.AllowedActions {
		if def, ok := toolDefinitions[action]; ok {
			tools = append(tools, def)
		}
	}
	return tools
}
