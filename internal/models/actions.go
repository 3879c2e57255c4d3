// Package models defines the structured action requests an agent may emit.
//
// A RequestedAction is a closed tagged union parsed from the model's function
// call output. It lives only for the duration of one turn: the action executor
// consumes it immediately and only its side effects are persisted.
package models

import (
	"encoding/json"
	"fmt"
)

// ActionType identifies one of the structured actions an agent can request.
type ActionType string

const (
	// ActionApplyTag applies a tag to the lead (idempotent).
	ActionApplyTag ActionType = "apply_tag"
	// ActionMoveToQueue moves the lead to another queue.
	ActionMoveToQueue ActionType = "move_to_queue"
	// ActionTransferToSupport moves the lead to SUPPORT and opens a ticket.
	ActionTransferToSupport ActionType = "transfer_to_support"
	// ActionEscalateToHuman hands the conversation to a human operator.
	ActionEscalateToHuman ActionType = "escalate_to_human"
	// ActionResolveTicket resolves the open ticket and returns the lead to POST_SALES.
	ActionResolveTicket ActionType = "resolve_ticket"
	// ActionUpdateTicket updates the status of the open ticket.
	ActionUpdateTicket ActionType = "update_ticket"
	// ActionSendCampaign sends a campaign message to the lead.
	ActionSendCampaign ActionType = "send_campaign"
)

// ErrUnknownAction is returned when the model requests an action name that is
// not part of the closed action set.
var ErrUnknownAction = fmt.Errorf("unknown action")

// ApplyTagParams carries the arguments of an apply_tag request.
type ApplyTagParams struct {
	Tag string `json:"tag"`
}

// Validate ensures the tag name is present.
func (p *ApplyTagParams) Validate() error {
	if p.Tag == "" {
		return fmt.Errorf("tag is required for apply_tag")
	}
	return nil
}

// MoveToQueueParams carries the arguments of a move_to_queue request.
type MoveToQueueParams struct {
	Queue QueueType `json:"queue"`
}

// Validate ensures the target queue is one of the enumerated values.
func (p *MoveToQueueParams) Validate() error {
	if !IsValidQueueType(p.Queue) {
		return fmt.Errorf("invalid queue %q for move_to_queue", p.Queue)
	}
	return nil
}

// TransferToSupportParams carries the arguments of a transfer_to_support request.
type TransferToSupportParams struct {
	Issue string `json:"issue"`
}

// Validate ensures the issue description is present.
func (p *TransferToSupportParams) Validate() error {
	if p.Issue == "" {
		return fmt.Errorf("issue is required for transfer_to_support")
	}
	return nil
}

// EscalateToHumanParams carries the arguments of an escalate_to_human request.
type EscalateToHumanParams struct {
	Reason string `json:"reason"`
}

// Validate ensures the escalation reason is present.
func (p *EscalateToHumanParams) Validate() error {
	if p.Reason == "" {
		return fmt.Errorf("reason is required for escalate_to_human")
	}
	return nil
}

// ResolveTicketParams carries the arguments of a resolve_ticket request.
type ResolveTicketParams struct {
	Solution string `json:"solution"`
}

// Validate ensures the solution description is present.
func (p *ResolveTicketParams) Validate() error {
	if p.Solution == "" {
		return fmt.Errorf("solution is required for resolve_ticket")
	}
	return nil
}

// UpdateTicketParams carries the arguments of an update_ticket request.
type UpdateTicketParams struct {
	Status TicketStatus `json:"status"`
}

// Validate ensures the status is one of the enumerated values.
func (p *UpdateTicketParams) Validate() error {
	if !IsValidTicketStatus(p.Status) {
		return fmt.Errorf("invalid status %q for update_ticket", p.Status)
	}
	return nil
}

// SendCampaignParams carries the arguments of a send_campaign request.
type SendCampaignParams struct {
	CampaignType string `json:"campaignType"`
}

// Validate ensures the campaign type is present.
func (p *SendCampaignParams) Validate() error {
	if p.CampaignType == "" {
		return fmt.Errorf("campaignType is required for send_campaign")
	}
	return nil
}

// RequestedAction is the structured side-effect request returned by an agent
// turn, distinct from its free-text reply. Exactly one variant field matching
// Type is set; unknown action names are rejected at parse time.
type RequestedAction struct {
	Type              ActionType               `json:"type"`
	ApplyTag          *ApplyTagParams          `json:"apply_tag,omitempty"`
	MoveToQueue       *MoveToQueueParams       `json:"move_to_queue,omitempty"`
	TransferToSupport *TransferToSupportParams `json:"transfer_to_support,omitempty"`
	EscalateToHuman   *EscalateToHumanParams   `json:"escalate_to_human,omitempty"`
	ResolveTicket     *ResolveTicketParams     `json:"resolve_ticket,omitempty"`
	UpdateTicket      *UpdateTicketParams      `json:"update_ticket,omitempty"`
	SendCampaign      *SendCampaignParams      `json:"send_campaign,omitempty"`
}

// ParseRequestedAction decodes a model function call into a RequestedAction.
// The name must be one of the closed action set and the arguments must
// validate, otherwise an error is returned and the caller discards the call.
func ParseRequestedAction(name string, arguments json.RawMessage) (*RequestedAction, error) {
	decode := func(v interface{ Validate() error }) error {
		if err := json.Unmarshal(arguments, v); err != nil {
			return fmt.Errorf("failed to parse %s arguments: %w", name, err)
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid %s arguments: %w", name, err)
		}
		return nil
	}

	action := &RequestedAction{Type: ActionType(name)}
	switch action.Type {
	case ActionApplyTag:
		p := &ApplyTagParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.ApplyTag = p
	case ActionMoveToQueue:
		p := &MoveToQueueParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.MoveToQueue = p
	case ActionTransferToSupport:
		p := &TransferToSupportParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.TransferToSupport = p
	case ActionEscalateToHuman:
		p := &EscalateToHumanParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.EscalateToHuman = p
	case ActionResolveTicket:
		p := &ResolveTicketParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.ResolveTicket = p
	case ActionUpdateTicket:
		p := &UpdateTicketParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.UpdateTicket = p
	case ActionSendCampaign:
		p := &SendCampaignParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		action.SendCampaign = p
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return action, nil
}

// TargetQueue returns the queue this action moves the lead to, if any.
func (a *RequestedAction) TargetQueue() (QueueType, bool) {
	switch a.Type {
	case ActionMoveToQueue:
		return a.MoveToQueue.Queue, true
	case ActionTransferToSupport:
		return QueueSupport, true
	case ActionEscalateToHuman:
		return QueueHuman, true
	case ActionResolveTicket:
		return QueuePostSales, true
	default:
		return "", false
	}
}
