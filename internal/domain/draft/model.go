package draft

import "encoding/json"

// HalfDaySlot of a leave request.
type HalfDaySlot string

const (
	HalfDayAll HalfDaySlot = "ALL"
	HalfDayAM  HalfDaySlot = "AM"
	HalfDayPM  HalfDaySlot = "PM"
)

// Source tells which path produced a draft.
type Source string

const (
	SourcePush   Source = "push"
	SourceStream Source = "stream"
)

type ApprovalStep struct {
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name"`
	ApprovalSeq  int    `json:"approval_seq"`
}

type CCEntry struct {
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// LeaveStatus is the balance snapshot shown next to the form.
type LeaveStatus struct {
	TotalDays     float64 `json:"total_days"`
	UsedDays      float64 `json:"used_days"`
	RemainingDays float64 `json:"remaining_days"`
	NextYearDays  float64 `json:"next_year_days"`
}

// DraftPanelInput pre-fills the leave request form. Dates are YYYY-MM-DD.
type DraftPanelInput struct {
	UserID           string         `json:"user_id"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
	LeaveType        string         `json:"leave_type"`
	Reason           string         `json:"reason"`
	HalfDaySlot      HalfDaySlot    `json:"half_day_slot"`
	ApprovalLine     []ApprovalStep `json:"approval_line"`
	CCList           []CCEntry      `json:"cc_list"`
	LeaveStatus      *LeaveStatus   `json:"leave_status,omitempty"`
	UseNextYearLeave bool           `json:"use_next_year_leave"`
	Source           Source         `json:"source"`
}

// ApprovalDraft is an opaque approval form payload keyed by its type.
type ApprovalDraft struct {
	ApprovalType string          `json:"approval_type"`
	Payload      json.RawMessage `json:"payload"`
}
