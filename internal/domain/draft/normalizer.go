package draft

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"assistantportal/internal/domain/notification"
)

// Normalizer turns push envelopes and in-stream triggers into DraftPanelInput.
// None of its methods panic; missing or malformed fields take defaults.
type Normalizer struct {
	// Domain is appended to bare CC user ids, without "@".
	Domain   string
	Location *time.Location
	Now      func() time.Time
}

func NewNormalizer(domain string, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{
		Domain:   strings.TrimPrefix(strings.TrimSpace(domain), "@"),
		Location: loc,
		Now:      time.Now,
	}
}

// FromEnvelope handles the asynchronous leave_draft push. The approval line
// is at most the single approver named in the payload.
func (n *Normalizer) FromEnvelope(env notification.Envelope) DraftPanelInput {
	p := env.PayloadMap()
	in := n.common(p)
	in.Source = SourcePush
	if in.UserID == "" {
		in.UserID = strings.TrimSpace(env.UserID.String())
	}

	in.ApprovalLine = []ApprovalStep{}
	if name := notification.FirstString(p, "approver_name", "approverName"); name != "" {
		in.ApprovalLine = append(in.ApprovalLine, ApprovalStep{
			ApproverID:   notification.FirstScalar(p, "approver_id", "approverId"),
			ApproverName: name,
			ApprovalSeq:  1,
		})
	}
	return in
}

// FromTrigger handles the in-stream leave trigger. The approval line keeps
// the order it arrived in. On malformed JSON the defaulted input is returned
// together with an error worth logging.
func (n *Normalizer) FromTrigger(raw json.RawMessage) (DraftPanelInput, error) {
	p, err := decodeObject(raw)
	in := n.common(p)
	in.Source = SourceStream
	in.ApprovalLine = approvalLine(p)
	return in, err
}

// ApprovalFromTrigger wraps an approval trigger. The payload is kept verbatim.
func (n *Normalizer) ApprovalFromTrigger(raw json.RawMessage) (ApprovalDraft, error) {
	p, err := decodeObject(raw)
	if err != nil {
		return ApprovalDraft{}, err
	}
	draft := ApprovalDraft{
		ApprovalType: notification.FirstString(p, "approval_type", "approvalType", "type"),
		Payload:      append(json.RawMessage(nil), bytes.TrimSpace(raw)...),
	}
	if draft.ApprovalType == "" {
		return draft, ErrMissingApprovalType
	}
	return draft, nil
}

func (n *Normalizer) common(p map[string]any) DraftPanelInput {
	in := DraftPanelInput{
		UserID:           notification.FirstScalar(p, "user_id", "userId"),
		LeaveType:        notification.FirstString(p, "leave_type", "leaveType"),
		Reason:           notification.FirstString(p, "reason", "leave_reason", "leaveReason"),
		HalfDaySlot:      NormalizeHalfDay(firstValue(p, "half_day_slot", "halfDaySlot", "half_day", "halfDay")),
		CCList:           n.ccList(p),
		LeaveStatus:      leaveStatus(p),
		UseNextYearLeave: truthy(firstValue(p, "use_next_year_leave", "useNextYearLeave")),
	}

	in.StartDate = n.normalizeDate(notification.FirstString(p, "start_date", "startDate"))
	if in.StartDate == "" {
		in.StartDate = n.today()
	}
	in.EndDate = n.normalizeDate(notification.FirstString(p, "end_date", "endDate"))
	if in.EndDate == "" {
		in.EndDate = in.StartDate
	}
	return in
}

// NormalizeCC fixes the upstream "name" placeholder and qualifies the user id.
// Applying it twice changes nothing.
func (n *Normalizer) NormalizeCC(e CCEntry) CCEntry {
	rawID := strings.TrimSpace(e.UserID)
	name := strings.TrimSpace(e.Name)
	if name == "name" || name == "" {
		name = rawID
	}

	id := rawID
	if id != "" && !strings.Contains(id, "@") && n.Domain != "" {
		id = id + "@" + n.Domain
	}
	return CCEntry{Name: name, UserID: id}
}

// NormalizeHalfDay accepts ALL/AM/PM in any case and the Korean labels.
// Anything else is ALL.
func NormalizeHalfDay(v any) HalfDaySlot {
	s, _ := v.(string)
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AM", "MORNING", "오전":
		return HalfDayAM
	case "PM", "AFTERNOON", "오후":
		return HalfDayPM
	default:
		return HalfDayAll
	}
}

func (n *Normalizer) ccList(p map[string]any) []CCEntry {
	out := []CCEntry{}
	items, _ := firstValue(p, "cc_list", "ccList", "cc").([]any)
	for _, item := range items {
		var e CCEntry
		switch v := item.(type) {
		case string:
			e = CCEntry{UserID: v}
		case map[string]any:
			e = CCEntry{
				Name:   notification.FirstString(v, "name", "user_name", "userName"),
				UserID: notification.FirstScalar(v, "user_id", "userId", "email"),
			}
		default:
			continue
		}
		e = n.NormalizeCC(e)
		if e.UserID == "" && e.Name == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func approvalLine(p map[string]any) []ApprovalStep {
	out := []ApprovalStep{}
	items, _ := firstValue(p, "approval_line", "approvalLine", "approvers").([]any)
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		step := ApprovalStep{
			ApproverID:   notification.FirstScalar(m, "approver_id", "approverId", "user_id", "userId"),
			ApproverName: notification.FirstString(m, "approver_name", "approverName", "name"),
			ApprovalSeq:  int(number(firstValue(m, "approval_seq", "approvalSeq", "seq"))),
		}
		if step.ApprovalSeq <= 0 {
			step.ApprovalSeq = i + 1
		}
		out = append(out, step)
	}
	return out
}

func leaveStatus(p map[string]any) *LeaveStatus {
	m, ok := firstValue(p, "leave_status", "leaveStatus").(map[string]any)
	if !ok {
		return nil
	}
	return &LeaveStatus{
		TotalDays:     number(firstValue(m, "total_days", "totalDays", "total")),
		UsedDays:      number(firstValue(m, "used_days", "usedDays", "used")),
		RemainingDays: number(firstValue(m, "remaining_days", "remainingDays", "remaining")),
		NextYearDays:  number(firstValue(m, "next_year_days", "nextYearDays")),
	}
}

func (n *Normalizer) today() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().In(n.location()).Format(time.DateOnly)
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

// normalizeDate returns YYYY-MM-DD or "" when s is not a date.
func (n *Normalizer) normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(n.location()).Format(time.DateOnly)
	}
	if len(s) >= len(time.DateOnly) {
		prefix := strings.NewReplacer(".", "-", "/", "-").Replace(s[:len(time.DateOnly)])
		if _, err := time.Parse(time.DateOnly, prefix); err == nil {
			return prefix
		}
	}
	return ""
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	var p map[string]any
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrigger, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedTrigger)
	}
	return p, nil
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	}
	return 0
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "TRUE", "Y", "YES", "1":
			return true
		}
	}
	return false
}
