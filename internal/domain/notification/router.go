package notification

import (
	"strings"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ToastDescriptor is the transient message shown for one envelope.
type ToastDescriptor struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Event tags with a fixed presentation.
const (
	EventEApprovalAlert  = "eapproval_alert"
	EventApprovalRequest = "approval_request"
	EventLeaveDraft      = "leave_draft"
	EventLeaveGrant      = "leave_grant"
	EventGift            = "gift"
	EventGiftArrival     = "gift_arrival"
	EventBirthday        = "birthday"
	EventContest         = "contest"
	EventNotification    = "notification"
)

var fixedToasts = map[string]ToastDescriptor{
	EventApprovalRequest: {Message: "새로운 결재 요청이 도착했습니다.", Severity: SeverityInfo},
	EventLeaveDraft:      {Message: "휴가 신청서 초안이 준비되었습니다.", Severity: SeverityInfo},
	EventLeaveGrant:      {Message: "휴가가 부여되었습니다.", Severity: SeveritySuccess},
	EventGift:            {Message: "선물이 도착했습니다!", Severity: SeveritySuccess},
	EventGiftArrival:     {Message: "선물이 도착했습니다!", Severity: SeveritySuccess},
	EventBirthday:        {Message: "생일을 진심으로 축하합니다!", Severity: SeverityInfo},
	EventContest:         {Message: "새로운 공모전 소식이 있습니다.", Severity: SeverityInfo},
}

// payloadMessageFields is the lookup order for free-form notification text.
var payloadMessageFields = []string{"message", "content", "body", "text", "description", "subject", "title"}

// IsKnownEvent reports whether tag has a fixed toast presentation.
func IsKnownEvent(tag string) bool {
	if tag == EventEApprovalAlert {
		return true
	}
	_, ok := fixedToasts[tag]
	return ok
}

// Route maps an envelope to its toast. It never fails; an empty Message
// means no toast should be shown.
func Route(env Envelope) ToastDescriptor {
	tag := strings.TrimSpace(env.Event)
	if tag == EventEApprovalAlert {
		return eapprovalToast(env.PayloadMap())
	}
	if t, ok := fixedToasts[tag]; ok {
		return t
	}

	msg := ExtractPayloadMessage(env.Payload)
	if msg == "" {
		msg = strings.TrimSpace(env.PayloadText)
	}
	return ToastDescriptor{Message: msg, Severity: SeverityInfo}
}

func eapprovalToast(payload map[string]any) ToastDescriptor {
	status := strings.ToUpper(FirstString(payload, "status", "approval_status", "approvalStatus"))
	switch status {
	case "APPROVED":
		return ToastDescriptor{Message: "전자결재가 승인되었습니다.", Severity: SeveritySuccess}
	case "REJECTED":
		return ToastDescriptor{Message: "전자결재가 반려되었습니다.", Severity: SeverityWarning}
	case "SUBMITTED", "PENDING", "REQUESTED":
		return ToastDescriptor{Message: "전자결재가 상신되었습니다.", Severity: SeverityInfo}
	case "WITHDRAWN", "CANCELED", "CANCELLED":
		return ToastDescriptor{Message: "전자결재가 회수되었습니다.", Severity: SeverityInfo}
	default:
		return ToastDescriptor{Message: "전자결재가 업데이트되었습니다.", Severity: SeverityInfo}
	}
}

// ExtractPayloadMessage pulls display text out of an arbitrary payload.
// Strings are trimmed; objects yield the first non-empty candidate field,
// then a name-based fallback; everything else yields "".
func ExtractPayloadMessage(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(p)
	case map[string]any:
		if msg := FirstString(p, payloadMessageFields...); msg != "" {
			return msg
		}
		if name := FirstString(p, "name"); name != "" {
			return name + "님의 알림"
		}
		return ""
	default:
		return ""
	}
}
