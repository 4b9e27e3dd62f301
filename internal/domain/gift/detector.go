package gift

import (
	"strings"

	"assistantportal/internal/domain/notification"
)

const queuePrefix = "gift."

// PopupInput is what the gift popup renders.
type PopupInput struct {
	GiftName       string `json:"gift_name"`
	Message        string `json:"message"`
	CouponImageURL string `json:"coupon_image_url"`
	CouponEndDate  string `json:"coupon_end_date"`
	QueueName      string `json:"queue_name"`
	SenderName     string `json:"sender_name"`
}

// IsGift reports whether env announces a gift. It is a heuristic: a false
// negative only costs the popup, the generic toast still shows.
func IsGift(env notification.Envelope) bool {
	switch env.Event {
	case notification.EventGift, notification.EventGiftArrival:
		return true
	}
	if strings.HasPrefix(env.QueueName, queuePrefix) {
		// covers event == "notification" routed through a gift queue as well
		return true
	}
	q := notification.FirstString(env.PayloadMap(), "queue_name", "queueName")
	return q == "gift" || strings.HasPrefix(q, queuePrefix)
}

// BuildPopup extracts popup fields, accepting snake_case and camelCase names.
func BuildPopup(env notification.Envelope) PopupInput {
	p := env.PayloadMap()

	in := PopupInput{
		GiftName:       notification.FirstString(p, "gift_name", "giftName", "product_name", "productName"),
		CouponImageURL: notification.FirstString(p, "coupon_image_url", "couponImageUrl", "coupon_img_url", "couponImgUrl"),
		CouponEndDate:  notification.FirstString(p, "coupon_end_date", "couponEndDate", "valid_end_date", "validEndDate"),
		QueueName:      notification.FirstString(p, "queue_name", "queueName"),
		SenderName:     notification.FirstString(p, "sender_name", "senderName", "from_name", "fromName"),
	}
	if in.QueueName == "" {
		in.QueueName = strings.TrimSpace(env.QueueName)
	}

	in.Message = notification.ExtractPayloadMessage(env.Payload)
	if in.Message == "" {
		in.Message = strings.TrimSpace(env.PayloadText)
	}
	return in
}
