package payments

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/internal/booking"
)

// Stripe caps metadata values at 500 characters.
const maxMetadataValue = 500

const (
	mdCompanyID   = "company_id"
	mdServiceID   = "service_id"
	mdStaffID     = "staff_id"
	mdDatetime    = "datetime"
	mdDuration    = "duration"
	mdClientName  = "client_name"
	mdClientPhone = "client_phone"
	mdClientEmail = "client_email"
	mdComment     = "comment"
)

// bookingMetadata flattens a normalized booking request into session metadata.
func bookingMetadata(req booking.Request, duration int) map[string]string {
	md := map[string]string{
		mdCompanyID:   req.CompanyID.String(),
		mdServiceID:   req.ServiceID.String(),
		mdStaffID:     req.StaffID.String(),
		mdDatetime:    req.Datetime,
		mdClientName:  req.Client.Name,
		mdClientPhone: req.Client.Phone,
		mdClientEmail: req.Client.Email,
		mdComment:     req.Comment,
	}
	if duration > 0 {
		md[mdDuration] = strconv.Itoa(duration)
	}
	for k, v := range md {
		if v == "" {
			delete(md, k)
			continue
		}
		if utf8.RuneCountInString(v) > maxMetadataValue {
			md[k] = string([]rune(v)[:maxMetadataValue])
		}
	}
	return md
}

// bookingFromMetadata rebuilds the booking request stored at checkout. ok is
// false when the session was not created for a booking.
func bookingFromMetadata(md map[string]string) (req booking.Request, ok bool) {
	if md[mdDatetime] == "" || (md[mdServiceID] == "" && md[mdDuration] == "") {
		return booking.Request{}, false
	}
	duration, _ := strconv.Atoi(md[mdDuration])
	return booking.Request{
		CompanyID: altegio.ID(md[mdCompanyID]),
		ServiceID: altegio.ID(md[mdServiceID]),
		StaffID:   altegio.ID(md[mdStaffID]),
		Duration:  duration,
		Datetime:  md[mdDatetime],
		Client: booking.Client{
			Name:  md[mdClientName],
			Phone: md[mdClientPhone],
			Email: md[mdClientEmail],
		},
		Comment: md[mdComment],
		Paid:    true,
	}, true
}

func metadataClient(md map[string]string) (name, phone, email string) {
	return strings.TrimSpace(md[mdClientName]), strings.TrimSpace(md[mdClientPhone]), strings.TrimSpace(md[mdClientEmail])
}
