// Package helpers holds the pure formatting and validation functions
// shared across the CRM surfaces: date/size formatting, email and
// phone checks, id generation, and the display-label lookups for the
// entity enums.
package helpers

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
)

// FormatDate renders t through a YYYY/MM/DD/HH/mm/ss token layout,
// e.g. "YYYY-MM-DD HH:mm". Unknown text passes through untouched.
func FormatDate(t time.Time, layout string) string {
	r := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", t.Year()),
		"MM", fmt.Sprintf("%02d", int(t.Month())),
		"DD", fmt.Sprintf("%02d", t.Day()),
		"HH", fmt.Sprintf("%02d", t.Hour()),
		"mm", fmt.Sprintf("%02d", t.Minute()),
		"ss", fmt.Sprintf("%02d", t.Second()),
	)
	return r.Replace(layout)
}

// FormatFileSize renders a byte count with a binary unit, two
// decimals: "1.50 KB".
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(i)), units[i])
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether s looks like an email address.
func ValidateEmail(s string) bool {
	return emailRe.MatchString(s)
}

var phoneCharsRe = regexp.MustCompile(`^[\d\s\-+()]+$`)

// ValidatePhone accepts international and domestic formats: only
// digits, spaces, dashes, plus and parens, with at least 7 digits.
func ValidatePhone(s string) bool {
	if !phoneCharsRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7
}

// GenerateID returns a prefix plus a timestamp-and-random base36
// token. Not a UUID; used for display-only identifiers.
func GenerateID(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	random := strconv.FormatInt(rand.Int63n(1<<31), 36)
	return prefix + ts + random
}

// TagType is a UI severity bucket for an enum value.
type TagType string

const (
	TagSuccess TagType = "success"
	TagInfo    TagType = "info"
	TagWarning TagType = "warning"
	TagError   TagType = "error"
	TagDefault TagType = "default"
)

var statusLabels = map[domain.CustomerStatus]string{
	domain.StatusSampleWon:     "样品已成交",
	domain.StatusNegotiating:   "洽谈中",
	domain.StatusInProduction:  "排产中",
	domain.StatusCompleted:     "已完成",
	domain.StatusNewRound:      "新一轮洽谈",
	domain.StatusWonByOthers:   "已被他人成交",
	domain.StatusPotential:     "潜在客户",
	domain.StatusHighValue:     "高价值客户",
	domain.StatusNoResponse:    "无回复",
	domain.StatusNotExecutable: "不可执行",
	domain.StatusLowPriority:   "低优先级",
}

var statusTags = map[domain.CustomerStatus]TagType{
	domain.StatusSampleWon:     TagSuccess,
	domain.StatusNegotiating:   TagInfo,
	domain.StatusInProduction:  TagWarning,
	domain.StatusCompleted:     TagSuccess,
	domain.StatusNewRound:      TagInfo,
	domain.StatusWonByOthers:   TagError,
	domain.StatusPotential:     TagDefault,
	domain.StatusHighValue:     TagSuccess,
	domain.StatusNoResponse:    TagWarning,
	domain.StatusNotExecutable: TagError,
	domain.StatusLowPriority:   TagDefault,
}

// StatusLabel returns the display label for a customer status,
// falling back to the raw value for unknown statuses.
func StatusLabel(s domain.CustomerStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// StatusTag returns the severity bucket for a customer status.
func StatusTag(s domain.CustomerStatus) TagType {
	if tag, ok := statusTags[s]; ok {
		return tag
	}
	return TagDefault
}

var orderStatusLabels = map[domain.OrderStatus]string{
	domain.OrderPending:    "待确认",
	domain.OrderConfirmed:  "已确认",
	domain.OrderProduction: "生产中",
	domain.OrderShipped:    "已发货",
	domain.OrderCompleted:  "已完成",
	domain.OrderCancelled:  "已取消",
}

var orderStatusTags = map[domain.OrderStatus]TagType{
	domain.OrderPending:    TagWarning,
	domain.OrderConfirmed:  TagInfo,
	domain.OrderProduction: TagWarning,
	domain.OrderShipped:    TagInfo,
	domain.OrderCompleted:  TagSuccess,
	domain.OrderCancelled:  TagError,
}

// OrderStatusLabel returns the display label for an order status.
func OrderStatusLabel(s domain.OrderStatus) string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// OrderStatusTag returns the severity bucket for an order status.
func OrderStatusTag(s domain.OrderStatus) TagType {
	if tag, ok := orderStatusTags[s]; ok {
		return tag
	}
	return TagDefault
}

var sourceLabels = map[domain.CustomerSource]string{
	domain.SourceWebsite:     "网站",
	domain.SourceEmail:       "邮件",
	domain.SourceExhibition:  "展会",
	domain.SourceReferral:    "转介绍",
	domain.SourceColdCall:    "电话营销",
	domain.SourceSocialMedia: "社交媒体",
	domain.SourceOther:       "其他",
}

// SourceLabel returns the display label for a customer source.
func SourceLabel(s domain.CustomerSource) string {
	if label, ok := sourceLabels[s]; ok {
		return label
	}
	return string(s)
}

var methodLabels = map[domain.FollowMethod]string{
	domain.MethodEmail:    "邮件",
	domain.MethodPhone:    "电话",
	domain.MethodWhatsapp: "WhatsApp",
	domain.MethodWechat:   "微信",
	domain.MethodMeeting:  "会议",
	domain.MethodOther:    "其他",
}

// MethodLabel returns the display label for a follow method.
func MethodLabel(m domain.FollowMethod) string {
	if label, ok := methodLabels[m]; ok {
		return label
	}
	return string(m)
}
