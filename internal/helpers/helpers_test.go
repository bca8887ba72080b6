package helpers_test

import (
	"strings"
	"testing"
	"time"

	"github.com/haoweiyu/crm-bff-go/internal/domain"
	"github.com/haoweiyu/crm-bff-go/internal/helpers"
)

func TestFormatDate(t *testing.T) {
	ts := time.Date(2026, time.March, 5, 9, 7, 3, 0, time.UTC)

	cases := []struct {
		layout string
		want   string
	}{
		{"YYYY-MM-DD", "2026-03-05"},
		{"YYYY-MM-DD HH:mm:ss", "2026-03-05 09:07:03"},
		{"DD/MM/YYYY", "05/03/2026"},
		{"HH:mm", "09:07"},
	}
	for _, tc := range cases {
		if got := helpers.FormatDate(ts, tc.layout); got != tc.want {
			t.Errorf("FormatDate(%q) = %q, want %q", tc.layout, got, tc.want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512.00 B"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{5 * 1024 * 1024 * 1024, "5.00 GB"},
	}
	for _, tc := range cases {
		if got := helpers.FormatFileSize(tc.bytes); got != tc.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"jo@example.com", "a.b+c@sub.domain.org"}
	invalid := []string{"", "plain", "a b@example.com", "a@b", "@example.com"}

	for _, e := range valid {
		if !helpers.ValidateEmail(e) {
			t.Errorf("expected %q valid", e)
		}
	}
	for _, e := range invalid {
		if helpers.ValidateEmail(e) {
			t.Errorf("expected %q invalid", e)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	valid := []string{"+49 (0) 170 1234567", "13812345678", "010-8888 777"}
	invalid := []string{"", "123456", "phone: 1234567", "12345x67"}

	for _, p := range valid {
		if !helpers.ValidatePhone(p) {
			t.Errorf("expected %q valid", p)
		}
	}
	for _, p := range invalid {
		if helpers.ValidatePhone(p) {
			t.Errorf("expected %q invalid", p)
		}
	}
}

func TestGenerateID(t *testing.T) {
	a := helpers.GenerateID("cust_")
	b := helpers.GenerateID("cust_")

	if !strings.HasPrefix(a, "cust_") {
		t.Errorf("expected prefix, got %q", a)
	}
	if a == b {
		t.Error("expected distinct ids")
	}
}

func TestStatusLabels(t *testing.T) {
	if got := helpers.StatusLabel(domain.StatusNegotiating); got != "洽谈中" {
		t.Errorf("unexpected label %q", got)
	}
	if got := helpers.StatusLabel("made_up"); got != "made_up" {
		t.Errorf("unknown status must fall back, got %q", got)
	}
	if got := helpers.StatusTag(domain.StatusWonByOthers); got != helpers.TagError {
		t.Errorf("unexpected tag %q", got)
	}
	if got := helpers.StatusTag("made_up"); got != helpers.TagDefault {
		t.Errorf("unknown status tag must fall back, got %q", got)
	}
}

func TestOrderStatusLabels(t *testing.T) {
	if got := helpers.OrderStatusLabel(domain.OrderShipped); got != "已发货" {
		t.Errorf("unexpected label %q", got)
	}
	if got := helpers.OrderStatusTag(domain.OrderCancelled); got != helpers.TagError {
		t.Errorf("unexpected tag %q", got)
	}
}

func TestSourceAndMethodLabels(t *testing.T) {
	if got := helpers.SourceLabel(domain.SourceExhibition); got != "展会" {
		t.Errorf("unexpected label %q", got)
	}
	if got := helpers.MethodLabel(domain.MethodWhatsapp); got != "WhatsApp" {
		t.Errorf("unexpected label %q", got)
	}
	if got := helpers.MethodLabel("fax"); got != "fax" {
		t.Errorf("unknown method must fall back, got %q", got)
	}
}
