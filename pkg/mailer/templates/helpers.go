package templates

import (
	"time"

	"github.com/oksasatya/referral-tree/config"
)

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}

func WithMember(name, email, side string) Option {
	return func(d *EmailData) {
		d.MemberName = name
		d.MemberEmail = email
		d.Side = side
	}
}

func WithActor(name string) Option { return func(d *EmailData) { d.ActorName = name } }
func WithOrphans(n int) Option     { return func(d *EmailData) { d.Orphans = n } }

// NewBaseEmailData fills the common fields from config, then applies opts
func NewBaseEmailData(cfg *config.Config, typ string, name, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          recipient,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,

		SupportURL:   cfg.SupportURL,
		DashboardURL: cfg.DashboardURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// NewMemberAddedData is sent to a parent when a child joins one of its slots.
func NewMemberAddedData(cfg *config.Config, parentName, parentEmail string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(cfg, MemberAdded, parentName, parentEmail, opts...))
}

// NewMemberRemovedData is sent to a former parent after its child was deleted.
func NewMemberRemovedData(cfg *config.Config, parentName, parentEmail string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(cfg, MemberRemoved, parentName, parentEmail, opts...))
}
