package entities

import (
	"regexp"
	"strings"
	"time"
)

type LinkStatus string

const (
	LinkStatusPending LinkStatus = "PENDING"
	LinkStatusLinked  LinkStatus = "LINKED"
	LinkStatusRefused LinkStatus = "REFUSED"
)

// ExternalLinkStatus is the manager-link status reported by the ads platform.
type ExternalLinkStatus string

const (
	ExternalStatusActive     ExternalLinkStatus = "ACTIVE"
	ExternalStatusPending    ExternalLinkStatus = "PENDING"
	ExternalStatusInactive   ExternalLinkStatus = "INACTIVE"
	ExternalStatusCancelled  ExternalLinkStatus = "CANCELLED"
	ExternalStatusTerminated ExternalLinkStatus = "TERMINATED"
	ExternalStatusRefused    ExternalLinkStatus = "REFUSED"
	ExternalStatusUnknown    ExternalLinkStatus = "UNKNOWN"
)

type ClientAccount struct {
	ClientAccountID  string
	UserID           string
	GoogleCustomerID string
	LinkStatus       LinkStatus
	ResourceName     string
	LinkRequestedAt  *time.Time
	LinkedAt         *time.Time
	LastSyncAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a ClientAccount) HasPendingInvitation() bool {
	return strings.TrimSpace(a.ResourceName) != ""
}

// MapExternalStatus folds the external vocabulary onto the three local
// states. Anything not recognised stays PENDING.
func MapExternalStatus(status ExternalLinkStatus) LinkStatus {
	switch ExternalLinkStatus(strings.ToUpper(strings.TrimSpace(string(status)))) {
	case ExternalStatusActive:
		return LinkStatusLinked
	case ExternalStatusCancelled, ExternalStatusTerminated, ExternalStatusRefused:
		return LinkStatusRefused
	default:
		return LinkStatusPending
	}
}

var customerIDPattern = regexp.MustCompile(`^\d{10}$`)

// NormalizeCustomerID strips dashes and reports whether the result is a
// ten digit customer id.
func NormalizeCustomerID(raw string) (string, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), "-", "")
	return clean, customerIDPattern.MatchString(clean)
}
