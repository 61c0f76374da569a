package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type WorkstreamType string

const (
	WorkstreamTypeRole  WorkstreamType = "role"
	WorkstreamTypeGrant WorkstreamType = "grant"
)

type WorkstreamState string

const (
	WorkstreamStateFunded   WorkstreamState = "funded"
	WorkstreamStateOpen     WorkstreamState = "open"
	WorkstreamStateFinished WorkstreamState = "finished"
)

type PaymentCurrency string

const (
	PaymentCurrencyDAI PaymentCurrency = "DAI"
)

type Receiver struct {
	Address         common.Address  `json:"address"`
	PaymentRate     uint32          `json:"payment_rate"`
	PaymentCurrency PaymentCurrency `json:"payment_currency"`
}

// DripsConfig describes how funds flow out of a workstream. The hub address
// is resolved server-side against the dripshubs registry, never taken
// verbatim from the client.
type DripsConfig struct {
	Receivers []Receiver     `json:"receivers"`
	DripsAcct uint32         `json:"drips_acct"`
	DripsHub  common.Address `json:"drips_hub"`
}

type Workstream struct {
	ID           string          `json:"id"`
	Type         WorkstreamType  `json:"wtype"`
	Creator      common.Address  `json:"creator"`
	CreatedAt    time.Time       `json:"created_at"`
	StartingAt   *time.Time      `json:"starting_at,omitempty"`
	EndingAt     *time.Time      `json:"ending_at,omitempty"`
	Description  string          `json:"description"`
	DripsConfig  DripsConfig     `json:"drips_config"`
	State        WorkstreamState `json:"state"`
	Applications []Application   `json:"applications,omitempty"`
}

type ApplicationState string

const (
	ApplicationStateAccepted ApplicationState = "accepted"
	ApplicationStateRejected ApplicationState = "rejected"
	ApplicationStatePending  ApplicationState = "pending"
)

type Application struct {
	ID           string           `json:"id"`
	Description  string           `json:"description"`
	WorkstreamID string           `json:"workstream_id"`
	Creator      common.Address   `json:"creator"`
	Receivers    []Receiver       `json:"receivers"`
	CreatedAt    time.Time        `json:"created_at"`
	StartingAt   *time.Time       `json:"starting_at,omitempty"`
	EndingAt     *time.Time       `json:"ending_at,omitempty"`
	State        ApplicationState `json:"state"`
}
