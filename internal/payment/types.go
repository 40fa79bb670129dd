// Package payment implements the x402-style pay-per-call HTTP 402 gate of
// spec.md §4.4: a pricing table mapping operation ids to accepted payment
// options, a facilitator client that verifies and settles payments, and a
// middleware that challenges unpaid requests and settles paid ones after a
// successful handler response.
package payment

// PaymentOption is a single accepted way to pay for an operation, loaded
// from the pricing table (spec.md §6; mirrors the source's PaymentOption).
type PaymentOption struct {
	ChainID      int    `yaml:"chain_id" json:"chain_id"`
	TokenAddress string `yaml:"token_address" json:"token_address"`
	TokenAmount  int64  `yaml:"token_amount" json:"token_amount"`
}

// PricingTable maps an operation id to the payment options accepted for it.
type PricingTable map[string][]PaymentOption

// Requirement is the wire-format x402 PaymentRequirements object returned in
// the 402 challenge body and used to match an incoming payment proof.
type Requirement struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	Asset             string            `json:"asset"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// ChallengeResponse is the x402PaymentRequiredResponse body.
type ChallengeResponse struct {
	X402Version int           `json:"x402Version"`
	Accepts     []Requirement `json:"accepts"`
	Error       string        `json:"error"`
}

const X402Version = 1

// Payload is the decoded X-PAYMENT / X-Payment-Proof header: an opaque
// scheme-specific payload alongside the fields the facilitator needs to
// locate the right requirement.
type Payload struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Payload     map[string]any `json:"payload"`
}

// VerifyResponse is the facilitator's answer to a /verify call.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse is the facilitator's answer to a /settle call.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
}
