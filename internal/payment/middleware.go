package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	verifyMaxRetries = 5
	verifyBaseDelay  = 1 * time.Second
)

// Middleware enforces x402 payment for any operation present in the pricing
// table, exactly reproducing X402PaymentMiddleware.dispatch: resolve the
// operation id, build the accepted payment requirements, require and parse
// a payment header, match it to a requirement, verify with the facilitator
// (retrying transport failures), let the request through, then settle and
// attach X-PAYMENT-RESPONSE on a successful response.
type Middleware struct {
	pricing      PricingTable
	facilitator  Facilitator // nil disables enforcement entirely (test/mock mode)
	payeeAddress string
	log          *slog.Logger
}

// New builds a Middleware. A nil facilitator disables payment enforcement,
// matching the source's "no facilitator configured - skip payment
// validation (test mode)".
func New(pricing PricingTable, facilitator Facilitator, payeeAddress string, log *slog.Logger) *Middleware {
	if log == nil {
		log = slog.Default()
	}
	return &Middleware{pricing: pricing, facilitator: facilitator, payeeAddress: payeeAddress, log: log}
}

// Wrap returns next wrapped with payment enforcement.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.facilitator == nil {
			next.ServeHTTP(w, r)
			return
		}

		operationID, body := operationID(r)
		options, priced := m.pricing[operationID]
		if operationID == "" || !priced || len(options) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		requirements := m.buildRequirements(options, r)

		paymentHeader := r.Header.Get("X-PAYMENT")
		if paymentHeader == "" {
			paymentHeader = r.Header.Get("X-Payment-Proof")
		}
		if paymentHeader == "" {
			m.log.Warn("payment header missing", "operation_id", operationID)
			writeChallenge(w, requirements, "No X-PAYMENT header provided")
			return
		}

		payload, err := decodePayload(paymentHeader)
		if err != nil {
			m.log.Warn("invalid payment header", "operation_id", operationID, "err", err)
			writeChallenge(w, requirements, "Invalid payment header format")
			return
		}

		selected, ok := findMatchingRequirement(requirements, payload)
		if !ok {
			writeChallenge(w, requirements, "No matching payment requirements found")
			return
		}

		verifyResp, err := VerifyWithRetry(r.Context(), m.facilitator, payload, selected, verifyMaxRetries, verifyBaseDelay)
		if err != nil {
			m.log.Error("payment verification failed", "operation_id", operationID, "err", err)
			writeChallenge(w, requirements, "Payment verification failed; please try again later.")
			return
		}
		if !verifyResp.IsValid {
			reason := verifyResp.InvalidReason
			if reason == "" {
				reason = "Unknown reason"
			}
			writeChallenge(w, requirements, "Invalid payment: "+reason)
			return
		}

		// Restore the body the operation-id extraction may have consumed,
		// so downstream handlers see the full, unread request body.
		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		// Buffer the handler's response so a successful settlement can still
		// attach X-PAYMENT-RESPONSE before anything reaches the client.
		buf := &bufferedResponse{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(buf, r)

		if buf.status >= 200 && buf.status < 300 {
			m.settle(r.Context(), operationID, payload, selected, buf)
		}

		for k, vs := range buf.header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(buf.status)
		_, _ = w.Write(buf.body.Bytes())
	})
}

// settle calls the facilitator's settle endpoint and, on success, attaches
// X-PAYMENT-RESPONSE — base64(JSON(SettleResponse)) — to the buffered
// response headers, mirroring the source's post-call_next settlement step.
// Settlement failures are logged and otherwise swallowed: a buyer whose
// payment verified successfully still gets their result.
func (m *Middleware) settle(ctx context.Context, operationID string, payload Payload, selected Requirement, buf *bufferedResponse) {
	settleResp, err := m.facilitator.Settle(ctx, payload, selected)
	if err != nil {
		m.log.Error("exception during settlement", "operation_id", operationID, "err", err)
		return
	}
	if !settleResp.Success {
		reason := settleResp.ErrorReason
		if reason == "" {
			reason = "Unknown"
		}
		m.log.Error("payment settlement failed", "operation_id", operationID, "reason", reason)
		return
	}

	raw, err := json.Marshal(settleResp)
	if err != nil {
		m.log.Error("failed to encode settle response", "operation_id", operationID, "err", err)
		return
	}
	buf.header.Set("X-PAYMENT-RESPONSE", base64.StdEncoding.EncodeToString(raw))
}

func (m *Middleware) buildRequirements(options []PaymentOption, r *http.Request) []Requirement {
	out := make([]Requirement, 0, len(options))
	for _, opt := range options {
		network, ok := NetworkName(opt.ChainID)
		if !ok {
			m.log.Warn("unknown chain_id in pricing config, skipping", "chain_id", opt.ChainID)
			continue
		}
		out = append(out, Requirement{
			Scheme:            "exact",
			Network:           network,
			Asset:             opt.TokenAddress,
			MaxAmountRequired: strconv.FormatInt(opt.TokenAmount, 10),
			Resource:          r.URL.String(),
			Description:       "Payment for " + r.URL.Path,
			MimeType:          r.Header.Get("Content-Type"),
			PayTo:             m.payeeAddress,
			MaxTimeoutSeconds: 60,
		})
	}
	return out
}

// operationID resolves the operation id the same way the source does:
// REST routes resolve to a normalized path (the source's fallback branch,
// since this router has no per-route operation_id attribute to introspect),
// MCP POST bodies resolve from params.name via a single gjson lookup. It
// returns the raw body bytes if it had to consume the body, so the caller
// can restore them.
func operationID(r *http.Request) (id string, consumedBody []byte) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/hybrid/"), strings.HasPrefix(path, "/execute"):
		return strings.ReplaceAll(strings.Trim(path, "/"), "/", "_"), nil
	case strings.Contains(path, "mcp") && r.Method == http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", nil
		}
		name := gjson.GetBytes(body, "params.name").String()
		return name, body
	default:
		return "", nil
	}
}

func decodePayload(header string) (Payload, error) {
	var raw []byte
	if strings.HasPrefix(strings.TrimSpace(header), "{") {
		raw = []byte(header)
	} else {
		decoded, err := safeBase64Decode(header)
		if err != nil {
			return Payload{}, err
		}
		raw = decoded
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// safeBase64Decode tolerates both standard and URL-safe alphabets and
// missing padding, matching x402's safe_base64_decode — a buyer's X-PAYMENT
// header is free-form enough that a strict decoder rejects payloads the
// source accepts.
func safeBase64Decode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// findMatchingRequirement picks the requirement whose scheme and network
// match the payload, mirroring x402.common.find_matching_payment_requirements.
func findMatchingRequirement(requirements []Requirement, payload Payload) (Requirement, bool) {
	for _, req := range requirements {
		if req.Scheme == payload.Scheme && req.Network == payload.Network {
			return req, true
		}
	}
	return Requirement{}, false
}

func writeChallenge(w http.ResponseWriter, requirements []Requirement, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(ChallengeResponse{
		X402Version: X402Version,
		Accepts:     requirements,
		Error:       errMsg,
	})
}

// bufferedResponse implements http.ResponseWriter entirely in memory so the
// settlement step can still mutate headers after the wrapped handler has
// already "written" its response.
type bufferedResponse struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}
