package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodUPI          PaymentMethod = "upi"
	MethodWallet       PaymentMethod = "wallet"
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodQRIS         PaymentMethod = "qris"
)

// ChargeRequest is what a gateway is asked to collect.
type ChargeRequest struct {
	Amount    float64
	Method    PaymentMethod
	Reference string
}

// ChargeResult is the gateway outcome. Error is set when the charge was
// declined; Pending means the customer still has to act (scan the QR code)
// and the outcome will be learned later.
type ChargeResult struct {
	Success              bool
	Pending              bool
	GatewayTransactionID string
	Provider             string
	Error                string
	Actions              []PaymentAction
	Metadata             map[string]interface{}
}

// PaymentAction is something the customer can open to finish a pending charge.
type PaymentAction struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// Gateway collects money for one or more methods.
type Gateway interface {
	Process(ctx context.Context, req ChargeRequest) ChargeResult
}

// StatusChecker is implemented by gateways whose charges can settle after
// Process returns.
type StatusChecker interface {
	CheckStatus(ctx context.Context, reference string) ChargeResult
}

// NotificationVerifier is implemented by gateways that push signed
// transaction updates.
type NotificationVerifier interface {
	VerifyNotification(n GatewayNotification) (ChargeResult, error)
}

// GatewayRegistry maps a method to the gateway that serves it.
type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[PaymentMethod]Gateway
}

func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{gateways: make(map[PaymentMethod]Gateway)}
}

func (r *GatewayRegistry) Register(method PaymentMethod, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[method] = gw
}

func (r *GatewayRegistry) Get(method PaymentMethod) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[method]
	return gw, ok
}

// Methods lists registered methods in a stable order.
func (r *GatewayRegistry) Methods() []PaymentMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PaymentMethod, 0, len(r.gateways))
	for m := range r.gateways {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultGateways registers the simulated online methods.
func DefaultGateways() *GatewayRegistry {
	reg := NewGatewayRegistry()
	for _, m := range []PaymentMethod{MethodCard, MethodUPI, MethodWallet, MethodBankTransfer} {
		reg.Register(m, NewSimulatedGateway(m))
	}
	return reg
}

var simulatedPrefixes = map[PaymentMethod]string{
	MethodCard:         "card_",
	MethodUPI:          "upi_",
	MethodWallet:       "wallet_",
	MethodCash:         "cash_",
	MethodBankTransfer: "bank_",
}

// SimulatedGateway approves charges after Delay, failing FailureRate of them.
type SimulatedGateway struct {
	Method      PaymentMethod
	Provider    string
	FailureRate float64
	Delay       time.Duration
	Rand        func() float64
	Now         func() time.Time
}

func NewSimulatedGateway(method PaymentMethod) *SimulatedGateway {
	return &SimulatedGateway{
		Method:   method,
		Provider: "simulated",
		Rand:     rand.Float64,
		Now:      time.Now,
	}
}

func (g *SimulatedGateway) Process(ctx context.Context, req ChargeRequest) ChargeResult {
	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return ChargeResult{Provider: g.Provider, Error: ctx.Err().Error()}
		}
	}

	if req.Amount <= 0 {
		return ChargeResult{Provider: g.Provider, Error: "amount must be positive"}
	}
	if g.FailureRate > 0 && g.Rand() < g.FailureRate {
		return ChargeResult{Provider: g.Provider, Error: fmt.Sprintf("%s payment declined", req.Method)}
	}

	prefix, ok := simulatedPrefixes[req.Method]
	if !ok {
		prefix = string(req.Method) + "_"
	}
	return ChargeResult{
		Success:              true,
		Provider:             g.Provider,
		GatewayTransactionID: fmt.Sprintf("%s%d", prefix, g.Now().UnixMilli()),
		Metadata:             map[string]interface{}{"reference": req.Reference},
	}
}

// midtransClient is the slice of coreapi.Client the gateway uses.
type midtransClient interface {
	ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *midtrans.Error)
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway charges QRIS through Midtrans Core API. A QRIS charge
// starts pending with a QR code for the customer to scan; only capture or
// settlement counts as paid. The outcome arrives later through CheckStatus
// or a signed notification.
type MidtransGateway struct {
	client    midtransClient
	serverKey string
	Acquirer  string
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var client coreapi.Client
	client.New(serverKey, env)
	return &MidtransGateway{client: &client, serverKey: serverKey, Acquirer: "gopay"}
}

func (g *MidtransGateway) Process(ctx context.Context, req ChargeRequest) ChargeResult {
	if err := ctx.Err(); err != nil {
		return ChargeResult{Provider: "midtrans", Error: err.Error()}
	}

	// QRIS settles in whole rupiah; anything else would charge a different amount
	amount := decimal.NewFromFloat(req.Amount)
	if !amount.IsPositive() {
		return ChargeResult{Provider: "midtrans", Error: "amount must be positive"}
	}
	if !amount.Equal(amount.Truncate(0)) {
		return ChargeResult{
			Provider: "midtrans",
			Error:    fmt.Sprintf("qris amount %s is not a whole rupiah amount", amount.String()),
		}
	}

	charge := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeQris,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: amount.IntPart(),
		},
		Qris: &coreapi.QrisDetails{Acquirer: g.Acquirer},
	}

	resp, merr := g.client.ChargeTransaction(charge)
	if merr != nil {
		return ChargeResult{Provider: "midtrans", Error: merr.Message}
	}
	if resp == nil {
		return ChargeResult{Provider: "midtrans", Error: "empty response from midtrans"}
	}

	res := midtransResult(resp.TransactionStatus, resp.TransactionID, resp.StatusCode)
	for _, a := range resp.Actions {
		res.Actions = append(res.Actions, PaymentAction{Name: a.Name, Method: a.Method, URL: a.URL})
	}
	return res
}

// CheckStatus asks Midtrans where the charge for reference stands.
func (g *MidtransGateway) CheckStatus(ctx context.Context, reference string) ChargeResult {
	if err := ctx.Err(); err != nil {
		return ChargeResult{Provider: "midtrans", Pending: true, Error: err.Error()}
	}
	resp, merr := g.client.CheckTransaction(reference)
	if merr != nil {
		// unknown is not declined; leave the charge pending
		return ChargeResult{Provider: "midtrans", Pending: true, Error: merr.Message}
	}
	if resp == nil {
		return ChargeResult{Provider: "midtrans", Pending: true, Error: "empty response from midtrans"}
	}
	return midtransResult(resp.TransactionStatus, resp.TransactionID, resp.StatusCode)
}

// GatewayNotification is the body Midtrans posts when a transaction changes.
type GatewayNotification struct {
	OrderID           string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SignatureKey      string `json:"signature_key" validate:"required"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status" validate:"required"`
	FraudStatus       string `json:"fraud_status"`
}

var errBadSignature = errors.New("notification signature mismatch")

// VerifyNotification checks the sha512 signature Midtrans computes over
// order_id, status_code, gross_amount and the server key.
func (g *MidtransGateway) VerifyNotification(n GatewayNotification) (ChargeResult, error) {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + g.serverKey))
	want := hex.EncodeToString(sum[:])
	if g.serverKey == "" || subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.SignatureKey))) != 1 {
		return ChargeResult{}, errBadSignature
	}
	return midtransResult(n.TransactionStatus, n.TransactionID, n.StatusCode), nil
}

func midtransResult(status, transactionID, statusCode string) ChargeResult {
	res := ChargeResult{
		Provider:             "midtrans",
		GatewayTransactionID: transactionID,
		Metadata: map[string]interface{}{
			"transaction_status": status,
			"status_code":        statusCode,
		},
	}
	switch status {
	case "capture", "settlement":
		res.Success = true
	case "pending", "authorize":
		res.Pending = true
	default:
		res.Error = fmt.Sprintf("qris charge not settled: %s", status)
	}
	return res
}
