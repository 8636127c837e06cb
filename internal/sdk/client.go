package sdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/network"
)

// DefaultComputeLimit is the execution resource ceiling for transactions.
const DefaultComputeLimit = 9999

// DefaultTimeout bounds each access node request.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of a script or transaction.
type Result struct {
	// Value is the JSON-Cadence value returned by a script.
	Value json.RawMessage `json:"value,omitempty"`
	// TransactionID is set for submitted transactions.
	TransactionID string `json:"transaction_id,omitempty"`
}

// String renders the result for display.
func (r Result) String() string {
	if r.TransactionID != "" {
		return "transaction " + r.TransactionID
	}
	return string(r.Value)
}

// TransactionBody is the access node's transaction submission payload.
type TransactionBody struct {
	Script           string          `json:"script"`
	Arguments        []string        `json:"arguments"`
	ReferenceBlockID string          `json:"reference_block_id"`
	GasLimit         string          `json:"gas_limit"`
	Payer            string          `json:"payer"`
	ProposalKey      ProposalKey     `json:"proposal_key"`
	Authorizers      []string        `json:"authorizers"`
	PayloadSigs      []SignatureBody `json:"payload_signatures"`
	EnvelopeSigs     []SignatureBody `json:"envelope_signatures"`
}

// ProposalKey identifies the proposer's key.
type ProposalKey struct {
	Address        string `json:"address"`
	KeyIndex       string `json:"key_index"`
	SequenceNumber string `json:"sequence_number"`
}

// SignatureBody is one signature over a transaction.
type SignatureBody struct {
	Address   string `json:"address"`
	KeyIndex  string `json:"key_index"`
	Signature string `json:"signature"`
}

// Authorizer proposes, pays for and signs transactions. Wallet flows are
// outside this package; an Authorizer is the authenticated user.
type Authorizer interface {
	// Address is the account address.
	Address() string
	// Sign fills in the proposal key and signatures of tx.
	Sign(ctx context.Context, tx *TransactionBody) error
}

// TransactionOptions configures SendTransaction.
type TransactionOptions struct {
	Args         []json.RawMessage
	ComputeLimit uint64 // DefaultComputeLimit when zero
	Authorizer   Authorizer
}

// Client talks to a Flow access node's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the access node at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("sdk")
	return c
}

// ForNetwork creates a client for n's public access node.
func ForNetwork(n network.Network, opts ...ClientOption) *Client {
	return NewClient(n.AccessNode(), opts...)
}

// BaseURL returns the access node URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute runs code as a script or transaction according to its template
// type. Other template types return errors.ErrUnsupportedTemplate.
func (c *Client) Execute(ctx context.Context, code string, opts TransactionOptions) (Result, error) {
	switch info := Classify(code); info.Type {
	case TypeScript:
		return c.ExecuteScript(ctx, code, opts.Args)
	case TypeTransaction:
		if info.Signers > 1 {
			return Result{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedTemplate, ButtonLabel(info.Type, info.Signers))
		}
		return c.SendTransaction(ctx, code, opts)
	default:
		return Result{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedTemplate, info.Type)
	}
}

type scriptRequest struct {
	Script    string   `json:"script"`
	Arguments []string `json:"arguments"`
}

// ExecuteScript runs a read-only script at the latest sealed block.
func (c *Client) ExecuteScript(ctx context.Context, code string, args []json.RawMessage) (Result, error) {
	body := scriptRequest{Script: encode([]byte(code)), Arguments: encodeArgs(args)}

	var encoded string
	if err := c.do(ctx, http.MethodPost, "/v1/scripts?block_height=sealed", body, &encoded); err != nil {
		return Result{}, err
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Result{}, fmt.Errorf("decode script result: %w", err)
	}
	c.logger.Debug("script executed", "bytes", len(value))
	return Result{Value: json.RawMessage(bytes.TrimSpace(value))}, nil
}

// SendTransaction submits code as a transaction authorized, proposed and
// paid for by opts.Authorizer.
func (c *Client) SendTransaction(ctx context.Context, code string, opts TransactionOptions) (Result, error) {
	if opts.Authorizer == nil {
		return Result{}, errors.ErrNotAuthenticated
	}
	limit := opts.ComputeLimit
	if limit == 0 {
		limit = DefaultComputeLimit
	}

	blockID, err := c.latestSealedBlockID(ctx)
	if err != nil {
		return Result{}, err
	}

	addr := opts.Authorizer.Address()
	tx := &TransactionBody{
		Script:           encode([]byte(code)),
		Arguments:        encodeArgs(opts.Args),
		ReferenceBlockID: blockID,
		GasLimit:         strconv.FormatUint(limit, 10),
		Payer:            addr,
		ProposalKey:      ProposalKey{Address: addr, KeyIndex: "0", SequenceNumber: "0"},
		Authorizers:      []string{addr},
		PayloadSigs:      []SignatureBody{},
		EnvelopeSigs:     []SignatureBody{},
	}
	if err := opts.Authorizer.Sign(ctx, tx); err != nil {
		return Result{}, fmt.Errorf("sign transaction: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", tx, &resp); err != nil {
		return Result{}, err
	}
	c.logger.Info("transaction submitted", "id", resp.ID, "limit", limit)
	return Result{TransactionID: resp.ID}, nil
}

func (c *Client) latestSealedBlockID(ctx context.Context) (string, error) {
	var blocks []struct {
		Header struct {
			ID string `json:"id"`
		} `json:"header"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/blocks?height=sealed", nil, &blocks); err != nil {
		return "", err
	}
	if len(blocks) == 0 || blocks[0].Header.ID == "" {
		return "", fmt.Errorf("access node returned no sealed block")
	}
	return blocks[0].Header.ID, nil
}

// APIError is a non-2xx access node response. Its message is shown to the
// user verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("access node error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func encodeArgs(args []json.RawMessage) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, encode(a))
	}
	return out
}
