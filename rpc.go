package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// RPCRequest is one client request on a WebSocket connection.
type RPCRequest struct {
	RequestID uint64          `json:"request_id" validate:"required"`
	Method    string          `json:"method" validate:"required"`
	Params    json.RawMessage `json:"params,omitempty"`
	Token     string          `json:"token,omitempty"` // JWT for protected methods
}

// RPCResponse is the server's reply to one request.
type RPCResponse struct {
	RequestID uint64 `json:"request_id"`
	Method    string `json:"method"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp uint64 `json:"ts"`
}

// ParseRPCRequest parses a JSON message into an RPCRequest
func ParseRPCRequest(data []byte) (RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return RPCRequest{}, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// CreateResponse constructs a successful RPCResponse for a request.
func CreateResponse(id uint64, method string, result any) *RPCResponse {
	return &RPCResponse{
		RequestID: id,
		Method:    method,
		Result:    result,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// CreateErrorResponse constructs an error RPCResponse for a request.
func CreateErrorResponse(id uint64, method string, message string) *RPCResponse {
	return &RPCResponse{
		RequestID: id,
		Method:    method,
		Error:     message,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// RPCError represents an error in the RPC protocol that should be sent back
// to the client in the RPC response. Unlike generic errors, RPCError
// messages are guaranteed to be included in the error response sent to the
// client; everything else is replaced with a generic message so internal
// details never leak.
type RPCError struct {
	err error
}

// RPCErrorf creates a new RPCError with a formatted, client-safe message.
func RPCErrorf(format string, args ...any) RPCError {
	return RPCError{
		err: fmt.Errorf(format, args...),
	}
}

// Error implements the error interface for RPCError
func (e RPCError) Error() string {
	return e.err.Error()
}

// Method parameter shapes. Hex-encoded byte fields use 0x prefixes.

type AuthChallengeParams struct {
	Address string `json:"address" validate:"required"`
	Scheme  uint8  `json:"scheme"`
}

type AuthChallengeResult struct {
	ChallengeToken string `json:"challenge_token"`
	SigningHash    string `json:"signing_hash"`
}

type AuthVerifyParams struct {
	ChallengeToken string `json:"challenge_token" validate:"required,uuid"`
	Payload        string `json:"payload" validate:"required"`
}

type AuthVerifyResult struct {
	Address string `json:"address"`
	Token   string `json:"jwt"`
}

type AccountGetParams struct {
	Address string `json:"address" validate:"required"`
}

type AccountResult struct {
	Address           string `json:"address"`
	AuthenticationKey string `json:"authentication_key"`
	SequenceNumber    uint64 `json:"sequence_number"`
	IsResource        bool   `json:"is_resource"`
}

type KeyRotateParams struct {
	Scheme    uint8  `json:"scheme"`
	PublicKey string `json:"public_key" validate:"required"`
}

type KeyRotateResult struct {
	Scheme            uint8  `json:"scheme"`
	AuthenticationKey string `json:"authentication_key"`
}

type KeyRemoveParams struct {
	Scheme uint8 `json:"scheme"`
}

type ResourceCreateResult struct {
	Address string `json:"address"`
}

type TxAuthorizeParams struct {
	Sender  string `json:"sender" validate:"required"`
	Payload string `json:"payload" validate:"required"`
	TxHash  string `json:"tx_hash" validate:"required"`
}

type TxAuthorizeResult struct {
	Sender         string `json:"sender"`
	SequenceNumber uint64 `json:"sequence_number"`
}
