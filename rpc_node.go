package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultRPCErrorMessage = "an error occurred while processing the request"

var defaultRPCMessageWriteDuration = 5 * time.Second // Timeout for writing messages to WebSocket

var requestValidator = validator.New()

// RPCContext carries one request through its handler.
type RPCContext struct {
	// ConnectionID identifies the WebSocket connection.
	ConnectionID string
	// Claims holds the verified session claims for protected methods,
	// nil for public ones.
	Claims *JWTClaims
	// Request is the parsed client request.
	Request RPCRequest
}

// BindParams unmarshals and validates the request parameters into out.
func (c *RPCContext) BindParams(out any) error {
	if len(c.Request.Params) == 0 {
		return RPCErrorf("missing params for method %s", c.Request.Method)
	}
	if err := json.Unmarshal(c.Request.Params, out); err != nil {
		return RPCErrorf("invalid params: %v", err)
	}
	if err := requestValidator.Struct(out); err != nil {
		return RPCErrorf("invalid params: %v", err)
	}
	return nil
}

// RPCHandler processes one request and returns its result payload.
type RPCHandler func(c *RPCContext) (any, error)

// RPCNode is a WebSocket-based RPC server. It upgrades HTTP connections,
// routes messages to registered handlers, and gates protected methods
// behind session token verification.
type RPCNode struct {
	// upgrader handles the HTTP to WebSocket protocol upgrade
	upgrader websocket.Upgrader

	handlersMu sync.RWMutex
	// public methods are callable without a session
	public map[string]RPCHandler
	// protected methods require a verified session token
	protected map[string]RPCHandler

	authManager *AuthManager
	metrics     *Metrics
	logger      Logger
}

// NewRPCNode creates a new RPC node instance.
func NewRPCNode(authManager *AuthManager, metrics *Metrics, logger Logger) *RPCNode {
	return &RPCNode{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for simplicity
			},
		},
		public:      make(map[string]RPCHandler),
		protected:   make(map[string]RPCHandler),
		authManager: authManager,
		metrics:     metrics,
		logger:      logger.NewSystem("rpc-node"),
	}
}

// Handle registers a public method.
func (n *RPCNode) Handle(method string, handler RPCHandler) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	n.public[method] = handler
}

// HandleProtected registers a method that requires a valid session token.
func (n *RPCNode) HandleProtected(method string, handler RPCHandler) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	n.protected[method] = handler
}

// HandleConnection is the entry point for WebSocket connections. It blocks
// until the connection is closed.
func (n *RPCNode) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.NewString()
	n.metrics.ConnectionsTotal.Inc()
	n.metrics.ConnectedClients.Inc()
	defer n.metrics.ConnectedClients.Dec()

	n.logger.Info("connection opened", "connectionID", connectionID)
	defer n.logger.Info("connection closed", "connectionID", connectionID)

	for {
		messageType, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				n.logger.Debug("unexpected close", "connectionID", connectionID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		response := n.processMessage(connectionID, messageBytes)
		if err := n.writeResponse(conn, response); err != nil {
			n.logger.Error("failed to write response", "connectionID", connectionID, "error", err)
			return
		}
	}
}

func (n *RPCNode) processMessage(connectionID string, messageBytes []byte) *RPCResponse {
	req, err := ParseRPCRequest(messageBytes)
	if err != nil {
		n.logger.Debug("invalid message format", "error", err)
		return CreateErrorResponse(0, "", "invalid message format")
	}
	if err := requestValidator.Struct(&req); err != nil {
		n.logger.Debug("message validation failed", "error", err)
		return CreateErrorResponse(req.RequestID, req.Method, "message validation failed")
	}

	n.metrics.RPCRequests.WithLabelValues(req.Method).Inc()

	handler, claims, err := n.resolveHandler(req)
	if err != nil {
		return CreateErrorResponse(req.RequestID, req.Method, err.Error())
	}

	n.logger.Info("processing message",
		"requestID", req.RequestID,
		"connectionID", connectionID,
		"method", req.Method)

	c := &RPCContext{
		ConnectionID: connectionID,
		Claims:       claims,
		Request:      req,
	}
	result, err := handler(c)
	if err != nil {
		var rpcErr RPCError
		if errors.As(err, &rpcErr) {
			return CreateErrorResponse(req.RequestID, req.Method, rpcErr.Error())
		}
		n.logger.Error("handler failed", "method", req.Method, "error", err)
		return CreateErrorResponse(req.RequestID, req.Method, defaultRPCErrorMessage)
	}
	return CreateResponse(req.RequestID, req.Method, result)
}

func (n *RPCNode) resolveHandler(req RPCRequest) (RPCHandler, *JWTClaims, error) {
	n.handlersMu.RLock()
	defer n.handlersMu.RUnlock()

	if handler, ok := n.public[req.Method]; ok {
		return handler, nil, nil
	}

	handler, ok := n.protected[req.Method]
	if !ok {
		return nil, nil, fmt.Errorf("unknown method: %s", req.Method)
	}
	if req.Token == "" {
		return nil, nil, fmt.Errorf("method %s requires authentication", req.Method)
	}
	claims, err := n.authManager.VerifyJWT(req.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid session token")
	}
	return handler, claims, nil
}

func (n *RPCNode) writeResponse(conn *websocket.Conn, response *RPCResponse) error {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(defaultRPCMessageWriteDuration)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, responseBytes)
}
