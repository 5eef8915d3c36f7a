package main

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/statebridge/authnode/pkg/scheme"
	"github.com/statebridge/authnode/pkg/validator"
)

// RPCRouter binds the registry operations and the challenge flow to RPC
// methods.
type RPCRouter struct {
	accounts   *AccountService
	auth       *AuthManager
	validators *validator.Registry
	metrics    *Metrics
	logger     Logger
}

// NewRPCRouter creates a new RPCRouter.
func NewRPCRouter(accounts *AccountService, auth *AuthManager, validators *validator.Registry, metrics *Metrics, logger Logger) *RPCRouter {
	return &RPCRouter{
		accounts:   accounts,
		auth:       auth,
		validators: validators,
		metrics:    metrics,
		logger:     logger.NewSystem("rpc-router"),
	}
}

// Register wires all methods into the node. Mutating methods other than
// tx_authorize require a session proven through the challenge flow.
func (r *RPCRouter) Register(node *RPCNode) {
	node.Handle("auth_challenge", r.HandleAuthChallenge)
	node.Handle("auth_verify", r.HandleAuthVerify)
	node.Handle("account_get", r.HandleAccountGet)
	node.Handle("tx_authorize", r.HandleTxAuthorize)

	node.HandleProtected("account_create", r.HandleAccountCreate)
	node.HandleProtected("sequence_increment", r.HandleSequenceIncrement)
	node.HandleProtected("key_rotate", r.HandleKeyRotate)
	node.HandleProtected("key_remove", r.HandleKeyRemove)
	node.HandleProtected("resource_create", r.HandleResourceCreate)
}

// HandleAuthChallenge issues a challenge the client must sign to prove
// control over an address under a scheme.
func (r *RPCRouter) HandleAuthChallenge(c *RPCContext) (any, error) {
	var params AuthChallengeParams
	if err := c.BindParams(&params); err != nil {
		return nil, err
	}
	addr, err := scheme.AddressFromHex(params.Address)
	if err != nil {
		return nil, RPCErrorf("invalid address: %v", err)
	}
	sch := scheme.Scheme(params.Scheme)
	if _, err := r.validators.Get(sch); err != nil {
		return nil, RPCErrorf("unsupported scheme: %d", params.Scheme)
	}

	challenge, err := r.auth.GenerateChallenge(addr, sch)
	if err != nil {
		return nil, RPCErrorf("%v", err)
	}
	r.metrics.AuthChallenges.Inc()

	return AuthChallengeResult{
		ChallengeToken: challenge.Token.String(),
		SigningHash:    hexutil.Encode(challenge.SigningHash()),
	}, nil
}

// HandleAuthVerify completes a challenge: the authenticator payload must
// validate over the challenge's signing hash and derive the key registered
// for the challenged address under the challenged scheme.
func (r *RPCRouter) HandleAuthVerify(c *RPCContext) (any, error) {
	var params AuthVerifyParams
	if err := c.BindParams(&params); err != nil {
		return nil, err
	}
	token, err := uuid.Parse(params.ChallengeToken)
	if err != nil {
		return nil, RPCErrorf("invalid challenge token")
	}
	payload, err := hexutil.Decode(params.Payload)
	if err != nil {
		return nil, RPCErrorf("invalid payload encoding: %v", err)
	}

	challenge, err := r.auth.GetChallenge(token)
	if err != nil {
		return nil, RPCErrorf("%v", err)
	}
	if len(payload) == 0 || scheme.Scheme(payload[0]) != challenge.Scheme {
		return nil, RPCErrorf("payload scheme does not match challenge")
	}

	derivedKey, err := r.validators.Validate(payload, challenge.SigningHash())
	if err != nil {
		r.metrics.Validations.WithLabelValues(challenge.Scheme.String(), "failure").Inc()
		return nil, RPCErrorf("authenticator rejected")
	}
	storedKey, err := r.accounts.SchemeKeyFor(challenge.Address, challenge.Scheme)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(derivedKey, storedKey) {
		r.metrics.Validations.WithLabelValues(challenge.Scheme.String(), "failure").Inc()
		return nil, RPCErrorf("authenticator does not control %s", challenge.Address)
	}

	if err := r.auth.CompleteChallenge(token); err != nil {
		return nil, RPCErrorf("%v", err)
	}
	r.metrics.Validations.WithLabelValues(challenge.Scheme.String(), "success").Inc()

	_, jwtString, err := r.auth.GenerateJWT(challenge.Address, challenge.Scheme)
	if err != nil {
		return nil, err
	}
	r.metrics.AuthSessions.Inc()

	return AuthVerifyResult{
		Address: challenge.Address.String(),
		Token:   jwtString,
	}, nil
}

// HandleAccountGet returns the registry entry for an address.
func (r *RPCRouter) HandleAccountGet(c *RPCContext) (any, error) {
	var params AccountGetParams
	if err := c.BindParams(&params); err != nil {
		return nil, err
	}
	addr, err := scheme.AddressFromHex(params.Address)
	if err != nil {
		return nil, RPCErrorf("invalid address: %v", err)
	}
	account, err := r.accounts.Get(addr)
	if err != nil {
		return nil, RPCErrorf("account not found: %s", addr)
	}
	return accountView(account), nil
}

// HandleTxAuthorize runs the full transaction authentication path for a
// sender. It is public because the payload itself is the proof.
func (r *RPCRouter) HandleTxAuthorize(c *RPCContext) (any, error) {
	var params TxAuthorizeParams
	if err := c.BindParams(&params); err != nil {
		return nil, err
	}
	sender, err := scheme.AddressFromHex(params.Sender)
	if err != nil {
		return nil, RPCErrorf("invalid sender: %v", err)
	}
	payload, err := hexutil.Decode(params.Payload)
	if err != nil {
		return nil, RPCErrorf("invalid payload encoding: %v", err)
	}
	txHash, err := hexutil.Decode(params.TxHash)
	if err != nil {
		return nil, RPCErrorf("invalid tx hash encoding: %v", err)
	}

	if err := r.accounts.AuthorizeTransaction(sender, payload, txHash); err != nil {
		return nil, RPCErrorf("transaction rejected: %v", err)
	}

	sequenceNumber, err := SequenceNumber(r.accounts.db, sender)
	if err != nil {
		return nil, err
	}
	return TxAuthorizeResult{Sender: sender.String(), SequenceNumber: sequenceNumber}, nil
}

// HandleAccountCreate creates the registry entry for the session's address.
func (r *RPCRouter) HandleAccountCreate(c *RPCContext) (any, error) {
	addr, err := scheme.AddressFromHex(c.Claims.Address)
	if err != nil {
		return nil, err
	}
	account, err := r.accounts.Create(addr)
	if err != nil {
		return nil, RPCErrorf("%v", err)
	}
	return accountView(&account), nil
}

// HandleSequenceIncrement advances the session address' sequence number.
func (r *RPCRouter) HandleSequenceIncrement(c *RPCContext) (any, error) {
	addr, err := scheme.AddressFromHex(c.Claims.Address)
	if err != nil {
		return nil, err
	}
	if err := r.accounts.IncrementSequence(addr); err != nil {
		return nil, RPCErrorf("%v", err)
	}
	account, err := r.accounts.Get(addr)
	if err != nil {
		return nil, err
	}
	return accountView(account), nil
}

// HandleKeyRotate rotates the session address' key entry for one scheme.
func (r *RPCRouter) HandleKeyRotate(c *RPCContext) (any, error) {
	var params KeyRotateParams
	if err := c.BindParams(&params); err != nil {
		return nil, err
	}
	addr, err := scheme.AddressFromHex(c.Claims.Address)
	if err != nil {
		return nil, err
	}
	publicKey, err := hexutil.Decode(params.PublicKey)
	if err != nil {
		return nil, RPCErrorf("invalid public key encoding: %v", err)
	}
	if err := r.accounts.RotateKeyEntry(addr, scheme.Scheme(params.Scheme), publicKey); err != nil {
		return nil, RPCErrorf("%v", err)
	}
	key, err := r.accounts.SchemeKeyFor(addr, scheme.Scheme(params.Scheme))
	if err != nil {
		return nil, err
	}
	return KeyRotateResult{Scheme: params.Scheme, AuthenticationKey: hexutil.Encode(key)}, nil
}

// HandleKeyRemove clears the session address' key entry for one scheme.
func (r *RPCRouter) HandleKeyRemove(c *RPCContext) (any, error) {
	var params KeyRemoveParams
	if err := c.BindParams(&params); err != nil {
		return nil, err
	}
	addr, err := scheme.AddressFromHex(c.Claims.Address)
	if err != nil {
		return nil, err
	}
	if err := r.accounts.RemoveKeyEntry(addr, scheme.Scheme(params.Scheme)); err != nil {
		return nil, RPCErrorf("%v", err)
	}
	return struct{}{}, nil
}

// HandleResourceCreate derives and provisions a resource account from the
// session address.
func (r *RPCRouter) HandleResourceCreate(c *RPCContext) (any, error) {
	addr, err := scheme.AddressFromHex(c.Claims.Address)
	if err != nil {
		return nil, err
	}
	_, capability, err := r.accounts.CreateResource(addr)
	if err != nil {
		return nil, RPCErrorf("%v", err)
	}
	return ResourceCreateResult{Address: capability.Address().String()}, nil
}

func accountView(account *Account) *AccountResult {
	if account == nil {
		return nil
	}
	return &AccountResult{
		Address:           account.Address,
		AuthenticationKey: account.AuthenticationKey,
		SequenceNumber:    account.Sequence(),
		IsResource:        account.IsResource,
	}
}
