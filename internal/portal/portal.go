// Package portal keeps the local view of the shared list in step with the
// ledger. The Controller ties the wallet session to a ledger client, caches
// the last known account state and runs the initialization and submission
// workflows against it.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
	"github.com/gotuzzoj23/SolanaDApp/internal/wallet"
)

const tracerName = "github.com/gotuzzoj23/SolanaDApp/internal/portal"

// Session is the wallet session the Controller follows.
type Session interface {
	Identity() types.WalletIdentity
	OnStatusChange(handler wallet.StatusHandler) (unsubscribe func())
	ConnectExplicit(ctx context.Context) error
	Signer() (*wallet.Signer, error)
}

// BuildFunc constructs a ledger client for a connected identity.
type BuildFunc func(id types.WalletIdentity, signer ledger.Signer) (Ledger, error)

// LedgerBuilder returns a BuildFunc producing real ledger clients.
func LedgerBuilder(network ledger.NetworkConfig, schema ledger.Schema) BuildFunc {
	return func(id types.WalletIdentity, signer ledger.Signer) (Ledger, error) {
		return ledger.Build(id, network, schema, signer)
	}
}

// Options configures a Controller.
type Options struct {
	Session Session
	Handle  *identity.AccountHandle
	Build   BuildFunc
	Notices *logger.Logger // optional
	Tracer  trace.Tracer   // optional, defaults to the global provider
}

// operation is a pending mutation holding the in-flight slot.
type operation struct {
	id       string
	name     string
	gen      uint64
	identity types.WalletIdentity
	client   Ledger
}

// Controller owns the cached account state, the pending input buffer and
// the in-flight guard for one account handle.
type Controller struct {
	session Session
	handle  *identity.AccountHandle
	build   BuildFunc
	notices *logger.Logger
	tracer  trace.Tracer

	mu       sync.Mutex
	identity types.WalletIdentity
	gen      uint64 // bumped on every identity change
	client   Ledger
	state    *types.AccountState
	failure  *types.Failure
	input    string
	inFlight string

	notifyMu sync.Mutex
	subs     map[int]chan types.Snapshot
	nextSub  int

	unsubscribe func()
}

// New creates a Controller and subscribes it to the session.
func New(opts Options) (*Controller, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("portal: session is required")
	}
	if opts.Handle == nil {
		return nil, fmt.Errorf("portal: account handle is required")
	}
	if opts.Build == nil {
		return nil, fmt.Errorf("portal: ledger builder is required")
	}

	c := &Controller{
		session:  opts.Session,
		handle:   opts.Handle,
		build:    opts.Build,
		notices:  opts.Notices,
		tracer:   opts.Tracer,
		identity: opts.Session.Identity(),
		subs:     make(map[int]chan types.Snapshot),
	}
	if c.notices == nil {
		c.notices = logger.New(100)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.unsubscribe = opts.Session.OnStatusChange(c.onStatus)
	return c, nil
}

// Close detaches the Controller from the session and closes subscriber
// channels.
func (c *Controller) Close() {
	c.unsubscribe()

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// Notices returns the notice feed
func (c *Controller) Notices() *logger.Logger {
	return c.notices
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() types.Snapshot {
	snap := types.Snapshot{
		Identity: c.identity,
		Account:  c.handle.PublicKey().String(),
		InFlight: c.inFlight,
		Input:    c.input,
	}
	if c.state != nil {
		state := types.AccountState{
			Exists:  c.state.Exists,
			Entries: append([]types.ListEntry{}, c.state.Entries...),
		}
		snap.State = &state
	}
	if c.failure != nil {
		f := *c.failure
		snap.Failure = &f
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot after every change. Slow
// readers only see the latest snapshot.
func (c *Controller) Subscribe() (<-chan types.Snapshot, func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan types.Snapshot, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.notifyMu.Lock()
			defer c.notifyMu.Unlock()
			if _, ok := c.subs[id]; ok {
				close(ch)
				delete(c.subs, id)
			}
		})
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	snap := c.Snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot in favour of the new one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// SetInput replaces the pending input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
	c.notify()
}

// Connect asks the wallet to connect, prompting the user.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.session.ConnectExplicit(ctx); err != nil {
		c.recordFailure(err, "", 0, false)
		return err
	}
	return nil
}

// onStatus follows wallet transitions. Any change drops the ledger client;
// a disconnect also drops the cached state. Reaching Connected triggers
// exactly one refresh.
func (c *Controller) onStatus(ctx context.Context, id types.WalletIdentity) {
	c.mu.Lock()
	if id == c.identity {
		c.mu.Unlock()
		return
	}
	c.identity = id
	c.gen++
	c.client = nil
	if !id.Connected() {
		c.state = nil
	}
	c.mu.Unlock()
	c.notify()

	if id.Connected() {
		if err := c.Refresh(ctx); err != nil {
			log.Printf("portal: refresh after connect: %v", err)
		}
	}
}

// ledgerLocked returns the client for the current identity, building it on
// first use.
func (c *Controller) ledgerLocked() (Ledger, error) {
	if !c.identity.Connected() {
		return nil, ErrNotConnected
	}
	if c.client != nil {
		return c.client, nil
	}

	signer, err := c.session.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	client, err := c.build(c.identity, signer)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Refresh re-reads the account and replaces the cached state. On failure
// the last known state is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "portal.refresh")
	defer span.End()

	c.mu.Lock()
	client, err := c.ledgerLocked()
	gen := c.gen
	c.mu.Unlock()
	if err != nil {
		endSpan(span, err)
		c.recordFailure(err, "", gen, true)
		return err
	}

	err = c.refresh(ctx, client, gen)
	endSpan(span, err)
	return err
}

func (c *Controller) refresh(ctx context.Context, client Ledger, gen uint64) error {
	state, err := Refresh(ctx, client, c.handle)

	c.mu.Lock()
	if gen != c.gen {
		// Identity changed while fetching
		c.mu.Unlock()
		return ErrNotConnected
	}
	if err != nil {
		c.mu.Unlock()
		c.recordFailure(err, "", gen, true)
		return err
	}
	knownMissing := c.state != nil && !c.state.Exists
	c.state = &state
	c.failure = nil
	c.mu.Unlock()

	if !state.Exists && !knownMissing {
		c.notices.Notice("info", types.FailureAccountUninitialized, "",
			"The shared list has not been created yet. Run the one-time initialization to start it.")
	}
	c.notify()
	return nil
}

// Initialize runs the one-time account creation and refreshes before
// returning. It fails with ErrAlreadyInitialized when the account is known
// to exist.
func (c *Controller) Initialize(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.identity.Connected() && c.state != nil && c.state.Exists {
		c.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrAlreadyInitialized, c.handle.PublicKey())
		c.recordFailure(err, "", 0, false)
		return "", err
	}
	op, err := c.beginLocked("initialize")
	c.mu.Unlock()
	if err != nil {
		c.recordFailure(err, "", 0, false)
		return "", err
	}
	c.notify()

	ctx, span := c.tracer.Start(ctx, "portal.initialize", trace.WithAttributes(
		attribute.String("portal.op_id", op.id),
		attribute.String("portal.account", c.handle.PublicKey().String()),
	))
	defer span.End()

	if err := Initialize(ctx, op.client, c.handle, op.identity); err != nil {
		endSpan(span, err)
		c.finish(op, err)
		return op.id, err
	}

	err = c.refresh(ctx, op.client, op.gen)
	endSpan(span, err)
	c.finish(op, nil)
	if err == nil {
		c.notices.Notice("info", types.FailureNone, op.id, "The shared list is ready.")
	}
	return op.id, err
}

// SubmitInput submits the pending input buffer.
func (c *Controller) SubmitInput(ctx context.Context) (string, error) {
	c.mu.Lock()
	content := c.input
	c.mu.Unlock()
	return c.Submit(ctx, content)
}

// Submit appends content to the list and refreshes before returning. Blank
// content is a no-op that leaves the input buffer alone. Otherwise the
// input buffer is cleared as soon as the submission starts, whatever its
// outcome, including content the pipeline rejects as not a URI.
func (c *Controller) Submit(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	var err error
	c.mu.Lock()
	switch {
	case !c.identity.Connected():
		err = ErrNotConnected
	case c.state == nil:
		err = fmt.Errorf("%w: account state unknown", ErrFetchFailure)
	case !c.state.Exists:
		err = ErrAccountUninitialized
	}
	var op operation
	if err == nil {
		op, err = c.beginLocked("submit")
	}
	if err == nil {
		c.input = ""
	}
	c.mu.Unlock()
	if err != nil {
		c.recordFailure(err, "", 0, false)
		return "", err
	}
	c.notify()

	ctx, span := c.tracer.Start(ctx, "portal.submit", trace.WithAttributes(
		attribute.String("portal.op_id", op.id),
		attribute.String("portal.account", c.handle.PublicKey().String()),
	))
	defer span.End()

	if err := Submit(ctx, op.client, c.handle, op.identity, content); err != nil {
		endSpan(span, err)
		c.finish(op, err)
		return op.id, err
	}

	err = c.refresh(ctx, op.client, op.gen)
	endSpan(span, err)
	c.finish(op, nil)
	return op.id, err
}

// beginLocked claims the in-flight slot. c.mu must be held.
func (c *Controller) beginLocked(name string) (operation, error) {
	if c.inFlight != "" {
		return operation{}, &InProgressError{OpID: c.inFlight}
	}
	client, err := c.ledgerLocked()
	if err != nil {
		return operation{}, err
	}

	op := operation{
		id:       uuid.New().String(),
		name:     name,
		gen:      c.gen,
		identity: c.identity,
		client:   client,
	}
	c.inFlight = op.id
	log.Printf("portal: %s %s started", op.name, op.id)
	return op, nil
}

// finish releases the in-flight slot and records the outcome. A failure
// is only cleared by the follow-up refresh, so a mutation whose refresh
// failed keeps reporting the fetch failure.
func (c *Controller) finish(op operation, err error) {
	c.mu.Lock()
	if c.inFlight == op.id {
		c.inFlight = ""
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("portal: %s %s failed: %v", op.name, op.id, err)
		c.recordFailure(err, op.id, op.gen, true)
		return
	}
	log.Printf("portal: %s %s done", op.name, op.id)
	c.notify()
}

// recordFailure stores err as the last failure and posts a notice. With
// checkGen set, failures from a previous identity are dropped.
func (c *Controller) recordFailure(err error, opID string, gen uint64, checkGen bool) {
	kind := Classify(err)

	c.mu.Lock()
	if checkGen && gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.failure = &types.Failure{
		Kind:    kind,
		Message: describe(err),
		OpID:    opID,
		At:      time.Now(),
	}
	c.mu.Unlock()

	switch kind {
	case types.FailureWalletUnavailable, types.FailureUserRejected:
		// The session already posted a notice
	case types.FailureInProgress, types.FailureNotConnected:
		c.notices.Notice("warning", kind, opID, noticeText(kind, err))
	default:
		c.notices.Notice("error", kind, opID, noticeText(kind, err))
	}
	c.notify()
}

func noticeText(kind types.FailureKind, err error) string {
	switch kind {
	case types.FailureNotConnected:
		return "Connect a wallet first."
	case types.FailureAccountUninitialized:
		return "The shared list has not been created yet."
	case types.FailureAlreadyInitialized:
		return "The shared list already exists."
	case types.FailureInProgress:
		return "Another operation is still pending."
	case types.FailureInvalidContent:
		return "Only absolute links, such as https://... or ipfs://..., can be submitted."
	case types.FailureFetch:
		return "Could not load the list: " + describe(err)
	case types.FailureTransaction:
		return "Transaction failed: " + describe(err)
	}
	return describe(err)
}

// describe returns the node's message for RPC errors, whose Error text is a
// debug dump, and err.Error() otherwise.
func describe(err error) string {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Message != "" {
		return rpcErr.Message
	}
	return err.Error()
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(Classify(err)))
}
