package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/radicle-dev/workstreams-api/internal/domain"
)

// Custom errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrWorkstreamNotFound = errors.New("workstream not found")
	ErrUnknownDripsHub    = errors.New("drips hub is not registered")
	ErrInvalidDates       = errors.New("workstream dates are inconsistent")
	ErrBadDripsConfig     = errors.New("drips configuration rejected")
)

type WorkstreamService struct {
	users Store
	hubs  Store
	now   Clock
}

func NewWorkstreamService(users, hubs Store, clock Clock) *WorkstreamService {
	if clock == nil {
		clock = time.Now
	}
	return &WorkstreamService{
		users: users,
		hubs:  hubs,
		now:   clock,
	}
}

type ReceiverPayload struct {
	Address         string                 `json:"address" validate:"required,eth_addr"`
	PaymentRate     uint32                 `json:"payment_rate" validate:"required,gt=0"`
	PaymentCurrency domain.PaymentCurrency `json:"payment_currency" validate:"required,oneof=DAI"`
}

type DripsConfigPayload struct {
	Receivers []ReceiverPayload `json:"receivers" validate:"required,min=1,dive"`
	DripsAcct uint32            `json:"drips_acct"`
	DripsHub  string            `json:"drips_hub" validate:"required,eth_addr"`
}

type CreateWorkstreamRequest struct {
	Type        domain.WorkstreamType `json:"wtype" validate:"required,oneof=role grant"`
	Description string                `json:"description" validate:"required,max=2000"`
	StartingAt  *time.Time            `json:"starting_at"`
	EndingAt    *time.Time            `json:"ending_at"`
	DripsConfig DripsConfigPayload    `json:"drips_config" validate:"required"`
}

type UpdateWorkstreamRequest struct {
	Type        domain.WorkstreamType `json:"wtype" validate:"required,oneof=role grant"`
	Description string                `json:"description" validate:"required,max=2000"`
	StartingAt  *time.Time            `json:"starting_at"`
	EndingAt    *time.Time            `json:"ending_at"`
	DripsConfig DripsConfigPayload    `json:"drips_config" validate:"required"`
}

type ApplyRequest struct {
	Description string            `json:"description" validate:"required,max=2000"`
	Receivers   []ReceiverPayload `json:"receivers" validate:"required,min=1,dive"`
	StartingAt  *time.Time        `json:"starting_at"`
	EndingAt    *time.Time        `json:"ending_at"`
}

// List returns all workstreams of a user, oldest-first ordering not
// guaranteed. A user with no record has no workstreams.
func (s *WorkstreamService) List(ctx context.Context, owner common.Address) ([]domain.Workstream, error) {
	user, found, err := s.loadUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}

	workstreams := make([]domain.Workstream, 0, len(user.Workstreams))
	for _, ws := range user.Workstreams {
		workstreams = append(workstreams, ws)
	}
	return workstreams, nil
}

// Get returns a single workstream by id.
func (s *WorkstreamService) Get(ctx context.Context, owner common.Address, id string) (*domain.Workstream, error) {
	user, found, err := s.loadUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}

	ws, ok := user.Workstreams[id]
	if !ok {
		return nil, ErrWorkstreamNotFound
	}
	return &ws, nil
}

// Create populates the server-side fields of a new workstream and persists it
// on the owner's record: fresh uuid, creator, open state, creation time, and
// the hub address resolved from the registry rather than trusted from the
// client.
func (s *WorkstreamService) Create(ctx context.Context, owner common.Address, req CreateWorkstreamRequest) (*domain.Workstream, error) {
	now := s.now()
	if err := s.checkDates(now, req.StartingAt, req.EndingAt); err != nil {
		return nil, err
	}

	dripsConfig, err := s.resolveDripsConfig(ctx, req.DripsConfig)
	if err != nil {
		return nil, err
	}

	ws := domain.Workstream{
		ID:          uuid.New().String(),
		Type:        req.Type,
		Creator:     owner,
		CreatedAt:   now,
		StartingAt:  req.StartingAt,
		EndingAt:    req.EndingAt,
		Description: req.Description,
		DripsConfig: *dripsConfig,
		State:       domain.WorkstreamStateOpen,
	}

	user, _, err := s.loadUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user.Workstreams == nil {
		user.Workstreams = make(map[string]domain.Workstream)
	}
	user.Workstreams[ws.ID] = ws

	if err := s.saveUser(ctx, owner, user); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Update replaces a workstream's dates, metadata, and drips configuration.
// Id, creator, state, creation time, and applications are not touchable
// through this path.
func (s *WorkstreamService) Update(ctx context.Context, owner common.Address, id string, req UpdateWorkstreamRequest) (*domain.Workstream, error) {
	user, found, err := s.loadUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	ws, ok := user.Workstreams[id]
	if !ok {
		return nil, ErrWorkstreamNotFound
	}

	if err := s.checkDates(s.now(), req.StartingAt, req.EndingAt); err != nil {
		return nil, err
	}

	newConfig, err := s.resolveDripsConfig(ctx, req.DripsConfig)
	if err != nil {
		return nil, err
	}
	if !dripsConfigEqual(ws.DripsConfig, *newConfig) {
		if !checkDripsConfig(ws.DripsConfig, *newConfig) {
			return nil, ErrBadDripsConfig
		}
		ws.DripsConfig = *newConfig
	}

	ws.Type = req.Type
	ws.Description = req.Description
	ws.StartingAt = req.StartingAt
	ws.EndingAt = req.EndingAt

	user.Workstreams[id] = ws
	if err := s.saveUser(ctx, owner, user); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Apply records a pending application on a workstream. The applicant is the
// authenticated session address, which need not be the workstream owner.
func (s *WorkstreamService) Apply(ctx context.Context, owner common.Address, id string, applicant common.Address, req ApplyRequest) (*domain.Application, error) {
	user, found, err := s.loadUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	ws, ok := user.Workstreams[id]
	if !ok {
		return nil, ErrWorkstreamNotFound
	}

	now := s.now()
	if err := s.checkDates(now, req.StartingAt, req.EndingAt); err != nil {
		return nil, err
	}

	application := domain.Application{
		ID:           uuid.New().String(),
		Description:  req.Description,
		WorkstreamID: ws.ID,
		Creator:      applicant,
		Receivers:    toReceivers(req.Receivers),
		CreatedAt:    now,
		StartingAt:   req.StartingAt,
		EndingAt:     req.EndingAt,
		State:        domain.ApplicationStatePending,
	}

	ws.Applications = append(ws.Applications, application)
	user.Workstreams[id] = ws
	if err := s.saveUser(ctx, owner, user); err != nil {
		return nil, err
	}
	return &application, nil
}

// checkDates rejects validity windows that are already in the past or end
// before they start.
func (s *WorkstreamService) checkDates(now time.Time, startingAt, endingAt *time.Time) error {
	if startingAt != nil && startingAt.Before(now) {
		return fmt.Errorf("%w: starting date is in the past", ErrInvalidDates)
	}
	if endingAt != nil && endingAt.Before(now) {
		return fmt.Errorf("%w: ending date is in the past", ErrInvalidDates)
	}
	if startingAt != nil && endingAt != nil && endingAt.Before(*startingAt) {
		return fmt.Errorf("%w: ending date precedes starting date", ErrInvalidDates)
	}
	return nil
}

// resolveDripsConfig looks the client-supplied hub up in the registry
// namespace and substitutes the registered address.
func (s *WorkstreamService) resolveDripsConfig(ctx context.Context, payload DripsConfigPayload) (*domain.DripsConfig, error) {
	hubKey := common.HexToAddress(payload.DripsHub).Hex()
	registered, found, err := s.hubs.Get(ctx, hubKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUnknownDripsHub
	}
	if !common.IsHexAddress(string(registered)) {
		return nil, fmt.Errorf("corrupt drips hub registry entry for %s", hubKey)
	}

	return &domain.DripsConfig{
		Receivers: toReceivers(payload.Receivers),
		DripsAcct: payload.DripsAcct,
		DripsHub:  common.HexToAddress(string(registered)),
	}, nil
}

func toReceivers(payloads []ReceiverPayload) []domain.Receiver {
	receivers := make([]domain.Receiver, len(payloads))
	for i, p := range payloads {
		receivers[i] = domain.Receiver{
			Address:         common.HexToAddress(p.Address),
			PaymentRate:     p.PaymentRate,
			PaymentCurrency: p.PaymentCurrency,
		}
	}
	return receivers
}

func dripsConfigEqual(a, b domain.DripsConfig) bool {
	if a.DripsAcct != b.DripsAcct || a.DripsHub != b.DripsHub || len(a.Receivers) != len(b.Receivers) {
		return false
	}
	for i := range a.Receivers {
		if a.Receivers[i] != b.Receivers[i] {
			return false
		}
	}
	return true
}

// checkDripsConfig will verify the receiver configuration against the hub
// on-chain. TODO(on-chain): wire an RPC client once the hub contract ships a
// view for per-account drips configurations.
func checkDripsConfig(oldConfig, newConfig domain.DripsConfig) bool {
	return true
}

func (s *WorkstreamService) loadUser(ctx context.Context, owner common.Address) (domain.User, bool, error) {
	var user domain.User
	value, found, err := s.users.Get(ctx, owner.Hex())
	if err != nil {
		return user, false, err
	}
	if !found {
		return user, false, nil
	}
	if err := json.Unmarshal(value, &user); err != nil {
		return user, false, fmt.Errorf("failed to decode user record: %w", err)
	}
	return user, true, nil
}

func (s *WorkstreamService) saveUser(ctx context.Context, owner common.Address, user domain.User) error {
	value, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize user record: %w", err)
	}
	// User records have no natural expiry
	return s.users.Put(ctx, owner.Hex(), value, 0)
}
