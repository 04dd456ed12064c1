package authflow

import (
	"context"
	"errors"
	"fmt"
)

// GetAccount looks up an account by ID.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// DeleteAccount removes an account permanently.
func (e *Engine) DeleteAccount(ctx context.Context, accountID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if _, err := e.store.FindByID(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("delete account: lookup: %w", err)
	}
	if err := e.store.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, accountID, nil, nil)
	return nil
}
