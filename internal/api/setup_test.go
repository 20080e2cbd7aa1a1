package api

import (
	"context"
	"testing"

	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// MockPortal implements Portal for testing
type MockPortal struct {
	State      types.Snapshot
	Err        error
	OpID       string
	Submitted  []string
	InputCalls int
	Connects   int
}

func (m *MockPortal) Snapshot() types.Snapshot { return m.State }

func (m *MockPortal) Connect(ctx context.Context) error {
	m.Connects++
	if m.Err == nil {
		m.State.Identity = types.WalletIdentity{PublicKey: "wallet", Status: types.StatusConnected}
	}
	return m.Err
}

func (m *MockPortal) Refresh(ctx context.Context) error { return m.Err }

func (m *MockPortal) Initialize(ctx context.Context) (string, error) {
	if m.Err != nil {
		return m.OpID, m.Err
	}
	m.State.State = &types.AccountState{Exists: true, Entries: []types.ListEntry{}}
	return m.OpID, nil
}

func (m *MockPortal) SetInput(text string) {
	m.InputCalls++
	m.State.Input = text
}

func (m *MockPortal) Submit(ctx context.Context, content string) (string, error) {
	m.Submitted = append(m.Submitted, content)
	return m.OpID, m.Err
}

func (m *MockPortal) SubmitInput(ctx context.Context) (string, error) {
	content := m.State.Input
	m.State.Input = ""
	return m.Submit(ctx, content)
}

// setupTest creates a service backed by a mock portal
func setupTest(t *testing.T) (*Service, *MockPortal, *logger.Logger) {
	t.Helper()

	mock := &MockPortal{
		OpID: "op-1",
		State: types.Snapshot{
			Identity: types.WalletIdentity{Status: types.StatusDisconnected},
			Account:  "account",
		},
	}
	l := logger.New(100)

	return NewService(mock, l), mock, l
}
