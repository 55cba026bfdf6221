package gateway

import (
	"context"
	"sync"
)

// MockGateway is an in-memory Gateway for local runs and tests. Responses are
// scripted per call via the fail hooks; by default everything is accepted.
type MockGateway struct {
	mu sync.Mutex

	// TransferErr and ReversalErr, when set, are returned for every
	// corresponding send.
	TransferErr error
	ReversalErr error
	// Reasons is what ReturnReasons hands back.
	Reasons []ReturnReason

	Transfers []TransferInstruction
	Reversals []ReversalInstruction
}

// NewMockGateway creates a MockGateway that accepts every instruction.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// SendTransfer records the instruction and returns the scripted outcome.
func (g *MockGateway) SendTransfer(_ context.Context, instr TransferInstruction) (*Acknowledgement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Transfers = append(g.Transfers, instr)
	if g.TransferErr != nil {
		return nil, g.TransferErr
	}
	return &Acknowledgement{Status: "SUCCESS", Message: "transfer accepted"}, nil
}

// SendReversal records the instruction and returns the scripted outcome.
func (g *MockGateway) SendReversal(_ context.Context, instr ReversalInstruction) (*Acknowledgement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Reversals = append(g.Reversals, instr)
	if g.ReversalErr != nil {
		return nil, g.ReversalErr
	}
	return &Acknowledgement{Status: "SUCCESS", Message: "return accepted"}, nil
}

// ReturnReasons returns the scripted catalog.
func (g *MockGateway) ReturnReasons(_ context.Context) []ReturnReason {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Reasons
}
