package bitcoin

import (
	"context"
	"errors"
	"sync"

	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// EventChange is emitted by Wallet whenever its account list changes
const EventChange = "change"

var ErrInvalidAccount = errors.New("invalid account")

// WalletAccount is an account with its decoded public key
type WalletAccount struct {
	Address   string
	PublicKey []byte
}

// WalletChange is the payload of EventChange
type WalletChange struct {
	Accounts []WalletAccount
}

// Wallet is the wallet-standard view of a Provider. It mirrors the
// provider's accounts and only signs for accounts it knows.
type Wallet struct {
	*chains.Emitter

	provider *Provider

	mu       sync.RWMutex
	accounts []WalletAccount
}

// NewWallet creates a wallet bound to provider events
func NewWallet(provider *Provider) *Wallet {
	w := &Wallet{
		Emitter:  chains.NewEmitter(),
		provider: provider,
	}

	provider.On(chains.EventConnect, func(any) { w.connected() })
	provider.On(chains.EventDisconnect, func(any) { w.disconnected() })
	provider.On(chains.EventAccountsChanged, func(payload any) {
		if accounts, ok := payload.([]Account); ok && len(accounts) > 0 {
			w.connected()
			return
		}
		w.disconnected()
	})

	w.connected()
	return w
}

// Accounts returns the wallet accounts
func (w *Wallet) Accounts() []WalletAccount {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]WalletAccount(nil), w.accounts...)
}

// Connect connects the provider when no account is known yet
func (w *Wallet) Connect(ctx context.Context) ([]WalletAccount, error) {
	if len(w.Accounts()) == 0 {
		if _, err := w.provider.Connect(ctx); err != nil {
			return nil, err
		}
	}
	w.connected()
	return w.Accounts(), nil
}

func (w *Wallet) Disconnect() {
	w.provider.Disconnect()
}

// SignMessage signs message with address on behalf of account
func (w *Wallet) SignMessage(ctx context.Context, account, address string, message []byte) ([]byte, error) {
	if !w.knows(account) {
		return nil, ErrInvalidAccount
	}
	return w.provider.SignMessage(ctx, address, message)
}

// SignPSBT signs psbtHex on behalf of account
func (w *Wallet) SignPSBT(ctx context.Context, account, psbtHex string, opts SignPSBTOptions) (string, error) {
	if !w.knows(account) {
		return "", ErrInvalidAccount
	}
	return w.provider.SignPSBT(ctx, psbtHex, opts)
}

func (w *Wallet) knows(address string) bool {
	for _, account := range w.Accounts() {
		if account.Address == address {
			return true
		}
	}
	return false
}

func (w *Wallet) connected() {
	accounts := w.provider.GetAccounts()
	if len(accounts) == 0 {
		return
	}

	next := make([]WalletAccount, 0, len(accounts))
	for _, account := range accounts {
		next = append(next, WalletAccount{
			Address:   account.Address,
			PublicKey: utils.MessageToBuffer(account.PublicKey),
		})
	}

	w.mu.Lock()
	w.accounts = next
	w.mu.Unlock()

	w.Emit(EventChange, WalletChange{Accounts: next})
}

func (w *Wallet) disconnected() {
	w.mu.Lock()
	had := len(w.accounts) > 0
	w.accounts = nil
	w.mu.Unlock()

	if had {
		w.Emit(EventChange, WalletChange{Accounts: nil})
	}
}
